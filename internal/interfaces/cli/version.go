package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCommand(build BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "loanlens %s (commit %s, built %s, %s)\n",
				orDev(build.Version), orDev(build.Commit), orDev(build.Date), runtime.Version())
		},
	}
}

func orDev(s string) string {
	if s == "" {
		return "dev"
	}
	return s
}
