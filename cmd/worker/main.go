// The worker binary runs only the analysis consumer, configured entirely
// from the environment. Deployments that want subcommands use cmd/loanlens.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/loanlens/loanlens/internal/config"
	"github.com/loanlens/loanlens/internal/interfaces/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	build := cli.BuildInfo{Version: version, Commit: commit, Date: date}
	if err := cli.RunWorker(context.Background(), cfg, build); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
