// Package cli defines the loanlens command tree. The serve and worker
// commands run the two long-lived processes; migrate manages the schema;
// analyze and highlight run the pipeline offline against a local PDF,
// without any infrastructure.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loanlens/loanlens/internal/config"
	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
)

// BuildInfo identifies the binary; main injects it via ldflags.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

// NewRootCommand assembles the full command tree.
func NewRootCommand(build BuildInfo) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "loanlens",
		Short:         "Loan document analysis service",
		Long:          "LoanLens ingests loan documents, analyzes them for red flags, hidden clauses and financial terms, and locates clause snippets on their pages.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file (default: environment only)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log level (debug|info|warn|error)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "override log format (json|console)")

	root.AddCommand(
		newServeCommand(opts, build),
		newWorkerCommand(opts, build),
		newMigrateCommand(opts),
		newAnalyzeCommand(opts),
		newHighlightCommand(opts),
		newVersionCommand(build),
	)
	return root
}

// Execute runs the command tree and exits nonzero on error.
func Execute(build BuildInfo) {
	if err := NewRootCommand(build).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration from the file given by --config, or from
// the environment alone, then applies flag overrides.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if o.configPath != "" {
		cfg, err = config.Load(o.configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	return cfg, nil
}

// newLogger builds the process logger from config.
func newLogger(cfg *config.Config) (logging.Logger, error) {
	log, err := logging.NewLogger(logging.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		OutputPaths: []string{cfg.Log.Output},
	})
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return log, nil
}

// offlineLogger is the quiet logger used by the offline commands, where the
// command output itself is the product.
func offlineLogger(o *rootOptions) logging.Logger {
	if o.logLevel == "" {
		return logging.NewNopLogger()
	}
	log, err := logging.NewLogger(logging.Config{
		Level:       o.logLevel,
		Format:      "console",
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return logging.NewNopLogger()
	}
	return log
}
