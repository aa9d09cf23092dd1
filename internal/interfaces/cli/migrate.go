package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/loanlens/loanlens/internal/config"
	"github.com/loanlens/loanlens/internal/infrastructure/database/postgres"
	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		newMigrateUpCommand(opts),
		newMigrateDownCommand(opts),
		newMigrateStatusCommand(opts),
		newMigrateForceCommand(opts),
	)
	return cmd
}

func newMigrateUpCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), opts, func(m *postgres.Migrator) error {
				if err := m.Up(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}
}

func newMigrateDownCommand(opts *rootOptions) *cobra.Command {
	steps := 1
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), opts, func(m *postgres.Migrator) error {
				if err := m.Rollback(steps); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}

func newMigrateStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), opts, func(m *postgres.Migrator) error {
				version, dirty, err := m.Status()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version: %d dirty: %v\n", version, dirty)
				return nil
			})
		},
	}
}

func newMigrateForceCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "force <version>",
		Short: "Force the schema version after a failed migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("version must be an integer: %w", err)
			}
			return withMigrator(cmd.Context(), opts, func(m *postgres.Migrator) error {
				if err := m.Force(version); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "forced version %d\n", version)
				return nil
			})
		},
	}
}

// withMigrator opens a connection and a migrator, runs fn, and tears both
// down regardless of outcome.
func withMigrator(ctx context.Context, opts *rootOptions, fn func(*postgres.Migrator) error) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	conn, err := connectForMigration(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	migrator, err := postgres.NewMigrator(conn, log)
	if err != nil {
		return fmt.Errorf("building migrator: %w", err)
	}
	defer migrator.Close()
	return fn(migrator)
}

func connectForMigration(ctx context.Context, cfg *config.Config, log logging.Logger) (*postgres.Connection, error) {
	conn, err := postgres.NewConnection(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return conn, nil
}
