package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"studentfees/internal/app"
	"studentfees/internal/config"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			db, err := app.NewDatabase(ctx, config.Load().Database, nil)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := app.Migrate(ctx, db); err != nil {
				return err
			}

			version, err := app.SchemaVersion(ctx, db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			db, err := app.NewDatabase(ctx, config.Load().Database, nil)
			if err != nil {
				return err
			}
			defer db.Close()

			return app.MigrationStatus(ctx, db)
		},
	})

	return cmd
}
