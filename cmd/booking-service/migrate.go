package main

import (
	"context"

	"github.com/Dhoini/clipgo-booking/internal/db"

	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tools",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Run all pending migrations",
			RunE:  migrateWith((*db.DBClient).MigrateUp),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Rollback the last migration",
			RunE:  migrateWith((*db.DBClient).MigrateDown),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show migration status",
			RunE:  migrateWith((*db.DBClient).MigrateStatus),
		},
	)
	return cmd
}

func migrateWith(op func(*db.DBClient, context.Context) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		dbClient, err := db.NewDBClient(cmd.Context(), cfg.Database.DSN, log)
		if err != nil {
			return err
		}
		defer dbClient.Close()

		return op(dbClient, cmd.Context())
	}
}
