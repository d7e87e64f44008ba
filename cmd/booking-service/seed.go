package main

import (
	"github.com/Dhoini/clipgo-booking/internal/app"

	"github.com/spf13/cobra"
)

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load barbershops, admin accounts and promo codes from the config",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			cfg.Scheduler.Enabled = false
			application, err := app.NewApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer application.Close()

			return application.Admin.Seed(cmd.Context(), cfg.Seed)
		},
	}
}
