package main

import (
	"os"

	"github.com/Dhoini/clipgo-booking/internal/config"
	"github.com/Dhoini/clipgo-booking/pkg/logger"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:          "booking-service",
		Short:        "Clip & Go subscription barbershop booking service",
		Long:         `Clip & Go sells monthly haircut subscriptions through Stripe and books appointments at partner barbershops.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yml", "Path to config file")

	rootCmd.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newSeedCommand(),
		newTokenCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig читает конфигурацию и создает логгер по ее настройкам.
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(cfg.App.LogLevel, cfg.App.Env)
	return cfg, log, nil
}
