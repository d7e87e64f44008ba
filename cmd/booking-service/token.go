package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/clipgo-booking/internal/auth"

	"github.com/spf13/cobra"
)

// newTokenCommand выпускает пользовательский токен для локальной разработки.
// В production пользователей аутентифицирует внешний провайдер.
func newTokenCommand() *cobra.Command {
	var (
		userID string
		email  string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a user JWT for local development",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if cfg.App.Env == "production" {
				return errors.New("token command is disabled in production")
			}
			if userID == "" {
				return errors.New("--user is required")
			}

			token, expiresAt, err := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.AdminTokenTTL).IssueUserToken(userID, email, ttl)
			if err != nil {
				return err
			}
			log.Infow("Development token issued", "userID", userID, "expiresAt", expiresAt)
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "User ID (sub claim)")
	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}
