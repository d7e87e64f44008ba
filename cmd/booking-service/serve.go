package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dhoini/clipgo-booking/internal/app"
	"github.com/Dhoini/clipgo-booking/internal/http/routes"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and background jobs",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	log.Infow("Booking service starting up...", "env", cfg.App.Env)
	if cfg.Auth.JWTSecret == "YourVerySecretKeyHere" {
		log.Warnw("JWT Secret is using the default placeholder!")
	}
	if cfg.Stripe.APIKey == "" || cfg.Stripe.APIKey == "sk_test_YourSecretKeyHere" {
		log.Warnw("Stripe API Key is not set or is using the default placeholder!")
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApp(ctx, cfg, log)
	if err != nil {
		log.Errorw("Failed to initialize application", "error", err)
		return err
	}
	defer application.Close()

	if cfg.Database.Driver == "memory" {
		// в памяти данных нет после каждого старта
		if err := application.Admin.Seed(ctx, cfg.Seed); err != nil {
			return err
		}
	}

	router := gin.New()
	routes.SetupRoutes(router, application, log)

	httpServer := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infow("Starting HTTP server", "port", cfg.App.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	application.Scheduler.Start()

	g.Go(func() error {
		<-gctx.Done()
		log.Infow("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := application.Scheduler.Stop(shutdownCtx); err != nil {
			log.Warnw("Scheduler did not stop in time", "error", err)
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Errorw("HTTP server shutdown error", "error", err)
			return err
		}
		log.Infow("HTTP server gracefully stopped")
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Errorw("Server stopped with error", "error", err)
		return err
	}
	log.Infow("Cleanup finished. Goodbye!")
	return nil
}
