package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ent0n29/claudegram/internal/app"
	"github.com/ent0n29/claudegram/internal/config"
	"github.com/ent0n29/claudegram/internal/session"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg config.Config) error {
	a, cleanup, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	session.StartJanitor(runCtx, a.Sessions, cfg.SweepInterval, cfg.SessionTimeout, func(evicted, remaining int) {
		a.Metrics.EvictedSessions.Add(float64(evicted))
		a.Metrics.ActiveSessions.Set(float64(remaining))
	})

	if cfg.WebhookURL != "" {
		if err := a.Client.SetWebhook(runCtx, cfg.WebhookURL, cfg.WebhookSecret); err != nil {
			return err
		}
		log.Info().Str("url", cfg.WebhookURL).Msg("webhook registered")
	}

	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: a.API.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.BindAddr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case <-ctx.Done():
	}

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown failed")
		_ = httpServer.Close()
	}

	log.Info().Msg("shutdown complete")
	return nil
}
