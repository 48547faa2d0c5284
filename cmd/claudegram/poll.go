package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ent0n29/claudegram/internal/app"
	"github.com/ent0n29/claudegram/internal/config"
	"github.com/ent0n29/claudegram/internal/session"
	"github.com/ent0n29/claudegram/internal/telegram"
)

func newPollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Run with long polling instead of a webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runPoll(cmd.Context(), cfg)
		},
	}
}

func runPoll(ctx context.Context, cfg config.Config) error {
	a, cleanup, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// getUpdates and an active webhook are mutually exclusive on the Bot API.
	if err := a.Client.DeleteWebhook(runCtx); err != nil {
		log.Warn().Err(err).Msg("webhook removal failed, polling may return 409s")
	}

	session.StartJanitor(runCtx, a.Sessions, cfg.SweepInterval, cfg.SessionTimeout, func(evicted, remaining int) {
		a.Metrics.EvictedSessions.Add(float64(evicted))
		a.Metrics.ActiveSessions.Set(float64(remaining))
	})

	// The metrics and health endpoints stay up even in polling mode.
	httpServer := &http.Server{Addr: cfg.BindAddr, Handler: a.API.Router()}
	go func() {
		log.Info().Str("addr", cfg.BindAddr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("listen error")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	poller := telegram.NewPoller(a.Client, a.Dispatcher, cfg.PollTimeout)
	log.Info().Dur("timeout", cfg.PollTimeout).Msg("long polling started")
	if err := poller.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("shutdown complete")
	return nil
}
