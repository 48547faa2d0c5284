package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/ent0n29/claudegram/internal/bot"
	"github.com/ent0n29/claudegram/internal/config"
	"github.com/ent0n29/claudegram/internal/httpapi"
	"github.com/ent0n29/claudegram/internal/modelgw"
	"github.com/ent0n29/claudegram/internal/observability"
	"github.com/ent0n29/claudegram/internal/session"
	"github.com/ent0n29/claudegram/internal/telegram"
)

// App holds everything a command needs after wiring: the store janitor and
// the HTTP server are started by the commands themselves, not here.
type App struct {
	Cfg        config.Config
	Metrics    *observability.Metrics
	Sessions   session.Store
	Dispatcher *bot.Dispatcher
	Client     *telegram.Client
	API        *httpapi.Server
}

// Build wires the full service graph from config. The returned cleanup
// closes the session store (flushing file or database state).
func Build(ctx context.Context, cfg config.Config) (*App, func(), error) {
	if err := cfg.RequireBotToken(); err != nil {
		return nil, nil, err
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace, prometheus.DefaultRegisterer)

	sessions, err := session.NewStore(ctx, cfg.DatabaseURL, cfg.SessionStateFile)
	if err != nil {
		return nil, nil, fmt.Errorf("session store init: %w", err)
	}
	cleanup := func() {
		if err := sessions.Close(); err != nil {
			log.Warn().Err(err).Msg("session store close failed")
		}
	}

	models := modelgw.NewRegistry(
		modelgw.NewAnthropic(cfg.AnthropicModel),
		modelgw.NewOpenAI(cfg.OpenAIModel),
	)

	defaultProvider, defaultCredential := defaultModelAccess(cfg)

	client := telegram.NewClient(cfg.BotToken)

	dispatcher := bot.NewDispatcher(bot.Config{
		MaxHistory:        cfg.MaxHistory,
		MessageLimit:      cfg.MessageLimit,
		MasterPassword:    cfg.MasterPassword,
		DefaultProvider:   defaultProvider,
		DefaultCredential: defaultCredential,
		MaxTokens:         int64(cfg.ModelMaxTokens),
		Temperature:       cfg.Temperature,
	}, sessions, models, client, metrics)

	api := httpapi.New(cfg, sessions, dispatcher, metrics)

	return &App{
		Cfg:        cfg,
		Metrics:    metrics,
		Sessions:   sessions,
		Dispatcher: dispatcher,
		Client:     client,
		API:        api,
	}, cleanup, nil
}

// defaultModelAccess picks the operator-supplied credential used when a user
// authenticates with the master password. Anthropic wins when both are set.
func defaultModelAccess(cfg config.Config) (provider, credential string) {
	switch {
	case cfg.DefaultAnthropicKey != "":
		return modelgw.ProviderAnthropic, cfg.DefaultAnthropicKey
	case cfg.DefaultOpenAIKey != "":
		return modelgw.ProviderOpenAI, cfg.DefaultOpenAIKey
	default:
		return "", ""
	}
}
