package bot

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ent0n29/claudegram/internal/modelgw"
	"github.com/ent0n29/claudegram/internal/observability"
	"github.com/ent0n29/claudegram/internal/session"
)

// Config carries the core-facing settings the dispatcher needs.
type Config struct {
	MaxHistory        int
	MessageLimit      int
	MasterPassword    string
	DefaultProvider   string
	DefaultCredential string
	MaxTokens         int64
	Temperature       float64
}

// Dispatcher classifies inbound events and runs the matching handler. All
// handling for one identity is serialized through the store's per-identity
// lock; different identities proceed concurrently.
type Dispatcher struct {
	cfg       Config
	store     session.Store
	models    *modelgw.Registry
	messenger Messenger
	metrics   *observability.Metrics
}

func NewDispatcher(cfg Config, store session.Store, models *modelgw.Registry, messenger Messenger, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		cfg:       cfg,
		store:     store,
		models:    models,
		messenger: messenger,
		metrics:   metrics,
	}
}

// Handle processes one inbound event to completion. Failures are scoped to
// this event; the returned error is for logging, never fatal to the process.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) error {
	if !ev.Valid() {
		d.metrics.UpdatesTotal.WithLabelValues("malformed").Inc()
		log.Warn().Str("event_id", ev.ID).Msg("dropping malformed event")
		return nil
	}

	unlock := d.store.Lock(ev.UserID)
	defer unlock()
	defer func() {
		d.metrics.ActiveSessions.Set(float64(d.store.Len()))
	}()

	switch {
	case ev.Text == "/start":
		d.metrics.UpdatesTotal.WithLabelValues("command").Inc()
		return d.handleStart(ctx, ev)
	case ev.Text == "/reset":
		d.metrics.UpdatesTotal.WithLabelValues("command").Inc()
		return d.handleReset(ctx, ev)
	case ev.Text == "/help":
		d.metrics.UpdatesTotal.WithLabelValues("command").Inc()
		return d.handleHelp(ctx, ev)
	case strings.HasPrefix(ev.Text, "/"):
		d.metrics.UpdatesTotal.WithLabelValues("unknown_command").Inc()
		return d.handleUnknownCommand(ctx, ev)
	}

	sess, err := d.store.GetOrCreate(ctx, ev.UserID)
	if err != nil {
		return err
	}
	if !sess.Authenticated {
		d.metrics.UpdatesTotal.WithLabelValues("auth").Inc()
		return d.handleAuth(ctx, ev)
	}
	d.metrics.UpdatesTotal.WithLabelValues("chat").Inc()
	return d.handleChat(ctx, ev, sess)
}

// handleStart clears history and re-shows the welcome text. It never touches
// the authenticated flag: authentication is one-way for the session's life.
func (d *Dispatcher) handleStart(ctx context.Context, ev Event) error {
	err := d.store.Update(ctx, ev.UserID, func(s *session.Session) error {
		s.ResetHistory()
		return nil
	})
	if err != nil {
		return err
	}
	_, err = d.messenger.Send(ctx, ev.ChatID, welcomeText, true)
	return err
}

func (d *Dispatcher) handleReset(ctx context.Context, ev Event) error {
	sess, err := d.store.GetOrCreate(ctx, ev.UserID)
	if err != nil {
		return err
	}
	if !sess.Authenticated {
		_, err = d.messenger.Send(ctx, ev.ChatID, authRequiredText, false)
		return err
	}
	if err := d.store.Reset(ctx, ev.UserID); err != nil {
		return err
	}
	_, err = d.messenger.Send(ctx, ev.ChatID, resetConfirmText, false)
	return err
}

func (d *Dispatcher) handleHelp(ctx context.Context, ev Event) error {
	_, err := d.messenger.Send(ctx, ev.ChatID, helpText, true)
	return err
}

// handleUnknownCommand replies with a short notice. Silently swallowing
// unrecognized commands left users guessing; the notice is deliberate.
func (d *Dispatcher) handleUnknownCommand(ctx context.Context, ev Event) error {
	_, err := d.messenger.Send(ctx, ev.ChatID, unknownCommandText, false)
	return err
}
