package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/ent0n29/claudegram/internal/bot"
	"github.com/ent0n29/claudegram/internal/config"
	"github.com/ent0n29/claudegram/internal/observability"
	"github.com/ent0n29/claudegram/internal/session"
	"github.com/ent0n29/claudegram/internal/telegram"
)

const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// Bot API updates are small; anything larger is not a legitimate update.
const maxWebhookBody = 1 << 20

// Dispatcher is the piece of the bot the webhook needs. Kept narrow so
// tests can drop in a fake without a model gateway behind it.
type Dispatcher interface {
	Handle(ctx context.Context, ev bot.Event) error
}

type Server struct {
	cfg        config.Config
	sessions   session.Store
	dispatcher Dispatcher
	metrics    *observability.Metrics
}

func New(cfg config.Config, sessions session.Store, dispatcher Dispatcher, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:        cfg,
		sessions:   sessions,
		dispatcher: dispatcher,
		metrics:    metrics,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/telegram/webhook", s.handleWebhook)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "claudegram",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"active_sessions": s.sessions.Len(),
	})
}

// handleWebhook accepts an update, acknowledges it immediately, and runs the
// dispatch off the request goroutine. Telegram retries on non-2xx, so slow
// model calls must never hold the response.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.cfg.WebhookSecret != "" && r.Header.Get(secretTokenHeader) != s.cfg.WebhookSecret {
		s.metrics.UpdatesTotal.WithLabelValues("rejected").Inc()
		respondError(w, http.StatusUnauthorized, "invalid_secret", "secret token mismatch")
		return
	}

	var update telegram.Update
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
	if err := decodeJSON(r, &update); err != nil {
		s.metrics.UpdatesTotal.WithLabelValues("malformed").Inc()
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("undecodable webhook update")
		respondError(w, http.StatusBadRequest, "invalid_update", err.Error())
		return
	}

	ev, ok := update.Event()
	if !ok {
		// Edited messages, channel posts and the like. Acknowledge and move on.
		s.metrics.UpdatesTotal.WithLabelValues("ignored").Inc()
		respondJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	s.metrics.UpdatesTotal.WithLabelValues("webhook").Inc()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.dispatcher.Handle(ctx, ev); err != nil {
			log.Error().Err(err).Str("event_id", ev.ID).Int64("user_id", ev.UserID).Msg("webhook dispatch failed")
		}
	}()

	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeJSON(r *http.Request, out any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(out)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
