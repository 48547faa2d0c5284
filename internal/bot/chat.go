package bot

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ent0n29/claudegram/internal/modelgw"
	"github.com/ent0n29/claudegram/internal/reliability"
	"github.com/ent0n29/claudegram/internal/session"
)

// handleChat relays a freeform message for an authenticated session: append
// the user turn, call the model with the bounded history, append and send the
// reply. A failed completion never commits an assistant turn.
func (d *Dispatcher) handleChat(ctx context.Context, ev Event, sess *session.Session) error {
	// Authenticated without a credential should not occur; recover by asking
	// the user to re-run /start instead of failing the whole process.
	if sess.Credential == "" || sess.Provider == "" {
		log.Error().Str("event_id", ev.ID).Int64("user_id", ev.UserID).Msg("authenticated session without credential")
		_, err := d.messenger.Send(ctx, ev.ChatID, reconfigureText, false)
		return err
	}
	gw, err := d.models.ForProvider(sess.Provider)
	if err != nil {
		log.Error().Str("event_id", ev.ID).Str("provider", sess.Provider).Err(err).Msg("session bound to unconfigured provider")
		_, sendErr := d.messenger.Send(ctx, ev.ChatID, reconfigureText, false)
		return sendErr
	}

	var history []session.Turn
	err = d.store.Update(ctx, ev.UserID, func(s *session.Session) error {
		s.AddTurn(session.RoleUser, ev.Text, d.cfg.MaxHistory)
		history = make([]session.Turn, len(s.History))
		copy(history, s.History)
		return nil
	})
	if err != nil {
		return err
	}

	// Best-effort working indicator; losing it is not worth failing the chat.
	indicator, indicatorErr := d.messenger.Send(ctx, ev.ChatID, thinkingText, false)
	hasIndicator := indicatorErr == nil

	start := time.Now()
	reply, completeErr := gw.Complete(ctx, sess.Credential, modelgw.Request{
		System:      systemPrompt,
		Turns:       history,
		MaxTokens:   d.cfg.MaxTokens,
		Temperature: d.cfg.Temperature,
	})
	d.metrics.ObserveCompletionLatency(time.Since(start))

	if hasIndicator {
		if delErr := d.messenger.Delete(ctx, indicator); delErr != nil {
			log.Debug().Str("event_id", ev.ID).Err(delErr).Msg("could not remove working indicator")
		}
	}

	if completeErr != nil {
		code := reliability.ClassifyProviderError(completeErr)
		d.metrics.ProviderErrors.WithLabelValues(sess.Provider, code).Inc()
		log.Error().
			Str("event_id", ev.ID).
			Int64("user_id", ev.UserID).
			Str("provider", sess.Provider).
			Str("code", code).
			Err(completeErr).
			Msg("completion failed")
		_, sendErr := d.messenger.Send(ctx, ev.ChatID, chatFailurePrefix+completeErr.Error()+chatFailureSuffix, false)
		return sendErr
	}

	err = d.store.Update(ctx, ev.UserID, func(s *session.Session) error {
		s.AddTurn(session.RoleAssistant, reply, d.cfg.MaxHistory)
		return nil
	})
	if err != nil {
		return err
	}

	for _, chunk := range SplitMessage(reply, d.cfg.MessageLimit) {
		if _, err := d.messenger.Send(ctx, ev.ChatID, chunk, true); err != nil {
			return err
		}
	}
	log.Info().Str("event_id", ev.ID).Int64("user_id", ev.UserID).Dur("latency", time.Since(start)).Msg("chat turn completed")
	return nil
}
