package bot

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/ent0n29/claudegram/internal/modelgw"
	"github.com/ent0n29/claudegram/internal/policy"
	"github.com/ent0n29/claudegram/internal/reliability"
	"github.com/ent0n29/claudegram/internal/session"
)

// handleAuth attempts exactly one strategy for an unauthenticated session:
// a live credential probe when the text looks like an API key, else the
// master password. Probe failures are reported with a uniform rejection so
// the reply never reveals whether the key was wrong or the network was; the
// cause goes to logs and metrics only.
func (d *Dispatcher) handleAuth(ctx context.Context, ev Event) error {
	if provider := modelgw.CredentialProvider(ev.Text); provider != "" {
		return d.authWithCredential(ctx, ev, provider)
	}

	if d.cfg.MasterPassword != "" && ev.Text == d.cfg.MasterPassword && d.cfg.DefaultCredential != "" {
		err := d.store.Update(ctx, ev.UserID, func(s *session.Session) error {
			s.Authenticate(d.cfg.DefaultProvider, d.cfg.DefaultCredential)
			return nil
		})
		if err != nil {
			return err
		}
		d.metrics.AuthAttempts.WithLabelValues("password", "success").Inc()
		log.Info().Str("event_id", ev.ID).Int64("user_id", ev.UserID).Msg("user authenticated with password")
		_, err = d.messenger.Send(ctx, ev.ChatID, authSuccessText, true)
		return err
	}

	if d.cfg.MasterPassword != "" && ev.Text == d.cfg.MasterPassword {
		// Password accepted but there is nothing to bind; admitting the user
		// would break the credential-iff-authenticated invariant.
		log.Warn().Str("event_id", ev.ID).Int64("user_id", ev.UserID).Msg("master password accepted but no default credential configured")
	}

	d.metrics.AuthAttempts.WithLabelValues("password", "failure").Inc()
	_, err := d.messenger.Send(ctx, ev.ChatID, invalidAuthText, false)
	return err
}

func (d *Dispatcher) authWithCredential(ctx context.Context, ev Event, provider string) error {
	gw, err := d.models.ForProvider(provider)
	if err != nil {
		// A key prefix we recognize but no gateway wired for it.
		log.Error().Str("event_id", ev.ID).Str("provider", provider).Err(err).Msg("credential for unconfigured provider")
		d.metrics.AuthAttempts.WithLabelValues("api_key", "failure").Inc()
		_, sendErr := d.messenger.Send(ctx, ev.ChatID, invalidKeyText, false)
		return sendErr
	}

	if probeErr := gw.Validate(ctx, ev.Text); probeErr != nil {
		code := reliability.ClassifyProviderError(probeErr)
		d.metrics.AuthAttempts.WithLabelValues("api_key", "failure").Inc()
		d.metrics.ProviderErrors.WithLabelValues(provider, code).Inc()
		log.Warn().
			Str("event_id", ev.ID).
			Int64("user_id", ev.UserID).
			Str("provider", provider).
			Str("code", code).
			Str("credential", policy.MaskSecret(ev.Text)).
			Err(probeErr).
			Msg("credential probe failed")
		_, sendErr := d.messenger.Send(ctx, ev.ChatID, invalidKeyText, false)
		return sendErr
	}

	err = d.store.Update(ctx, ev.UserID, func(s *session.Session) error {
		s.Authenticate(provider, ev.Text)
		return nil
	})
	if err != nil {
		return err
	}
	d.metrics.AuthAttempts.WithLabelValues("api_key", "success").Inc()
	log.Info().
		Str("event_id", ev.ID).
		Int64("user_id", ev.UserID).
		Str("provider", provider).
		Str("credential", policy.MaskSecret(ev.Text)).
		Msg("user authenticated with API key")
	_, err = d.messenger.Send(ctx, ev.ChatID, authSuccessText, true)
	return err
}
