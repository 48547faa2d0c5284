package telegram

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ent0n29/claudegram/internal/bot"
	"github.com/ent0n29/claudegram/internal/reliability"
)

// Handler consumes normalized events; satisfied by the core dispatcher.
type Handler interface {
	Handle(ctx context.Context, ev bot.Event) error
}

// Poller drives the long-poll transport: one goroutine per update, no
// acknowledgment beyond advancing the offset.
type Poller struct {
	client  *Client
	handler Handler
	timeout time.Duration
}

func NewPoller(client *Client, handler Handler, timeout time.Duration) *Poller {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Poller{client: client, handler: handler, timeout: timeout}
}

// Run polls until ctx is cancelled. Transient API failures back off and
// retry; they never terminate the loop.
func (p *Poller) Run(ctx context.Context) error {
	var offset int64
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := p.client.GetUpdates(ctx, offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			attempt++
			delay := reliability.ExponentialBackoff(attempt, time.Second, 30*time.Second)
			log.Warn().Err(err).Dur("backoff", delay).Msg("getUpdates failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			continue
		}
		attempt = 0

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			ev, ok := u.Event()
			if !ok {
				log.Debug().Int64("update_id", u.UpdateID).Msg("skipping non-message update")
				continue
			}
			go func(ev bot.Event) {
				if err := p.handler.Handle(ctx, ev); err != nil {
					log.Error().Str("event_id", ev.ID).Err(err).Msg("event handling failed")
				}
			}(ev)
		}
	}
}
