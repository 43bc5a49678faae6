/*
 * file: poller.go
 * package: ingest
 * description:
 *     Single-producer long-poll loop, grounded on the Delorus vksdk
 *     Longpoll.Run pattern: loop calling the transport, backing off on
 *     TransportError, relying on the client to re-handshake on
 *     ProtocolError, stopping on context cancellation without draining
 *     the queue itself.
 */

package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/kts-backend/fow-bot/internal/apperrors"
	"github.com/kts-backend/fow-bot/internal/core/ports"
)

// Poller repeatedly calls MessagingClient.LongPoll and enqueues every
// update it returns.
type Poller struct {
	messaging ports.MessagingClient
	queue     *UpdateQueue
	log       zerolog.Logger
	backoff   time.Duration
}

// NewPoller builds a Poller. backoff is the delay applied after a
// TransportError before retrying.
func NewPoller(messaging ports.MessagingClient, queue *UpdateQueue, backoff time.Duration, log zerolog.Logger) *Poller {
	return &Poller{messaging: messaging, queue: queue, log: log, backoff: backoff}
}

// Run blocks until ctx is cancelled. The in-flight poll either
// completes or is cancelled by ctx; the queue is never drained here.
func (p *Poller) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := p.messaging.LongPoll(ctx)
		if err != nil {
			var transportErr *apperrors.TransportError
			var protocolErr *apperrors.ProtocolError
			switch {
			case errors.As(err, &transportErr):
				p.log.Warn().Err(err).Msg("long poll transport error, backing off")
				p.sleep(ctx, p.backoff)
			case errors.As(err, &protocolErr):
				p.log.Warn().Err(err).Msg("long poll session expired, re-handshaking")
			default:
				p.log.Warn().Err(err).Msg("long poll failed")
				p.sleep(ctx, p.backoff)
			}
			continue
		}

		for _, u := range updates {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			p.queue.Enqueue(u)
		}
	}
}

func (p *Poller) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
