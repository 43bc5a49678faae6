/*
 * file: workerpool.go
 * package: ingest
 * description:
 *     N cooperative consumers pulling from the UpdateQueue and
 *     invoking the Router, gated per-user by the rate limiter.
 *     Grounded on the augustus Scanner's errgroup.WithContext +
 *     SetLimit fan-out, generalized from a bounded task list to a
 *     channel-fed worker pool.
 */

package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kts-backend/fow-bot/internal/apperrors"
	"github.com/kts-backend/fow-bot/internal/core/ports"
)

// Dispatcher is the Router's shape as seen by the WorkerPool.
type Dispatcher interface {
	Dispatch(ctx context.Context, update ports.Update) error
}

// RateLimiter gates updates per from_id before they reach the Router.
type RateLimiter interface {
	Allow(fromID int64) bool
}

// WorkerPool runs workers concurrent consumers over an UpdateQueue.
// Per-update failures are logged and swallowed; they never stop the
// pool or affect other chats.
type WorkerPool struct {
	queue      *UpdateQueue
	dispatcher Dispatcher
	limiter    RateLimiter
	workers    int
	log        zerolog.Logger
}

// NewWorkerPool builds a pool of the given size.
func NewWorkerPool(queue *UpdateQueue, dispatcher Dispatcher, limiter RateLimiter, workers int, log zerolog.Logger) *WorkerPool {
	return &WorkerPool{queue: queue, dispatcher: dispatcher, limiter: limiter, workers: workers, log: log}
}

// Run starts `workers` goroutines and blocks until the queue channel
// is closed and drained, or ctx is cancelled.
func (wp *WorkerPool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(wp.workers + 1)

	for i := 0; i < wp.workers; i++ {
		g.Go(func() error {
			return wp.loop(gctx)
		})
	}

	return g.Wait()
}

func (wp *WorkerPool) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-wp.queue.Channel():
			if !ok {
				return nil
			}
			wp.handle(ctx, update)
		}
	}
}

func (wp *WorkerPool) handle(ctx context.Context, update ports.Update) {
	fromID := update.Message.FromID
	for !wp.limiter.Allow(fromID) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Millisecond):
		}
	}

	if err := wp.dispatcher.Dispatch(ctx, update); err != nil {
		var dbErr *apperrors.DBError
		if errors.As(err, &dbErr) {
			wp.log.Error().Err(err).Int64("from_id", fromID).Msg("dispatch failed: store error, dropping update")
			return
		}
		wp.log.Warn().Err(err).Int64("from_id", fromID).Msg("dispatch failed, dropping update")
	}
}
