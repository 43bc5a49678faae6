/*
 * file: queue.go
 * package: ingest
 * description:
 *     Bounded FIFO handoff between the Poller (single producer) and
 *     the WorkerPool (concurrent consumers).
 */

package ingest

import "github.com/kts-backend/fow-bot/internal/core/ports"

// UpdateQueue is a bounded channel of parsed updates. Delivery is
// at-least-once within a process: an update that fails mid-processing
// is not requeued.
type UpdateQueue struct {
	ch chan ports.Update
}

// NewUpdateQueue builds a queue with the given capacity.
func NewUpdateQueue(capacity int) *UpdateQueue {
	return &UpdateQueue{ch: make(chan ports.Update, capacity)}
}

// Enqueue adds u to the queue, blocking if it is full.
func (q *UpdateQueue) Enqueue(u ports.Update) {
	q.ch <- u
}

// Close signals no further updates will be enqueued; workers keep
// draining until the channel is also empty.
func (q *UpdateQueue) Close() {
	close(q.ch)
}

// Channel exposes the receive side for worker select loops.
func (q *UpdateQueue) Channel() <-chan ports.Update {
	return q.ch
}
