// Package events fans out sync results to in-process subscribers.
package events

import (
	"context"
	"sync"

	"github.com/roach88/feedkeep/internal/model"
)

// NewNotifications is one batch of notifications delivered by a sync run,
// oldest first.
type NewNotifications struct {
	Account       model.AccountScope
	RunID         string
	Notifications []model.Notification
}

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 16

// Bus delivers NewNotifications batches to every current subscriber.
//
// Publish never blocks: a subscriber whose queue is full misses the batch.
// Safe for concurrent use.
type Bus struct {
	mu     sync.Mutex
	subs   map[chan NewNotifications]struct{}
	buffer int
	closed bool
}

// NewBus returns a Bus whose subscribers queue up to buffer batches.
// A buffer <= 0 uses DefaultBuffer.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus{subs: make(map[chan NewNotifications]struct{}), buffer: buffer}
}

// Subscribe returns a channel receiving every batch published from now on.
// The channel is closed when ctx ends or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context) <-chan NewNotifications {
	ch := make(chan NewNotifications, b.buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.leave(ch)
	}()
	return ch
}

func (b *Bus) leave(ch chan NewNotifications) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

// Publish sends ev to every subscriber and returns how many received it.
// Empty batches are not sent.
func (b *Bus) Publish(ev NewNotifications) int {
	if len(ev.Notifications) == 0 {
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	delivered := 0
	for ch := range b.subs {
		select {
		case ch <- ev:
			delivered++
		default:
		}
	}
	return delivered
}

// Close closes every subscriber channel. Later subscriptions get a closed
// channel and later publishes reach no one.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}
