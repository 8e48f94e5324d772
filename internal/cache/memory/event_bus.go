// Package memory provides in-process implementations of the cache
// interfaces for single-instance deployments that run without Redis.
package memory

import (
	"context"
	"sync"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// EventBus is an in-process domain.EventBus. Events published while no
// subscriber is listening are dropped, matching the best-effort contract.
type EventBus struct {
	mu   sync.RWMutex
	subs map[string][]chan []byte
}

// NewEventBus creates an empty EventBus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[string][]chan []byte)}
}

// Publish delivers payload to every current subscriber of channel. Slow
// subscribers with full buffers miss the event rather than block the
// publisher.
func (b *EventBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel of payloads published to channel. The channel
// is closed when ctx is cancelled.
func (b *EventBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 128)

	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()

		b.mu.Lock()
		subs := b.subs[channel]
		for i, c := range subs {
			if c == ch {
				b.subs[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

var _ domain.EventBus = (*EventBus)(nil)
