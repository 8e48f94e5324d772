package memory

import (
	"context"
	"testing"
	"time"
)

func TestSeenCacheSuppressesWithinTTL(t *testing.T) {
	c := NewSeenCache()
	ctx := context.Background()

	seen, err := c.Seen(ctx, "opp:WETH:a:b", time.Minute)
	if err != nil {
		t.Fatalf("Seen: %v", err)
	}
	if seen {
		t.Fatal("first sighting reported as seen")
	}

	seen, err = c.Seen(ctx, "opp:WETH:a:b", time.Minute)
	if err != nil {
		t.Fatalf("Seen: %v", err)
	}
	if !seen {
		t.Fatal("second sighting not suppressed")
	}
}

func TestSeenCacheExpires(t *testing.T) {
	c := NewSeenCache()
	ctx := context.Background()

	if _, err := c.Seen(ctx, "k", time.Millisecond); err != nil {
		t.Fatalf("Seen: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	seen, err := c.Seen(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("Seen: %v", err)
	}
	if seen {
		t.Fatal("expired entry still suppressing")
	}
}

func TestEventBusDeliversToSubscribers(t *testing.T) {
	bus := NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, "events")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := bus.Publish(ctx, "events", []byte(`{"type":"plan_created"}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-ch:
		if string(got) != `{"type":"plan_created"}` {
			t.Fatalf("payload = %s", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestEventBusClosesOnCancel(t *testing.T) {
	bus := NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := bus.Subscribe(ctx, "events")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel, got payload")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestEventBusDropsWhenNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	if err := bus.Publish(context.Background(), "events", []byte("x")); err != nil {
		t.Fatalf("Publish with no subscribers: %v", err)
	}
}
