package eventing

import (
	"context"
	"errors"
	"testing"
)

type pingEvent struct {
	N int
}

func TestBusDeliversToTypedSubscriber(t *testing.T) {
	bus := NewBus()
	var got []int
	On(bus, func(ctx context.Context, event pingEvent) error {
		got = append(got, event.N)
		return nil
	})

	if err := bus.Publish(context.Background(), pingEvent{N: 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := bus.Publish(context.Background(), pingEvent{N: 2}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("unexpected deliveries: %v", got)
	}
}

func TestBusHandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := NewBus()
	boom := errors.New("boom")
	calls := 0
	On(bus, func(ctx context.Context, event pingEvent) error {
		calls++
		return boom
	})
	On(bus, func(ctx context.Context, event pingEvent) error {
		calls++
		return nil
	})

	err := bus.Publish(context.Background(), pingEvent{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected first handler error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected both handlers to run, got %d", calls)
	}
}

func TestBusNilEvent(t *testing.T) {
	bus := NewBus()
	if err := bus.Publish(context.Background(), nil); !errors.Is(err, ErrNilEvent) {
		t.Fatalf("expected ErrNilEvent, got %v", err)
	}
}
