package eventbus

import (
	"context"
	"testing"
	"time"
)

// TestMemoryBusPublishSubscribe тестирует доставку событий подписчику
func TestMemoryBusPublishSubscribe(t *testing.T) {
	bus := NewMemoryBus(10)

	received := make(chan *Envelope, 10)
	sub, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		received <- ev
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	ev := &Envelope{ID: "e1", EventType: "tile_update", Source: "world", Priority: 5}
	if err := bus.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-received:
		if got.ID != "e1" {
			t.Errorf("получено событие %s, ожидалось e1", got.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("событие не доставлено")
	}
}

// TestMemoryBusFilter тестирует фильтрацию по типу и источнику
func TestMemoryBusFilter(t *testing.T) {
	bus := NewMemoryBus(10)

	received := make(chan *Envelope, 10)
	_, err := bus.Subscribe(context.Background(),
		Filter{Types: []string{"combat_hit"}, Sources: []string{"combat"}},
		func(ctx context.Context, ev *Envelope) { received <- ev })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	ctx := context.Background()
	_ = bus.Publish(ctx, &Envelope{ID: "skip1", EventType: "tile_update", Source: "world", Priority: 5})
	_ = bus.Publish(ctx, &Envelope{ID: "skip2", EventType: "combat_hit", Source: "debug", Priority: 5})
	_ = bus.Publish(ctx, &Envelope{ID: "match", EventType: "combat_hit", Source: "combat", Priority: 5})

	select {
	case got := <-received:
		if got.ID != "match" {
			t.Errorf("фильтр пропустил событие %s", got.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("отфильтрованное событие не доставлено")
	}

	select {
	case got := <-received:
		t.Errorf("лишнее событие %s", got.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

// TestMemoryBusMetrics тестирует счётчики шины
func TestMemoryBusMetrics(t *testing.T) {
	bus := NewMemoryBus(10)

	_, _ = bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {})
	_ = bus.Publish(context.Background(), &Envelope{ID: "m1", EventType: "t", Source: "s", Priority: 5})

	time.Sleep(50 * time.Millisecond)
	stats := bus.Metrics()
	if stats.Published != 1 {
		t.Errorf("Published = %d, ожидалось 1", stats.Published)
	}
	if stats.Consumed != 1 {
		t.Errorf("Consumed = %d, ожидалось 1", stats.Consumed)
	}
}
