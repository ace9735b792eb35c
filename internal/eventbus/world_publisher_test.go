package eventbus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/annel0/tile-arena/internal/vec"
	"github.com/annel0/tile-arena/internal/world"
)

// TestTilePublisher тестирует трансляцию изменений мира в шину
func TestTilePublisher(t *testing.T) {
	bus := NewMemoryBus(10)

	received := make(chan *Envelope, 10)
	sub, err := bus.Subscribe(context.Background(),
		Filter{Types: []string{"tile_update"}},
		func(ctx context.Context, ev *Envelope) { received <- ev })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	w, err := world.NewSparseChunkWorld(8, 0)
	if err != nil {
		t.Fatalf("NewSparseChunkWorld: %v", err)
	}
	w.Subscribe(NewTilePublisher(bus))

	w.SetTile(vec.Vec2{X: 1, Y: 2}, 3)

	select {
	case ev := <-received:
		if ev.Source != "world" {
			t.Errorf("Source = %q, ожидалось world", ev.Source)
		}
		var te TileEvent
		if err := json.Unmarshal(ev.Payload, &te); err != nil {
			t.Fatalf("Unmarshal payload: %v", err)
		}
		if te.Pos != (vec.Vec2{X: 1, Y: 2}) || te.New != 3 || te.Old != 0 {
			t.Errorf("payload = %+v", te)
		}
	case <-time.After(time.Second):
		t.Fatal("изменение тайла не дошло до шины")
	}

	// No-op запись (дефолт в пустой чанк) не публикуется
	w.SetTile(vec.Vec2{X: 50, Y: 50}, 0)

	select {
	case ev := <-received:
		t.Errorf("лишнее событие для no-op записи: %s", ev.Payload)
	case <-time.After(50 * time.Millisecond):
	}
}
