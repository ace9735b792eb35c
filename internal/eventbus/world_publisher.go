package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/annel0/tile-arena/internal/logging"
	"github.com/annel0/tile-arena/internal/vec"
	"github.com/annel0/tile-arena/internal/world"
	"github.com/google/uuid"
)

// TileEvent — полезная нагрузка события tile_update
type TileEvent struct {
	Pos   vec.Vec2 `json:"pos"`
	Chunk vec.Vec2 `json:"chunk"`
	Old   uint16   `json:"old"`
	New   uint16   `json:"new"`
}

// TilePublisher транслирует изменения тайлов мира в шину событий.
// Реализует world.WorldObserver; публикуются только записи, реально
// изменившие значение. Приоритет событий низкий: при переполнении шины
// правки мира дропаются, а не блокируют SetTile.
type TilePublisher struct {
	bus EventBus
}

// NewTilePublisher создаёт наблюдателя, публикующего tile_update
func NewTilePublisher(bus EventBus) *TilePublisher {
	return &TilePublisher{bus: bus}
}

// OnChunkCreated — часть world.WorldObserver; в шину не транслируется
func (tp *TilePublisher) OnChunkCreated(coord vec.Vec2) {}

// OnChunkRemoved — часть world.WorldObserver; в шину не транслируется
func (tp *TilePublisher) OnChunkRemoved(coord vec.Vec2) {}

// OnStorageChanged — часть world.WorldObserver; в шину не транслируется
func (tp *TilePublisher) OnStorageChanged(coord vec.Vec2, from, to world.StorageKind) {}

// OnTileUpdated публикует изменение тайла в шину
func (tp *TilePublisher) OnTileUpdated(u world.TileUpdate) {
	if !u.Changed {
		return
	}

	payload, err := json.Marshal(TileEvent{
		Pos:   u.Pos,
		Chunk: u.Chunk,
		Old:   uint16(u.Old),
		New:   uint16(u.New),
	})
	if err != nil {
		logging.Error("Ошибка сериализации изменения тайла: %v", err)
		return
	}

	ev := &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    "world",
		EventType: "tile_update",
		Version:   1,
		Priority:  3,
		Payload:   payload,
	}
	if err := tp.bus.Publish(context.Background(), ev); err != nil {
		logging.Warn("Не удалось опубликовать изменение тайла: %v", err)
	}
}
