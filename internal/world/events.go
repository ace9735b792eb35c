package world

import (
	"github.com/annel0/tile-arena/internal/vec"
)

// TileUpdate описывает результат одного вызова SetTile.
// Рассылается наблюдателям на каждый вызов, в том числе когда значение
// не изменилось (Changed == false) — потребители сами решают, что им важно.
type TileUpdate struct {
	Pos     vec.Vec2 // Мировые координаты тайла
	Chunk   vec.Vec2 // Координаты чанка, которому принадлежит тайл
	Old     TileID   // Значение до записи
	New     TileID   // Записанное значение
	Changed bool     // Действительно ли значение изменилось
}

// WorldObserver получает уведомления об изменениях мира.
// Все методы вызываются синхронно из SetTile после применения записи;
// наблюдатели не должны модифицировать мир из колбэков.
type WorldObserver interface {
	// OnChunkCreated вызывается при ленивом создании чанка
	OnChunkCreated(coord vec.Vec2)

	// OnChunkRemoved вызывается при удалении чанка, вернувшегося к
	// полностью дефолтному состоянию
	OnChunkRemoved(coord vec.Vec2)

	// OnStorageChanged вызывается при смене способа хранения чанка
	// (uniform -> dense)
	OnStorageChanged(coord vec.Vec2, from, to StorageKind)

	// OnTileUpdated вызывается на каждый SetTile
	OnTileUpdated(u TileUpdate)
}
