package world

import (
	"fmt"
	"sync"

	"github.com/annel0/tile-arena/internal/vec"
)

// SparseChunkWorld хранит бесконечный логический мир тайлов как разреженную
// карту чанков. Чанк присутствует в карте тогда и только тогда, когда хотя бы
// один его тайл отличается от DefaultTileID: чанки создаются лениво при первой
// недефолтной записи и удаляются, как только все тайлы вернулись к дефолту.
//
// Изменения доступны потребителям двумя путями: опросом множества
// DirtyRenderChunks (основной путь для рендера) и синхронными уведомлениями
// подписанных WorldObserver (для независимых потребителей вроде сети).
type SparseChunkWorld struct {
	chunkSize   int
	defaultTile TileID

	chunks      map[vec.Vec2]*Chunk
	dirtyRender map[vec.Vec2]struct{} // Чанки, ожидающие перестройки рендера

	observers []WorldObserver

	mu sync.RWMutex
}

// NewSparseChunkWorld создаёт пустой мир с указанным размером чанка и
// дефолтным тайлом. Размер чанка должен быть положительным.
func NewSparseChunkWorld(chunkSize int, defaultTile TileID) (*SparseChunkWorld, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("некорректный размер чанка: %d", chunkSize)
	}
	return &SparseChunkWorld{
		chunkSize:   chunkSize,
		defaultTile: defaultTile,
		chunks:      make(map[vec.Vec2]*Chunk),
		dirtyRender: make(map[vec.Vec2]struct{}),
	}, nil
}

// ChunkSize возвращает размер стороны чанка в тайлах
func (w *SparseChunkWorld) ChunkSize() int {
	return w.chunkSize
}

// DefaultTileID возвращает дефолтный тайл мира
func (w *SparseChunkWorld) DefaultTileID() TileID {
	return w.defaultTile
}

// Subscribe добавляет наблюдателя изменений мира.
// Подписка выполняется при сборке сервера, до начала записей.
func (w *SparseChunkWorld) Subscribe(obs WorldObserver) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observers = append(w.observers, obs)
}

// GetTile возвращает тайл по мировым координатам.
// Никогда не ошибается: для несуществующего чанка возвращается дефолт.
func (w *SparseChunkWorld) GetTile(pos vec.Vec2) TileID {
	coord := WorldToChunk(pos, w.chunkSize)

	w.mu.RLock()
	chunk, exists := w.chunks[coord]
	w.mu.RUnlock()

	if !exists {
		return w.defaultTile
	}

	id, err := chunk.Get(WorldToLocal(pos, w.chunkSize))
	if err != nil {
		// Недостижимо: локальные координаты получены через WorldToLocal
		return w.defaultTile
	}
	return id
}

// SetTile записывает тайл по мировым координатам.
//
// Запись дефолта в несуществующий чанк — no-op: чанк ради дефолтов не
// создаётся. Изменяющая запись помечает чанк dirty-for-render; если чанк
// после неё стал полностью дефолтным, он удаляется из карты, а его координата
// остаётся в dirty-множестве, чтобы рендерер перестроил участок ещё раз уже
// без чанка. На каждый вызов наблюдателям уходит ровно одно TileUpdate.
func (w *SparseChunkWorld) SetTile(pos vec.Vec2, id TileID) {
	coord := WorldToChunk(pos, w.chunkSize)
	local := WorldToLocal(pos, w.chunkSize)

	type notification struct {
		created        bool
		removed        bool
		storageChanged bool
		kindFrom       StorageKind
		kindTo         StorageKind
		update         TileUpdate
	}
	var note notification

	w.mu.Lock()

	chunk, exists := w.chunks[coord]
	if !exists {
		if id == w.defaultTile {
			// Дефолт в несуществующий чанк: ничего не создаём
			w.mu.Unlock()
			w.notifyTile(TileUpdate{Pos: pos, Chunk: coord, Old: w.defaultTile, New: id, Changed: false})
			return
		}

		// NewChunk ошибается только при неположительном размере,
		// который отсечён конструктором мира
		chunk, _ = NewChunk(w.chunkSize, w.defaultTile)
		w.chunks[coord] = chunk
		note.created = true
	}

	old, _ := chunk.Get(local)
	kindBefore := chunk.Kind()
	changed, _ := chunk.Set(local, id)
	kindAfter := chunk.Kind()

	note.update = TileUpdate{Pos: pos, Chunk: coord, Old: old, New: id, Changed: changed}

	if changed {
		w.dirtyRender[coord] = struct{}{}

		if kindAfter != kindBefore {
			note.storageChanged = true
			note.kindFrom = kindBefore
			note.kindTo = kindAfter
		}

		// Инвариант разреженности: чанк, вернувшийся к дефолту, удаляется
		if id == w.defaultTile && chunk.AllEqual(w.defaultTile) {
			delete(w.chunks, coord)
			note.removed = true
		}
	}

	w.mu.Unlock()

	// Уведомления рассылаем вне блокировки, порядок фиксированный
	if note.created {
		w.notifyChunkCreated(coord)
	}
	if note.storageChanged {
		w.notifyStorageChanged(coord, note.kindFrom, note.kindTo)
	}
	if note.removed {
		w.notifyChunkRemoved(coord)
	}
	w.notifyTile(note.update)
}

// HasChunk сообщает, существует ли чанк с указанными координатами
func (w *SparseChunkWorld) HasChunk(coord vec.Vec2) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, exists := w.chunks[coord]
	return exists
}

// ChunkCount возвращает количество существующих чанков
func (w *SparseChunkWorld) ChunkCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.chunks)
}

// DirtyRenderChunks возвращает снимок множества чанков, ожидающих
// перестройки рендера. Координата может указывать на уже удалённый чанк —
// это сигнал рендереру очистить участок.
func (w *SparseChunkWorld) DirtyRenderChunks() []vec.Vec2 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]vec.Vec2, 0, len(w.dirtyRender))
	for coord := range w.dirtyRender {
		out = append(out, coord)
	}
	return out
}

// ClearDirtyRender убирает чанк из множества ожидающих перестройки и
// сбрасывает его render-флаг, если чанк ещё существует.
func (w *SparseChunkWorld) ClearDirtyRender(coord vec.Vec2) {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.dirtyRender, coord)
	if chunk, exists := w.chunks[coord]; exists {
		chunk.ClearDirtyRender()
	}
}

// ForEachChunk вызывает fn для каждого существующего чанка.
// fn не должна модифицировать мир.
func (w *SparseChunkWorld) ForEachChunk(fn func(coord vec.Vec2, c *Chunk)) {
	w.mu.RLock()
	coords := make([]vec.Vec2, 0, len(w.chunks))
	chunks := make([]*Chunk, 0, len(w.chunks))
	for coord, chunk := range w.chunks {
		coords = append(coords, coord)
		chunks = append(chunks, chunk)
	}
	w.mu.RUnlock()

	for i := range coords {
		fn(coords[i], chunks[i])
	}
}

// RestoreChunk помещает загруженный из хранилища чанк в карту мира.
// Полностью дефолтный чанк не восстанавливается (инвариант разреженности).
func (w *SparseChunkWorld) RestoreChunk(coord vec.Vec2, chunk *Chunk) error {
	if chunk.Size() != w.chunkSize {
		return fmt.Errorf("размер чанка %d не совпадает с размером мира %d", chunk.Size(), w.chunkSize)
	}
	if chunk.AllEqual(w.defaultTile) {
		return nil
	}

	w.mu.Lock()
	w.chunks[coord] = chunk
	w.dirtyRender[coord] = struct{}{}
	w.mu.Unlock()
	return nil
}

func (w *SparseChunkWorld) snapshotObservers() []WorldObserver {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]WorldObserver(nil), w.observers...)
}

func (w *SparseChunkWorld) notifyChunkCreated(coord vec.Vec2) {
	for _, obs := range w.snapshotObservers() {
		obs.OnChunkCreated(coord)
	}
}

func (w *SparseChunkWorld) notifyChunkRemoved(coord vec.Vec2) {
	for _, obs := range w.snapshotObservers() {
		obs.OnChunkRemoved(coord)
	}
}

func (w *SparseChunkWorld) notifyStorageChanged(coord vec.Vec2, from, to StorageKind) {
	for _, obs := range w.snapshotObservers() {
		obs.OnStorageChanged(coord, from, to)
	}
}

func (w *SparseChunkWorld) notifyTile(u TileUpdate) {
	for _, obs := range w.snapshotObservers() {
		obs.OnTileUpdated(u)
	}
}
