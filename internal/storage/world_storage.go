package storage

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/annel0/tile-arena/internal/logging"
	"github.com/annel0/tile-arena/internal/vec"
	"github.com/annel0/tile-arena/internal/world"
	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"
)

// Байт-маркеры способа хранения чанка в записи BadgerDB
const (
	recordUniform byte = 0
	recordDense   byte = 1
)

// WorldStorage персистит чанки разреженного мира в BadgerDB.
// Uniform-чанк хранится как один тайл, dense-чанк — как zstd-сжатый
// массив little-endian тайлов. Полностью дефолтные чанки не хранятся:
// инвариант разреженности восстанавливается при загрузке.
type WorldStorage struct {
	db      *badger.DB
	dbPath  string
	encoder *zstd.Encoder
	decoder *zstd.Decoder

	removed   map[vec.Vec2]struct{} // Чанки, удалённые из мира с прошлого сохранения
	removedMu sync.Mutex

	mutex   sync.RWMutex
	isReady bool
}

// NewWorldStorage открывает хранилище мира в каталоге dataPath
func NewWorldStorage(dataPath string) (*WorldStorage, error) {
	dbPath := filepath.Join(dataPath, "world")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать zstd decoder: %w", err)
	}

	return &WorldStorage{
		db:      db,
		dbPath:  dbPath,
		encoder: encoder,
		decoder: decoder,
		removed: make(map[vec.Vec2]struct{}),
		isReady: true,
	}, nil
}

// Close закрывает хранилище данных
func (ws *WorldStorage) Close() error {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()

	if !ws.isReady {
		return nil
	}

	ws.isReady = false
	return ws.db.Close()
}

// OnChunkCreated — часть world.WorldObserver; создание само по себе
// не требует действий хранилища
func (ws *WorldStorage) OnChunkCreated(coord vec.Vec2) {
	ws.removedMu.Lock()
	delete(ws.removed, coord)
	ws.removedMu.Unlock()
}

// OnChunkRemoved запоминает удалённый чанк, чтобы стереть его запись
// при следующем сохранении
func (ws *WorldStorage) OnChunkRemoved(coord vec.Vec2) {
	ws.removedMu.Lock()
	ws.removed[coord] = struct{}{}
	ws.removedMu.Unlock()
}

// OnStorageChanged — часть world.WorldObserver; смена представления
// чанка не влияет на хранилище
func (ws *WorldStorage) OnStorageChanged(coord vec.Vec2, from, to world.StorageKind) {}

// OnTileUpdated — часть world.WorldObserver; запись подхватывается
// по collision-флагу чанка при сохранении
func (ws *WorldStorage) OnTileUpdated(u world.TileUpdate) {}

// SaveWorld сохраняет изменившиеся чанки мира и удаляет записи чанков,
// вернувшихся к дефолту. При force сохраняются все чанки.
// Collision-флаг чанка сбрасывается после успешной записи.
func (ws *WorldStorage) SaveWorld(w *world.SparseChunkWorld, force bool) error {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return fmt.Errorf("хранилище не готово")
	}

	saved := 0
	var saveErr error

	w.ForEachChunk(func(coord vec.Vec2, c *world.Chunk) {
		if saveErr != nil {
			return
		}
		if !force && !c.DirtyCollision() {
			return
		}

		data := ws.encodeChunk(c)
		key := chunkKey(coord)

		err := ws.db.Update(func(txn *badger.Txn) error {
			return txn.Set(key, data)
		})
		if err != nil {
			saveErr = fmt.Errorf("ошибка сохранения чанка %v: %w", coord, err)
			return
		}

		c.ClearDirtyCollision()
		saved++
	})

	if saveErr != nil {
		return saveErr
	}

	// Стираем записи удалённых чанков
	ws.removedMu.Lock()
	removed := make([]vec.Vec2, 0, len(ws.removed))
	for coord := range ws.removed {
		removed = append(removed, coord)
	}
	ws.removed = make(map[vec.Vec2]struct{})
	ws.removedMu.Unlock()

	for _, coord := range removed {
		// Чанк мог быть создан заново после удаления
		if w.HasChunk(coord) {
			continue
		}
		err := ws.db.Update(func(txn *badger.Txn) error {
			err := txn.Delete(chunkKey(coord))
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		})
		if err != nil {
			return fmt.Errorf("ошибка удаления чанка %v: %w", coord, err)
		}
	}

	if saved > 0 || len(removed) > 0 {
		logging.Debug("WorldStorage: сохранено %d чанков, удалено %d записей", saved, len(removed))
	}
	return nil
}

// LoadWorld восстанавливает все сохранённые чанки в мир
func (ws *WorldStorage) LoadWorld(w *world.SparseChunkWorld) error {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return fmt.Errorf("хранилище не готово")
	}

	loaded := 0
	err := ws.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("chunk:")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()

			var coord vec.Vec2
			if _, err := fmt.Sscanf(string(item.Key()), "chunk:%d:%d", &coord.X, &coord.Y); err != nil {
				logging.Warn("WorldStorage: некорректный ключ %q, запись пропущена", item.Key())
				continue
			}

			err := item.Value(func(val []byte) error {
				chunk, err := ws.decodeChunk(val, w.ChunkSize())
				if err != nil {
					return err
				}
				if err := w.RestoreChunk(coord, chunk); err != nil {
					return err
				}
				loaded++
				return nil
			})
			if err != nil {
				return fmt.Errorf("ошибка загрузки чанка %v: %w", coord, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logging.Info("WorldStorage: загружено %d чанков", loaded)
	return nil
}

// chunkKey формирует ключ BadgerDB для чанка
func chunkKey(coord vec.Vec2) []byte {
	return []byte(fmt.Sprintf("chunk:%d:%d", coord.X, coord.Y))
}

// encodeChunk сериализует чанк в запись BadgerDB
func (ws *WorldStorage) encodeChunk(c *world.Chunk) []byte {
	kind, uniform, dense := c.Snapshot()

	if kind == world.StorageUniform {
		out := make([]byte, 3)
		out[0] = recordUniform
		binary.LittleEndian.PutUint16(out[1:], uint16(uniform))
		return out
	}

	raw := make([]byte, len(dense)*2)
	for i, tile := range dense {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(tile))
	}

	compressed := ws.encoder.EncodeAll(raw, nil)
	out := make([]byte, 1+len(compressed))
	out[0] = recordDense
	copy(out[1:], compressed)
	return out
}

// decodeChunk восстанавливает чанк из записи BadgerDB
func (ws *WorldStorage) decodeChunk(data []byte, chunkSize int) (*world.Chunk, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("пустая запись чанка")
	}

	switch data[0] {
	case recordUniform:
		if len(data) != 3 {
			return nil, fmt.Errorf("некорректная uniform-запись длины %d", len(data))
		}
		fill := world.TileID(binary.LittleEndian.Uint16(data[1:]))
		return world.NewChunk(chunkSize, fill)

	case recordDense:
		raw, err := ws.decoder.DecodeAll(data[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("ошибка распаковки чанка: %w", err)
		}
		if len(raw) != chunkSize*chunkSize*2 {
			return nil, fmt.Errorf("ожидалось %d байт тайлов, получено %d", chunkSize*chunkSize*2, len(raw))
		}

		tiles := make([]world.TileID, chunkSize*chunkSize)
		for i := range tiles {
			tiles[i] = world.TileID(binary.LittleEndian.Uint16(raw[i*2:]))
		}
		return world.RestoreDenseChunk(chunkSize, tiles)

	default:
		return nil, fmt.Errorf("неизвестный маркер записи %d", data[0])
	}
}
