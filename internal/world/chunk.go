package world

import (
	"fmt"
	"sync"

	"github.com/annel0/tile-arena/internal/vec"
)

// TileID идентифицирует тип тайла в мире
type TileID uint16

// StorageKind определяет способ хранения тайлов внутри чанка
type StorageKind uint8

const (
	// StorageUniform — все тайлы чанка равны одному значению, массив не выделен
	StorageUniform StorageKind = iota
	// StorageDense — выделен плотный массив size*size
	StorageDense
)

// String возвращает строковое представление способа хранения
func (k StorageKind) String() string {
	switch k {
	case StorageUniform:
		return "uniform"
	case StorageDense:
		return "dense"
	default:
		return "unknown"
	}
}

// Chunk представляет квадратный участок мира size x size тайлов.
//
// Чанк создаётся в однородном (uniform) состоянии: все тайлы равны одному
// значению, массив не выделяется. При первой записи отличающегося значения
// чанк переходит в плотное (dense) состояние и обратно уже не возвращается,
// даже если все тайлы снова совпадут — это осознанное упрощение, см. DESIGN.md.
type Chunk struct {
	size    int
	kind    StorageKind
	uniform TileID   // Значение всех тайлов в состоянии uniform
	dense   []TileID // Массив тайлов в состоянии dense, индекс y*size+x

	dirtyRender    bool // Есть несброшенные изменения для рендера
	dirtyCollision bool // Есть несброшенные изменения для коллизий

	mu sync.RWMutex
}

// NewChunk создаёт однородный чанк указанного размера, заполненный fill.
// Размер должен быть положительным.
func NewChunk(size int, fill TileID) (*Chunk, error) {
	if size <= 0 {
		return nil, fmt.Errorf("некорректный размер чанка: %d", size)
	}
	return &Chunk{
		size:    size,
		kind:    StorageUniform,
		uniform: fill,
	}, nil
}

// RestoreDenseChunk восстанавливает dense-чанк из сохранённого массива тайлов.
// Используется при загрузке мира из хранилища; dirty-флаги остаются сброшенными.
func RestoreDenseChunk(size int, tiles []TileID) (*Chunk, error) {
	if size <= 0 {
		return nil, fmt.Errorf("некорректный размер чанка: %d", size)
	}
	if len(tiles) != size*size {
		return nil, fmt.Errorf("ожидалось %d тайлов, получено %d", size*size, len(tiles))
	}
	dense := make([]TileID, len(tiles))
	copy(dense, tiles)
	return &Chunk{
		size:  size,
		kind:  StorageDense,
		dense: dense,
	}, nil
}

// Size возвращает размер стороны чанка в тайлах
func (c *Chunk) Size() int {
	return c.size
}

// Kind возвращает текущий способ хранения
func (c *Chunk) Kind() StorageKind {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.kind
}

// checkLocal проверяет, что локальные координаты внутри чанка.
// Выход за границы — ошибка вызывающего кода; молчаливое ограничение
// исказило бы адресацию, поэтому оно недопустимо.
func (c *Chunk) checkLocal(local vec.Vec2) error {
	if local.X < 0 || local.X >= c.size || local.Y < 0 || local.Y >= c.size {
		return fmt.Errorf("локальные координаты (%d,%d) вне чанка размера %d", local.X, local.Y, c.size)
	}
	return nil
}

// Get возвращает тайл по локальным координатам
func (c *Chunk) Get(local vec.Vec2) (TileID, error) {
	if err := c.checkLocal(local); err != nil {
		return 0, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.kind == StorageUniform {
		return c.uniform, nil
	}
	return c.dense[local.Y*c.size+local.X], nil
}

// Set записывает тайл по локальным координатам.
// Возвращает true, если значение тайла действительно изменилось.
// Запись текущего значения — no-op: не выделяет массив и не поднимает
// dirty-флаги. Первая отличающаяся запись переводит чанк в dense-состояние,
// заполняя массив прежним однородным значением.
func (c *Chunk) Set(local vec.Vec2, id TileID) (bool, error) {
	if err := c.checkLocal(local); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.kind == StorageUniform {
		if id == c.uniform {
			return false, nil
		}

		// Первое расхождение: выделяем плотный массив и заполняем его
		// прежним однородным значением. Переход одностороннний.
		c.dense = make([]TileID, c.size*c.size)
		for i := range c.dense {
			c.dense[i] = c.uniform
		}
		c.kind = StorageDense
	}

	idx := local.Y*c.size + local.X
	if c.dense[idx] == id {
		return false, nil
	}

	c.dense[idx] = id
	c.dirtyRender = true
	c.dirtyCollision = true
	return true, nil
}

// AllEqual сообщает, равны ли все тайлы чанка значению id
func (c *Chunk) AllEqual(id TileID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.kind == StorageUniform {
		return c.uniform == id
	}
	for _, t := range c.dense {
		if t != id {
			return false
		}
	}
	return true
}

// DirtyRender сообщает о несброшенных изменениях для рендера
func (c *Chunk) DirtyRender() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dirtyRender
}

// DirtyCollision сообщает о несброшенных изменениях для коллизий
func (c *Chunk) DirtyCollision() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dirtyCollision
}

// ClearDirtyRender сбрасывает флаг изменений для рендера.
// Флагом владеет внешний рендерер, коллизионный флаг не трогаем.
func (c *Chunk) ClearDirtyRender() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirtyRender = false
}

// ClearDirtyCollision сбрасывает флаг изменений для коллизий
func (c *Chunk) ClearDirtyCollision() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirtyCollision = false
}

// Snapshot возвращает копию содержимого чанка для сериализации.
// Для uniform-чанка dense == nil.
func (c *Chunk) Snapshot() (kind StorageKind, uniform TileID, dense []TileID) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.kind == StorageUniform {
		return StorageUniform, c.uniform, nil
	}
	out := make([]TileID, len(c.dense))
	copy(out, c.dense)
	return StorageDense, c.uniform, out
}
