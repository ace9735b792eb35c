package spatial

import (
	"fmt"
	"math"
	"sync"
)

// HurtBoxRegistry — равномерный пространственный хеш хартбоксов.
// Мир разбивается на кубические ячейки фиксированного размера; каждый
// хартбокс попадает во все ячейки, которые пересекает его мировой AABB.
// Экземпляр создаётся явно и принадлежит боевой системе — глобального
// singleton-реестра нет, время жизни и изоляция в тестах прозрачны.
type HurtBoxRegistry struct {
	cellSize float64
	cells    map[cellKey][]*storedBox
	owners   map[HurtBoxOwner]*ownerEntry
	mu       sync.RWMutex
}

// cellKey представляет ключ ячейки пространственной сетки
type cellKey struct {
	x, y, z int
}

// storedBox хранит хартбокс вместе с AABB на момент последней синхронизации
type storedBox struct {
	box  *HurtBox
	aabb Aabb
}

// ownerEntry хранит записи группы и ячейки, которые они занимают
type ownerEntry struct {
	boxes []*storedBox
	cells map[cellKey]struct{}
}

// NewHurtBoxRegistry создаёт пустой реестр с указанным размером ячейки.
// При неположительном размере используется значение по умолчанию 4.0.
func NewHurtBoxRegistry(cellSize float64) *HurtBoxRegistry {
	if cellSize <= 0 {
		cellSize = 4.0
	}
	return &HurtBoxRegistry{
		cellSize: cellSize,
		cells:    make(map[cellKey][]*storedBox),
		owners:   make(map[HurtBoxOwner]*ownerEntry),
	}
}

// Register добавляет группу хартбоксов в реестр.
// Повторная регистрация той же группы — no-op. Записи в ячейках появятся
// после первого SyncAabbCache.
func (r *HurtBoxRegistry) Register(owner HurtBoxOwner) {
	if owner == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.owners[owner]; exists {
		return
	}
	r.owners[owner] = &ownerEntry{
		cells: make(map[cellKey]struct{}),
	}
}

// Unregister удаляет группу и все её записи из ячеек.
// Неизвестная группа — no-op: гонки жизненного цикла (disable до первой
// синхронизации) не должны приводить к ошибке.
func (r *HurtBoxRegistry) Unregister(owner HurtBoxOwner) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.owners[owner]
	if !exists {
		return
	}

	r.evictLocked(owner, entry)
	delete(r.owners, owner)
}

// SyncAabbCache заменяет записи группы в ячейках на актуальные.
// Вызывается раз в тик после того, как владелец пересчитал мировую
// геометрию своих хартбоксов, и до любых запросов этого тика.
// Старые записи снимаются только с ячеек, которые группа занимала.
func (r *HurtBoxRegistry) SyncAabbCache(owner HurtBoxOwner) {
	if owner == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.owners[owner]
	if !exists {
		return
	}

	r.evictLocked(owner, entry)

	boxes := owner.HurtBoxes()
	entry.boxes = entry.boxes[:0]

	for _, hb := range boxes {
		if hb == nil {
			continue
		}
		stored := &storedBox{box: hb, aabb: hb.WorldAabb()}
		entry.boxes = append(entry.boxes, stored)

		for _, key := range r.cellsForAabb(stored.aabb) {
			r.cells[key] = append(r.cells[key], stored)
			entry.cells[key] = struct{}{}
		}
	}
}

// Query возвращает хартбоксы, чей закешированный AABB пересекает область.
// Кандидаты собираются по ячейкам сетки, дедуплицируются и проходят
// точную проверку пересечения AABB.
func (r *HurtBoxRegistry) Query(area Aabb) []*HurtBox {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[*HurtBox]struct{})
	result := make([]*HurtBox, 0)

	for _, key := range r.cellsForAabb(area) {
		for _, stored := range r.cells[key] {
			if _, wasSeen := seen[stored.box]; wasSeen {
				continue
			}
			seen[stored.box] = struct{}{}

			if stored.aabb.Intersects(area) {
				result = append(result, stored.box)
			}
		}
	}

	return result
}

// OwnerCount возвращает количество зарегистрированных групп
func (r *HurtBoxRegistry) OwnerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owners)
}

// CellCount возвращает количество непустых ячеек
func (r *HurtBoxRegistry) CellCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cells)
}

// Stats возвращает сводку по реестру для диагностики
func (r *HurtBoxRegistry) Stats() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	maxPerCell := 0
	for _, boxes := range r.cells {
		total += len(boxes)
		if len(boxes) > maxPerCell {
			maxPerCell = len(boxes)
		}
	}

	avg := 0.0
	if len(r.cells) > 0 {
		avg = float64(total) / float64(len(r.cells))
	}

	return fmt.Sprintf("HurtBoxRegistry: %d owners, %d cells, avg %.2f entries/cell, max %d entries/cell",
		len(r.owners), len(r.cells), avg, maxPerCell)
}

// evictLocked снимает записи группы со всех занимаемых ею ячеек.
// Вызывается под write-блокировкой.
func (r *HurtBoxRegistry) evictLocked(owner HurtBoxOwner, entry *ownerEntry) {
	for key := range entry.cells {
		boxes := r.cells[key]
		kept := boxes[:0]
		for _, stored := range boxes {
			if stored.box.Owner != owner {
				kept = append(kept, stored)
			}
		}
		if len(kept) == 0 {
			delete(r.cells, key)
		} else {
			r.cells[key] = kept
		}
		delete(entry.cells, key)
	}
}

// cellsForAabb возвращает ключи всех ячеек, пересекаемых AABB.
// Диапазон по каждой оси — floor(min/size)..floor(max/size) включительно.
func (r *HurtBoxRegistry) cellsForAabb(a Aabb) []cellKey {
	minX := int(math.Floor(a.Min.X / r.cellSize))
	minY := int(math.Floor(a.Min.Y / r.cellSize))
	minZ := int(math.Floor(a.Min.Z / r.cellSize))
	maxX := int(math.Floor(a.Max.X / r.cellSize))
	maxY := int(math.Floor(a.Max.Y / r.cellSize))
	maxZ := int(math.Floor(a.Max.Z / r.cellSize))

	keys := make([]cellKey, 0, (maxX-minX+1)*(maxY-minY+1)*(maxZ-minZ+1))
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			for z := minZ; z <= maxZ; z++ {
				keys = append(keys, cellKey{x: x, y: y, z: z})
			}
		}
	}
	return keys
}
