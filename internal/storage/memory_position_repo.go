package storage

import (
	"context"
	"sync"

	"github.com/annel0/tile-arena/internal/vec"
)

// MemoryPositionRepo — потокобезопасный in-memory репозиторий позиций
type MemoryPositionRepo struct {
	mu        sync.RWMutex
	positions map[uint64]vec.Vec3Float
}

// NewMemoryPositionRepo создаёт пустой репозиторий
func NewMemoryPositionRepo() *MemoryPositionRepo {
	return &MemoryPositionRepo{
		positions: make(map[uint64]vec.Vec3Float),
	}
}

func (r *MemoryPositionRepo) Save(ctx context.Context, userID uint64, pos vec.Vec3Float) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positions[userID] = pos
	return nil
}

func (r *MemoryPositionRepo) Load(ctx context.Context, userID uint64) (vec.Vec3Float, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pos, ok := r.positions[userID]
	return pos, ok, nil
}

func (r *MemoryPositionRepo) Delete(ctx context.Context, userID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.positions, userID)
	return nil
}

func (r *MemoryPositionRepo) BatchSave(ctx context.Context, positions []PlayerPosition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range positions {
		r.positions[p.UserID] = p.Pos
	}
	return nil
}

func (r *MemoryPositionRepo) Close() error { return nil }
