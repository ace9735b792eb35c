package storage

import (
	"context"

	"github.com/annel0/tile-arena/internal/vec"
)

// PlayerPosition — последняя сохранённая позиция игрока
type PlayerPosition struct {
	UserID uint64
	Pos    vec.Vec3Float
}

// PositionRepo хранит позиции игроков между сессиями.
// Реализации: in-memory (тесты, standalone), Redis (горячий кеш),
// MariaDB (долговременное хранение).
type PositionRepo interface {
	// Save сохраняет позицию игрока
	Save(ctx context.Context, userID uint64, pos vec.Vec3Float) error

	// Load возвращает позицию игрока; found == false, если записи нет
	Load(ctx context.Context, userID uint64) (pos vec.Vec3Float, found bool, err error)

	// Delete удаляет запись игрока; отсутствие записи не является ошибкой
	Delete(ctx context.Context, userID uint64) error

	// BatchSave сохраняет позиции пачкой (периодический автосейв)
	BatchSave(ctx context.Context, positions []PlayerPosition) error

	// Close освобождает ресурсы репозитория
	Close() error
}
