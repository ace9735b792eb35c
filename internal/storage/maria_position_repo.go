package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/annel0/tile-arena/internal/vec"
	_ "github.com/go-sql-driver/mysql"
)

// MariaPositionRepo хранит позиции игроков в MariaDB/MySQL
type MariaPositionRepo struct {
	db *sql.DB
}

// NewMariaPositionRepo подключается к базе и создаёт таблицу при необходимости
func NewMariaPositionRepo(dsn string) (*MariaPositionRepo, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия соединения с MariaDB: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка подключения к MariaDB: %w", err)
	}

	repo := &MariaPositionRepo{db: db}
	if err := repo.createTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *MariaPositionRepo) createTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS player_positions (
			user_id BIGINT UNSIGNED PRIMARY KEY,
			pos_x DOUBLE NOT NULL,
			pos_y DOUBLE NOT NULL,
			pos_z DOUBLE NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		)`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ошибка создания таблицы player_positions: %w", err)
	}
	return nil
}

func (r *MariaPositionRepo) Save(ctx context.Context, userID uint64, pos vec.Vec3Float) error {
	query := `
		INSERT INTO player_positions (user_id, pos_x, pos_y, pos_z)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE pos_x = VALUES(pos_x), pos_y = VALUES(pos_y), pos_z = VALUES(pos_z)`
	if _, err := r.db.ExecContext(ctx, query, userID, pos.X, pos.Y, pos.Z); err != nil {
		return fmt.Errorf("ошибка сохранения позиции %d: %w", userID, err)
	}
	return nil
}

func (r *MariaPositionRepo) Load(ctx context.Context, userID uint64) (vec.Vec3Float, bool, error) {
	var pos vec.Vec3Float
	query := `SELECT pos_x, pos_y, pos_z FROM player_positions WHERE user_id = ?`
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&pos.X, &pos.Y, &pos.Z)
	if err == sql.ErrNoRows {
		return vec.Vec3Float{}, false, nil
	}
	if err != nil {
		return vec.Vec3Float{}, false, fmt.Errorf("ошибка чтения позиции %d: %w", userID, err)
	}
	return pos, true, nil
}

func (r *MariaPositionRepo) Delete(ctx context.Context, userID uint64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM player_positions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("ошибка удаления позиции %d: %w", userID, err)
	}
	return nil
}

// BatchSave пишет позиции в одной транзакции
func (r *MariaPositionRepo) BatchSave(ctx context.Context, positions []PlayerPosition) error {
	if len(positions) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка открытия транзакции: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO player_positions (user_id, pos_x, pos_y, pos_z)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE pos_x = VALUES(pos_x), pos_y = VALUES(pos_y), pos_z = VALUES(pos_z)`)
	if err != nil {
		return fmt.Errorf("ошибка подготовки запроса: %w", err)
	}
	defer stmt.Close()

	for _, p := range positions {
		if _, err := stmt.ExecContext(ctx, p.UserID, p.Pos.X, p.Pos.Y, p.Pos.Z); err != nil {
			return fmt.Errorf("ошибка записи позиции %d: %w", p.UserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка коммита транзакции: %w", err)
	}
	return nil
}

func (r *MariaPositionRepo) Close() error {
	return r.db.Close()
}
