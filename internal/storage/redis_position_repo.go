package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/annel0/tile-arena/internal/vec"
	"github.com/go-redis/redis/v8"
)

// Позиции в Redis живут неделю: игрок, не заходивший дольше,
// начнёт со спауна
const positionTTL = 7 * 24 * time.Hour

// RedisPositionRepo хранит позиции игроков в Redis с TTL
type RedisPositionRepo struct {
	client *redis.Client
}

// NewRedisPositionRepo подключается к Redis и проверяет соединение
func NewRedisPositionRepo(addr string) (*RedisPositionRepo, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ошибка подключения к Redis %s: %w", addr, err)
	}

	return &RedisPositionRepo{client: client}, nil
}

func positionKey(userID uint64) string {
	return fmt.Sprintf("arena:pos:%d", userID)
}

func (r *RedisPositionRepo) Save(ctx context.Context, userID uint64, pos vec.Vec3Float) error {
	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("ошибка сериализации позиции: %w", err)
	}
	if err := r.client.Set(ctx, positionKey(userID), data, positionTTL).Err(); err != nil {
		return fmt.Errorf("ошибка записи позиции в Redis: %w", err)
	}
	return nil
}

func (r *RedisPositionRepo) Load(ctx context.Context, userID uint64) (vec.Vec3Float, bool, error) {
	data, err := r.client.Get(ctx, positionKey(userID)).Bytes()
	if err == redis.Nil {
		return vec.Vec3Float{}, false, nil
	}
	if err != nil {
		return vec.Vec3Float{}, false, fmt.Errorf("ошибка чтения позиции из Redis: %w", err)
	}

	var pos vec.Vec3Float
	if err := json.Unmarshal(data, &pos); err != nil {
		return vec.Vec3Float{}, false, fmt.Errorf("ошибка разбора позиции: %w", err)
	}
	return pos, true, nil
}

func (r *RedisPositionRepo) Delete(ctx context.Context, userID uint64) error {
	if err := r.client.Del(ctx, positionKey(userID)).Err(); err != nil {
		return fmt.Errorf("ошибка удаления позиции из Redis: %w", err)
	}
	return nil
}

// BatchSave пишет позиции одним pipeline-запросом
func (r *RedisPositionRepo) BatchSave(ctx context.Context, positions []PlayerPosition) error {
	if len(positions) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for _, p := range positions {
		data, err := json.Marshal(p.Pos)
		if err != nil {
			return fmt.Errorf("ошибка сериализации позиции %d: %w", p.UserID, err)
		}
		pipe.Set(ctx, positionKey(p.UserID), data, positionTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ошибка пакетной записи позиций: %w", err)
	}
	return nil
}

func (r *RedisPositionRepo) Close() error {
	return r.client.Close()
}
