// Package cache хранит в Redis реестр активных сессий.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/subscription-gate/internal/config"
)

const sessionKeyPrefix = "session:"

// Cache обёртка над клиентом Redis.
type Cache struct {
	Db *redis.Client
}

// SessionRecord данные, сохраняемые для каждой выданной сессии.
type SessionRecord struct {
	UserUID  string    `json:"user_uid"`
	Email    string    `json:"email"`
	IssuedAt time.Time `json:"issued_at"`
}

// InitServer подключается к Redis и проверяет соединение.
func InitServer(ctx context.Context, cfg config.RedisConnection) (*Cache, error) {
	const op = "cache.InitServer"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Cache{Db: db}, nil
}

// Get читает значение по ключу и раскладывает JSON в result.
// Возвращает false, если ключа нет.
func (c *Cache) Get(ctx context.Context, key string, result any) (bool, error) {
	const op = "cache.Get"
	val, err := c.Db.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err = json.Unmarshal([]byte(val), result); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// Set сохраняет value в JSON с временем жизни expiration.
func (c *Cache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	const op = "cache.Set"
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err = c.Db.Set(ctx, key, jsonData, expiration).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Invalidate удаляет ключ. Отсутствие ключа ошибкой не считается.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	const op = "cache.Invalidate"
	if err := c.Db.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SaveSession регистрирует сессию на время ttl.
func (c *Cache) SaveSession(ctx context.Context, sessionID string, rec SessionRecord, ttl time.Duration) error {
	return c.Set(ctx, sessionKeyPrefix+sessionID, rec, ttl)
}

// GetSession возвращает запись сессии. false, если сессия завершена или истекла.
func (c *Cache) GetSession(ctx context.Context, sessionID string) (*SessionRecord, bool, error) {
	var rec SessionRecord
	found, err := c.Get(ctx, sessionKeyPrefix+sessionID, &rec)
	if err != nil || !found {
		return nil, false, err
	}
	return &rec, true, nil
}

// DeleteSession завершает сессию.
func (c *Cache) DeleteSession(ctx context.Context, sessionID string) error {
	return c.Invalidate(ctx, sessionKeyPrefix+sessionID)
}

// Ping проверяет доступность Redis.
func (c *Cache) Ping(ctx context.Context) error {
	return c.Db.Ping(ctx).Err()
}

// Close закрывает соединение.
func (c *Cache) Close() error {
	return c.Db.Close()
}
