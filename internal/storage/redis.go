package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ivanov-nikolay/notes_storage/internal/config"
	"github.com/ivanov-nikolay/notes_storage/internal/logging"
	"github.com/ivanov-nikolay/notes_storage/internal/models"
)

// RedisSessions хранит сессии входа в Redis с истечением по TTL
type RedisSessions struct {
	client *redis.Client
}

// NewRedisSessions подключается к Redis и проверяет соединение
func NewRedisSessions(ctx context.Context, cfg config.RedisConfig) (*RedisSessions, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logging.Info("connected to redis", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))

	return &RedisSessions{client: client}, nil
}

// Close закрывает соединение
func (s *RedisSessions) Close() error {
	return s.client.Close()
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}

// CreateSession сохраняет сессию; ключ удаляется Redis после ExpiresAt
func (s *RedisSessions) CreateSession(ctx context.Context, session models.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", session.ID)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	key := sessionKey(session.ID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "session", data)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

// GetSession возвращает сессию или models.ErrSessionNotFound
func (s *RedisSessions) GetSession(ctx context.Context, id string) (models.Session, error) {
	data, err := s.client.HGet(ctx, sessionKey(id), "session").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Session{}, models.ErrSessionNotFound
		}
		return models.Session{}, err
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return models.Session{}, fmt.Errorf("failed to decode session: %w", err)
	}
	return session, nil
}

// DeleteSession отзывает сессию
func (s *RedisSessions) DeleteSession(ctx context.Context, id string) error {
	return s.client.Del(ctx, sessionKey(id)).Err()
}
