package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/luxwatch/storefront/internal/identity"
)

// RedisStore persists the session snapshot under a single Redis key with no expiry.
type RedisStore struct {
	client *redis.Client
	key    string
	logger *slog.Logger
}

// NewRedisStore builds a Redis-backed session store. An empty key selects DefaultKey.
func NewRedisStore(client *redis.Client, key string, logger *slog.Logger) *RedisStore {
	if key == "" {
		key = DefaultKey
	}
	return &RedisStore{client: client, key: key, logger: logger}
}

// Key returns the Redis key holding the snapshot.
func (s *RedisStore) Key() string {
	return s.key
}

func (s *RedisStore) Save(ctx context.Context, id identity.Identity) error {
	raw, err := encode(id)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context) (*identity.Identity, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	id, err := decode(raw)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("discarding unreadable session snapshot", slog.String("key", s.key), slog.Any("error", err))
		}
		if delErr := s.client.Del(ctx, s.key).Err(); delErr != nil {
			return nil, fmt.Errorf("clear corrupt session: %w", delErr)
		}
		return nil, nil
	}
	return id, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
