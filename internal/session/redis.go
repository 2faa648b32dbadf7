package session

import (
	"context"
	"fmt"
	"time"

	"github.com/magabrotheeeer/streaming-reseller/internal/cache"
)

const keyPrefix = "session:"

// RedisStore хранит сессии в Redis с TTL, чтобы брошенные диалоги исчезали сами.
type RedisStore struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewRedisStore создаёт хранилище; ttl ключа равен двум таймаутам сессии.
func NewRedisStore(c *cache.Cache, timeout time.Duration) *RedisStore {
	return &RedisStore{cache: c, ttl: 2 * timeout}
}

func key(chatID string) string {
	return keyPrefix + chatID
}

// Get читает сессию.
func (r *RedisStore) Get(ctx context.Context, chatID string) (*Session, error) {
	const op = "session.RedisStore.Get"
	var s Session
	found, err := r.cache.Get(ctx, key(chatID), &s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return nil, ErrNotFound
	}
	return &s, nil
}

// Set сохраняет сессию и обновляет TTL.
func (r *RedisStore) Set(ctx context.Context, s *Session) error {
	const op = "session.RedisStore.Set"
	if err := r.cache.Set(ctx, key(s.ChatID), s, r.ttl); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Delete удаляет сессию.
func (r *RedisStore) Delete(ctx context.Context, chatID string) error {
	const op = "session.RedisStore.Delete"
	if err := r.cache.Invalidate(ctx, key(chatID)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
