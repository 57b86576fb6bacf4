package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "cart:"

// RedisStore keeps each session cart as a JSON document with a sliding expiry.
type RedisStore struct {
	conn *redis.Client
	ttl  time.Duration
}

func NewRedisStore(conn *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{conn: conn, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, session string) (*Cart, error) {
	// GETEX slides the expiry on every read as well as on writes.
	raw, err := s.conn.GetEx(ctx, keyPrefix+session, s.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	c := New()
	if err := c.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return c, nil
}

// Save writes the cart and refreshes its expiry. An empty cart deletes the key.
func (s *RedisStore) Save(ctx context.Context, session string, c *Cart) error {
	if c.IsEmpty() {
		return s.Delete(ctx, session)
	}
	raw, err := c.MarshalJSON()
	if err != nil {
		return err
	}
	if err := s.conn.Set(ctx, keyPrefix+session, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, session string) error {
	if err := s.conn.Del(ctx, keyPrefix+session).Err(); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}
