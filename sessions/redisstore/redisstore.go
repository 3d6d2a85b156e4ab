// Package redisstore is a sessions.Store backed by Redis, letting the
// initialization flag survive a request being routed to a different
// process than the one that handled that session's initialize call.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/relaymcp/relay/sessions"
)

// Config configures the Redis connection and key layout. Fields carry
// envdecode tags so a deployment can populate them from the environment.
type Config struct {
	RedisAddr string `env:"REDIS_ADDR,default=localhost:6379"`
	KeyPrefix string `env:"SESSIONS_KEY_PREFIX,default=relay:sessions:"`
}

// Store is a Redis-backed sessions.Store: each session's initialized flag
// is a key set with an expiry equal to its TTL.
type Store struct {
	client    *redis.Client
	keyPrefix string
}

var _ sessions.Store = (*Store)(nil)

// New builds a Store, verifying connectivity with a Ping.
func New(cfg Config) (*Store, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "relay:sessions:"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redisstore: ping: %w", err)
	}
	return &Store{client: client, keyPrefix: prefix}, nil
}

// Close closes the underlying Redis client.
func (s *Store) Close() error { return s.client.Close() }

func (s *Store) key(sessionID string) string {
	return s.keyPrefix + "init:" + sessionID
}

func (s *Store) IsInitialized(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("redisstore: exists: %w", err)
	}
	return n > 0, nil
}

func (s *Store) MarkInitialized(ctx context.Context, sessionID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(sessionID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("redisstore: set: %w", err)
	}
	return nil
}
