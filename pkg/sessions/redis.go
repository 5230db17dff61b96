// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces session keys in Redis.
const DefaultKeyPrefix = "oauthd:session:"

// RedisStore is a Redis-backed session store for distributed deployments.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

var _ Store = (*RedisStore)(nil)

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	// Addr is the Redis server address.
	Addr string

	// KeyPrefix namespaces this server's session keys. Empty takes
	// DefaultKeyPrefix.
	KeyPrefix string

	// TTL bounds entry lifetime. Zero takes DefaultTTL.
	TTL time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return NewRedisStoreWithClient(client, cfg.KeyPrefix, cfg.TTL), nil
}

// NewRedisStoreWithClient wraps an existing Redis client. Tests use this
// with a miniredis-backed client.
func NewRedisStoreWithClient(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

// Close closes the underlying Redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// Get returns the value stored under key for the session.
func (r *RedisStore) Get(ctx context.Context, sessionID, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.key(sessionID, key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading session key: %w", err)
	}
	return value, true, nil
}

// Set stores a value under key for the session with the configured TTL.
func (r *RedisStore) Set(ctx context.Context, sessionID, key, value string) error {
	if err := r.client.Set(ctx, r.key(sessionID, key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("writing session key: %w", err)
	}
	return nil
}

// Forget removes key from the session.
func (r *RedisStore) Forget(ctx context.Context, sessionID, key string) error {
	if err := r.client.Del(ctx, r.key(sessionID, key)).Err(); err != nil {
		return fmt.Errorf("deleting session key: %w", err)
	}
	return nil
}

func (r *RedisStore) key(sessionID, key string) string {
	return r.keyPrefix + sessionID + ":" + key
}
