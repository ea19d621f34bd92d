// File: telemetry/redis.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig holds connection settings for the Redis snapshot source.
type RedisConfig struct {
	Addr     string        // Redis address, default "localhost:6379"
	Password string        // Redis password, default ""
	DB       int           // Redis database number, default 0
	Key      string        // key holding the JSON snapshot, default "pbxlive:snapshot"
	MaxAge   time.Duration // reject older snapshots; 0 disables the check
}

// DefaultRedisConfig returns a RedisConfig with sensible defaults.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr: "localhost:6379",
		Key:  "pbxlive:snapshot",
	}
}

// stringGetter is the part of the Redis client the provider needs.
type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisProvider reads the collector's latest snapshot from a Redis string key.
type RedisProvider struct {
	client *redis.Client
	getter stringGetter
	key    string
	maxAge time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// NewRedisProvider creates a provider backed by a new Redis client.
// No connection is made until the first call.
func NewRedisProvider(cfg *RedisConfig, logger zerolog.Logger) *RedisProvider {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisProvider{
		client: client,
		getter: client,
		key:    cfg.Key,
		maxAge: cfg.MaxAge,
		now:    time.Now,
		logger: logger.With().Str("component", "redis-provider").Logger(),
	}
}

// Ping checks connectivity.
func (p *RedisProvider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// GetSnapshot fetches and decodes the snapshot key.
func (p *RedisProvider) GetSnapshot(ctx context.Context) (*Snapshot, error) {
	data, err := p.getter.Get(ctx, p.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: key %s", ErrNoSnapshot, p.key)
		}
		return nil, fmt.Errorf("redis get %s: %w", p.key, err)
	}
	snap, err := DecodeJSON(data)
	if err != nil {
		return nil, err
	}

	now := p.now()
	if snap.Timestamp.IsZero() {
		snap.Timestamp = now
	} else if p.maxAge > 0 && now.Sub(snap.Timestamp) > p.maxAge {
		return nil, fmt.Errorf("%w: age %s", ErrStaleSnapshot, now.Sub(snap.Timestamp).Truncate(time.Second))
	}

	p.logger.Debug().
		Int("queues", len(snap.Queues)).
		Int("active_calls", len(snap.ActiveCalls)).
		Msg("snapshot fetched")
	return snap, nil
}

// Close releases the Redis client.
func (p *RedisProvider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}
