// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis is a Redis-backed Cache for sharing entries between machines.
type Redis struct {
	client *redis.Client
	logger zerolog.Logger
	ttl    time.Duration
	prefix string
	counters
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string        // Redis server address (host:port)
	Password string        // optional
	DB       int           // database number
	TTL      time.Duration // entry expiry, 0 = keep forever
	Prefix   string        // key namespace, default "cdict:"
}

const redisOpTimeout = 2 * time.Second

// NewRedis creates a Redis-backed cache and verifies connectivity.
func NewRedis(config RedisConfig, logger zerolog.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	prefix := config.Prefix
	if prefix == "" {
		prefix = "cdict:"
	}
	logger.Info().
		Str("addr", config.Addr).
		Int("db", config.DB).
		Msg("connected to redis cache")

	return &Redis{
		client: client,
		logger: logger,
		ttl:    config.TTL,
		prefix: prefix,
	}, nil
}

func (c *Redis) key(id string) string { return c.prefix + id }

func (c *Redis) Get(ctx context.Context, id string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.miss()
		return nil, false, nil
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("id", id).Msg("redis get failed")
		c.miss()
		return nil, false, fmt.Errorf("redis get %s: %w", id, err)
	}
	c.hit()
	return data, true, nil
}

func (c *Redis) Put(ctx context.Context, id string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	if err := c.client.Set(ctx, c.key(id), data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("id", id).Msg("redis set failed")
		return fmt.Errorf("redis put %s: %w", id, err)
	}
	c.put()
	return nil
}

func (c *Redis) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	n, err := c.client.Del(ctx, c.key(id)).Result()
	if err != nil {
		c.logger.Warn().Err(err).Str("id", id).Msg("redis delete failed")
		return fmt.Errorf("redis delete %s: %w", id, err)
	}
	if n > 0 {
		c.delete()
	}
	return nil
}

func (c *Redis) Has(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	n, err := c.client.Exists(ctx, c.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("redis has %s: %w", id, err)
	}
	return n > 0, nil
}

func (c *Redis) Stats() Stats {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	size := -1
	if n, err := c.client.DBSize(ctx).Result(); err == nil {
		size = int(n)
	} else {
		c.logger.Warn().Err(err).Msg("redis dbsize failed")
	}
	return c.snapshot(size)
}

func (c *Redis) Close() error { return c.client.Close() }

// HealthCheck reports whether the server is reachable.
func (c *Redis) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

var _ Cache = (*Redis)(nil)
