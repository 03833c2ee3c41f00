package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	namespace = "countries"
	ratesKey  = "rates:usd"
)

// Redis is a Store shared across instances.
type Redis struct {
	client redis.UniversalClient
}

var _ Store = (*Redis)(nil)

// NewRedis connects using a redis:// or rediss:// URL.
func NewRedis(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Redis{client: redis.NewClient(opts)}, nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

func key() string { return namespace + ":" + ratesKey }

func (r *Redis) GetRates(ctx context.Context) (RateTable, bool, error) {
	raw, err := r.client.Get(ctx, key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get rates: %w", err)
	}

	var table RateTable
	if err := json.Unmarshal(raw, &table); err != nil {
		return nil, false, fmt.Errorf("decode cached rates: %w", err)
	}
	return table, true, nil
}

func (r *Redis) SetRates(ctx context.Context, table RateTable, ttl time.Duration) error {
	raw, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("encode rates: %w", err)
	}
	if err := r.client.Set(ctx, key(), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set rates: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
