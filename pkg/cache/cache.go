package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Valkey is the caching surface used by the authorization layer. Verdict
// memoization and handler-level result caching both go through it.
type Valkey interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// DeletePattern removes every key matching a glob pattern. Used for
	// invalidation after policy writes; implemented with SCAN so it is
	// safe against large keyspaces.
	DeletePattern(ctx context.Context, pattern string) error
}

type valkeyImpl struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to a single-node Valkey/Redis instance and verifies the
// connection before returning.
func New(addr string, db int, password string, defaultTTL time.Duration) (Valkey, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	return &valkeyImpl{client: client, ttl: defaultTTL}, nil
}

func (v *valkeyImpl) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := v.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (v *valkeyImpl) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	var data []byte
	switch x := value.(type) {
	case []byte:
		data = x
	case string:
		data = []byte(x)
	default:
		j, err := json.Marshal(x)
		if err != nil {
			return fmt.Errorf("marshal value for key %s: %w", key, err)
		}
		data = j
	}
	if ttl <= 0 {
		ttl = v.ttl
	}
	return v.client.Set(ctx, key, data, ttl).Err()
}

func (v *valkeyImpl) Delete(ctx context.Context, key string) error {
	return v.client.Del(ctx, key).Err()
}

func (v *valkeyImpl) DeletePattern(ctx context.Context, pattern string) error {
	iter := v.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return v.client.Del(ctx, keys...).Err()
}
