package overridestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisKey = "chess-persona:overrides"

// Redis keeps the document under a single key.
type Redis struct {
	client *redis.Client
	key    string
}

func NewRedis(ctx context.Context, addr, key string) (*Redis, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("empty redis address")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedisWithClient(client, key), nil
}

// NewRedisWithClient wraps an existing client; the store takes ownership.
func NewRedisWithClient(client *redis.Client, key string) *Redis {
	if key == "" {
		key = defaultRedisKey
	}
	return &Redis{client: client, key: key}
}

func (r *Redis) Load(ctx context.Context) ([]byte, error) {
	doc, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return doc, err
}

func (r *Redis) Save(ctx context.Context, doc []byte) error {
	return r.client.Set(ctx, r.key, doc, 0).Err()
}

func (r *Redis) Close() error { return r.client.Close() }
