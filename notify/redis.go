package notify

import (
	"context"

	"github.com/redis/go-redis/v9"
)

type redisPusher struct {
	client redis.Cmdable
}

func (p redisPusher) LPush(ctx context.Context, key string, values ...any) error {
	return p.client.LPush(ctx, key, values...).Err()
}

// NewRedisOutbox creates an outbox that writes to key on client
func NewRedisOutbox(client redis.Cmdable, key string) *RedisOutbox {
	return NewRedisOutboxWithPusher(redisPusher{client: client}, key)
}

// RedisOptions builds client options from the address and password
func RedisOptions(addr, password string) *redis.Options {
	return &redis.Options{
		Addr:     addr,
		Password: password,
	}
}
