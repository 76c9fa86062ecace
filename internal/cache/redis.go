package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis adapts a redis client to Store. Tags are plain sets holding member
// keys; tag sets carry their own TTL so they do not grow without bound.
type Redis struct {
	client *redis.Client
	logger *zap.Logger
	tagTTL time.Duration
}

func NewRedis(addr string, logger *zap.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, cache degraded to memory", zap.Error(err))
		return nil, err
	}
	logger.Info("connected to redis", zap.String("addr", addr))
	return &Redis{client: client, logger: logger, tagTTL: 24 * time.Hour}, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return err
	}
	for _, t := range tags {
		tagKey := "tag:" + t
		pipe := r.client.TxPipeline()
		pipe.SAdd(ctx, tagKey, key)
		pipe.Expire(ctx, tagKey, r.tagTTL)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return v, err
}

func (r *Redis) KeysByTag(ctx context.Context, tag string) ([]string, error) {
	return r.client.SMembers(ctx, "tag:"+tag).Result()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
