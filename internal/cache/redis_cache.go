package cache

import (
	"context"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const resetKeyPrefix = "salestrack:reset:"

type RedisResetTokens struct {
	client *redis.Client
}

func NewRedisResetTokens(addr string, password string, db int) *RedisResetTokens {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisResetTokens{client: client}
}

func (c *RedisResetTokens) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisResetTokens) Close() error {
	return c.client.Close()
}

func (c *RedisResetTokens) Put(ctx context.Context, token string, sellerID int64, ttl time.Duration) error {
	return c.client.Set(ctx, resetKeyPrefix+token, strconv.FormatInt(sellerID, 10), ttl).Err()
}

func (c *RedisResetTokens) Take(ctx context.Context, token string) (int64, bool, error) {
	val, err := c.client.GetDel(ctx, resetKeyPrefix+token).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	sellerID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return sellerID, true, nil
}
