package lock

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds our value, so an
// expired-and-reacquired lock is never released by the previous holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client *redis.Client
}

func NewRedisClient(addr string, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *RedisLocker) Close() error {
	return l.client.Close()
}

func (l *RedisLocker) AcquireLock(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, key, value, ttl).Result()
}

func (l *RedisLocker) ReleaseLock(ctx context.Context, key string, value string) error {
	err := releaseScript.Run(ctx, l.client, []string{key}, value).Err()
	if err == redis.Nil {
		return nil
	}
	return err
}
