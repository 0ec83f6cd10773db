package numbering

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// counters outlive their day so a late request near midnight still sees them.
const counterTTL = 48 * time.Hour

type RedisAllocator struct {
	client *redis.Client
}

func NewRedisAllocator(client *redis.Client) *RedisAllocator {
	return &RedisAllocator{client: client}
}

func (a *RedisAllocator) AllocateTransactionNumber(ctx context.Context, prefix string, tenantID string, storeID string, asOf time.Time) (string, error) {
	key := "txn:" + CounterKey(prefix, tenantID, storeID, asOf)

	pipe := a.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, counterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("allocate %s: %w", key, err)
	}
	return Format(prefix, asOf, incr.Val()), nil
}
