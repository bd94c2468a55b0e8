package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrLockBusy = errors.New("lock busy")

// WithLock serializes read-modify-write on a shared storage key. Two
// devices at the same table can hit the same key concurrently; without
// this the last writer silently drops the other's append.
func WithLock(ctx context.Context, rdb *redis.Client, key string, fn func(ctx context.Context) error) error {
	lockKey := fmt.Sprintf(KeyLock, key)

	acquired := false
	for i := 0; i < 20; i++ {
		ok, err := rdb.SetNX(ctx, lockKey, "1", TTLLock).Result()
		if err != nil {
			return err
		}
		if ok {
			acquired = true
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	if !acquired {
		return ErrLockBusy
	}
	defer rdb.Del(context.Background(), lockKey)

	return fn(ctx)
}
