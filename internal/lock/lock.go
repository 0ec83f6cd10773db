// Package lock serializes check-then-write sequences that must not interleave
// across requests, such as validating a return quota and inserting the row.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrBusy = errors.New("resource busy, please try again")

const (
	acquireAttempts = 3
	retryDelay      = 100 * time.Millisecond
)

type Locker interface {
	AcquireLock(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string, value string) error
}

// With runs fn while holding key. The lock is retried a few times before
// giving up with ErrBusy.
func With(ctx context.Context, locker Locker, key string, ttl time.Duration, fn func() error) error {
	value := uuid.NewString()

	acquired := false
	var lastErr error
	for i := 0; i < acquireAttempts; i++ {
		ok, err := locker.AcquireLock(ctx, key, value, ttl)
		if err != nil {
			lastErr = err
		}
		if ok {
			acquired = true
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	if !acquired {
		if lastErr != nil {
			return errors.Join(ErrBusy, lastErr)
		}
		return ErrBusy
	}

	// Release with a fresh context so a cancelled request still frees the key.
	defer func() {
		_ = locker.ReleaseLock(context.WithoutCancel(ctx), key, value)
	}()
	return fn()
}

// LocalLocker is an in-process Locker for single-instance deployments.
type LocalLocker struct {
	mu      sync.Mutex
	holders map[string]localHold
}

type localHold struct {
	value     string
	expiresAt time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{holders: make(map[string]localHold)}
}

func (l *LocalLocker) AcquireLock(_ context.Context, key string, value string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if hold, ok := l.holders[key]; ok && now.Before(hold.expiresAt) {
		return false, nil
	}
	l.holders[key] = localHold{value: value, expiresAt: now.Add(ttl)}
	return true, nil
}

func (l *LocalLocker) ReleaseLock(_ context.Context, key string, value string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if hold, ok := l.holders[key]; ok && hold.value == value {
		delete(l.holders, key)
	}
	return nil
}
