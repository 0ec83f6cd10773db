package lock

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"
)

func TestLocalLockerRejectsSecondHolder(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	ok, err := l.AcquireLock(ctx, "k", "a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, ok=%v err=%v", ok, err)
	}
	ok, _ = l.AcquireLock(ctx, "k", "b", time.Minute)
	if ok {
		t.Fatalf("expected second acquire to fail while held")
	}

	// wrong value must not release
	_ = l.ReleaseLock(ctx, "k", "b")
	if ok, _ := l.AcquireLock(ctx, "k", "c", time.Minute); ok {
		t.Fatalf("expected lock to still be held after foreign release")
	}

	_ = l.ReleaseLock(ctx, "k", "a")
	if ok, _ := l.AcquireLock(ctx, "k", "c", time.Minute); !ok {
		t.Fatalf("expected acquire after release to succeed")
	}
}

func TestLocalLockerExpires(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()
	_, _ = l.AcquireLock(ctx, "k", "a", time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if ok, _ := l.AcquireLock(ctx, "k", "b", time.Minute); !ok {
		t.Fatalf("expected expired lock to be reacquirable")
	}
}

func TestWithSerializesCallers(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	var mu sync.Mutex
	inside := 0
	maxInside := 0
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = With(ctx, l, "quota:s1", time.Second, func() error {
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()
				time.Sleep(20 * time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	if maxInside != 1 {
		t.Fatalf("expected at most one holder at a time, saw %d", maxInside)
	}
}

func TestWithReturnsBusyWhenHeld(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()
	_, _ = l.AcquireLock(ctx, "k", "other", time.Minute)

	called := false
	err := With(ctx, l, "k", time.Second, func() error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if called {
		t.Fatalf("fn must not run without the lock")
	}
}

func TestRedisLockerRoundTrip(t *testing.T) {
	addr := os.Getenv("KASIRLEDGER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set KASIRLEDGER_TEST_REDIS_ADDR to run redis integration test")
	}
	l := NewRedisLocker(NewRedisClient(addr, "", 0))
	t.Cleanup(func() { _ = l.Close() })

	ctx := context.Background()
	key := "lock:test:" + time.Now().Format("150405.000000")
	ok, err := l.AcquireLock(ctx, key, "a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}
	if ok, _ := l.AcquireLock(ctx, key, "b", time.Minute); ok {
		t.Fatalf("expected second acquire to fail")
	}
	if err := l.ReleaseLock(ctx, key, "a"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := l.AcquireLock(ctx, key, "b", time.Minute); !ok {
		t.Fatalf("expected acquire after release")
	}
	_ = l.ReleaseLock(ctx, key, "b")
}
