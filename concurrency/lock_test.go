package concurrency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestAcquireRelease(t *testing.T) {
	lm := NewLockManager(LockPolicyWait)
	ctx := context.Background()

	if err := lm.Acquire(ctx, "person:1"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	lm.Release("person:1")

	// Doit pouvoir ré-acquérir après release
	if err := lm.Acquire(ctx, "person:1"); err != nil {
		t.Fatalf("re-acquire: %v", err)
	}
	lm.Release("person:1")

	if n := lm.Held(); n != 0 {
		t.Errorf("expected no tracked keys after release, got %d", n)
	}
}

func TestLockPolicyFail(t *testing.T) {
	lm := NewLockManager(LockPolicyFail)
	ctx := context.Background()

	if err := lm.Acquire(ctx, "k"); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	// Deuxième acquire doit échouer immédiatement
	err := lm.Acquire(ctx, "k")
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}

	lm.Release("k")

	// Après release, doit pouvoir acquérir
	if err := lm.Acquire(ctx, "k"); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	lm.Release("k")
}

func TestLockPolicyWait(t *testing.T) {
	lm := NewLockManager(LockPolicyWait)
	lm.SetTimeout(2 * time.Second)
	ctx := context.Background()

	if err := lm.Acquire(ctx, "k"); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// Goroutine qui attend puis libère
	go func() {
		time.Sleep(100 * time.Millisecond)
		lm.Release("k")
	}()

	start := time.Now()
	if err := lm.Acquire(ctx, "k"); err != nil {
		t.Fatalf("acquire after wait: %v", err)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Error("expected the second acquire to wait")
	}
	lm.Release("k")
}

func TestLockTimeout(t *testing.T) {
	lm := NewLockManager(LockPolicyWait)
	lm.SetTimeout(50 * time.Millisecond)
	ctx := context.Background()

	if err := lm.Acquire(ctx, "k"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := lm.Acquire(ctx, "k"); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked on timeout, got %v", err)
	}

	// Le timeout ne doit pas laisser de verrou fantôme
	lm.Release("k")
	if err := lm.Acquire(ctx, "k"); err != nil {
		t.Fatalf("acquire after timeout: %v", err)
	}
	lm.Release("k")
}

func TestLockContextCancel(t *testing.T) {
	lm := NewLockManager(LockPolicyWait)
	if err := lm.Acquire(context.Background(), "k"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := lm.Acquire(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	lm.Release("k")
}

func TestConcurrentAcquire(t *testing.T) {
	lm := NewLockManager(LockPolicyWait)
	ctx := context.Background()
	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := lm.Acquire(ctx, "shared"); err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			counter++
			lm.Release("shared")
		}()
	}
	wg.Wait()
	if counter != 20 {
		t.Errorf("counter = %d, want 20", counter)
	}
}
