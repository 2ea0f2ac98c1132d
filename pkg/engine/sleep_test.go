package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSleep_Resolves(t *testing.T) {
	start := time.Now()
	if err := Sleep(context.Background(), 20*time.Millisecond, nil, 0); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("resolved too early: %v", elapsed)
	}
}

func TestSleep_ZeroDuration(t *testing.T) {
	if err := Sleep(context.Background(), 0, nil, 0); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Sleep(ctx, time.Hour, nil, 0)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancellation took too long: %v", elapsed)
	}
}

func TestSleep_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, 0, nil, 0); !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestSleep_PauseDefersResolution(t *testing.T) {
	var paused atomic.Bool
	paused.Store(true)

	go func() {
		time.Sleep(80 * time.Millisecond)
		paused.Store(false)
	}()

	start := time.Now()
	err := Sleep(context.Background(), 10*time.Millisecond, paused.Load, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("expected resolution after unpause, took %v", elapsed)
	}
}

func TestSleep_PauseClearedBeforeExpiry(t *testing.T) {
	var paused atomic.Bool
	paused.Store(true)
	go func() {
		time.Sleep(5 * time.Millisecond)
		paused.Store(false)
	}()

	start := time.Now()
	if err := Sleep(context.Background(), 40*time.Millisecond, paused.Load, 5*time.Millisecond); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < 40*time.Millisecond {
		t.Errorf("pause must not shorten the wait, took %v", elapsed)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("pause cleared before expiry must not extend the wait, took %v", elapsed)
	}
}

func TestSleep_CancelWhilePaused(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	err := Sleep(ctx, time.Millisecond, func() bool { return true }, 5*time.Millisecond)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}
