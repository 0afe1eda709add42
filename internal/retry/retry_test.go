package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoReturnsFirstSuccess(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), Policy{MaxAttempts: 3, InitialDelay: time.Second, Sleep: noSleep}, func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got != "ok" || calls != 1 {
		t.Fatalf("got %q after %d calls", got, calls)
	}
}

func TestDoExhaustionCountsAndDelays(t *testing.T) {
	var slept []time.Duration
	calls := 0
	boom := errors.New("boom")

	policy := Policy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}
	_, err := Do(context.Background(), policy, func(context.Context) (int, error) {
		calls++
		return 0, boom
	})
	if calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", calls)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected aggregate error wrapping last failure, got %v", err)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(slept) != len(want) {
		t.Fatalf("expected %d sleeps, got %v", len(want), slept)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Fatalf("sleep %d = %v, want %v", i, slept[i], want[i])
		}
	}
}

func TestDoRecoversMidway(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, Sleep: noSleep}, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Fatalf("got %d, %v", got, err)
	}
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	policy := Policy{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		Sleep: func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}
	_, err := Do(ctx, policy, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("boom")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 attempt before cancel, got %d", calls)
	}
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{Sleep: noSleep}, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("boom")
	})
	if calls != 1 || err == nil {
		t.Fatalf("expected single attempt failure, got calls=%d err=%v", calls, err)
	}
}

func noSleep(context.Context, time.Duration) error { return nil }
