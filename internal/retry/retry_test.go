// internal/retry/retry_test.go
package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type flakyErr struct{ transient bool }

func (e flakyErr) Error() string   { return "flaky" }
func (e flakyErr) Transient() bool { return e.transient }

func TestDoRetriesTransient(t *testing.T) {
	const base = 20 * time.Millisecond
	calls := 0
	started := time.Now()
	err := Do(context.Background(), 2, base, func() error {
		calls++
		if calls < 3 {
			return flakyErr{transient: true}
		}
		return nil
	})
	if err != nil {
		t.Errorf("Do() = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	// Two failures force two backoff sleeps: base, then 2*base.
	if elapsed := time.Since(started); elapsed < 3*base {
		t.Errorf("elapsed = %v, want at least %v of backoff", elapsed, 3*base)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	want := flakyErr{transient: true}
	err := Do(context.Background(), 2, time.Millisecond, func() error {
		calls++
		return want
	})
	if !errors.Is(err, want) {
		t.Errorf("Do() = %v, want %v", err, want)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (attempts+1)", calls)
	}
}

func TestDoStopsOnPermanent(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 5, time.Millisecond, func() error {
		calls++
		return flakyErr{transient: false}
	})
	if err == nil {
		t.Fatal("Do() = nil, want error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoReturnsErrorVerbatim(t *testing.T) {
	want := fmt.Errorf("wrapped: %w", flakyErr{transient: true})
	err := Do(context.Background(), 0, time.Millisecond, func() error { return want })
	if err != want {
		t.Errorf("Do() = %v (%T), want the original error unwrapped", err, err)
	}
}

func TestDoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, 10, time.Minute, func() error {
		calls++
		cancel()
		return flakyErr{transient: true}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestTransient(t *testing.T) {
	if Transient(errors.New("plain")) {
		t.Error("plain error reported transient")
	}
	if !Transient(fmt.Errorf("outer: %w", flakyErr{transient: true})) {
		t.Error("wrapped transient error not detected")
	}
	if Transient(nil) {
		t.Error("nil reported transient")
	}
}
