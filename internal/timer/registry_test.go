package timer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	logx "bumpbot/pkg/logx"
)

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestRegisterOnceFires(t *testing.T) {
	r := New(logx.Nop())
	defer r.StopAll()

	var fired atomic.Bool
	r.RegisterOnce("a", 10*time.Millisecond, func(context.Context) error {
		fired.Store(true)
		return nil
	})
	waitUntil(t, 2*time.Second, fired.Load)
}

func TestRegisterOnceNegativeDelayFiresImmediately(t *testing.T) {
	r := New(logx.Nop())
	defer r.StopAll()

	var fired atomic.Bool
	r.RegisterOnce("a", -time.Hour, func(context.Context) error {
		fired.Store(true)
		return nil
	})
	waitUntil(t, 2*time.Second, fired.Load)
}

func TestRegisterOnceReplaces(t *testing.T) {
	r := New(logx.Nop())
	defer r.StopAll()

	var first, second atomic.Bool
	r.RegisterOnce("a", 50*time.Millisecond, func(context.Context) error {
		first.Store(true)
		return nil
	})
	r.RegisterOnce("a", 10*time.Millisecond, func(context.Context) error {
		second.Store(true)
		return nil
	})

	waitUntil(t, 2*time.Second, second.Load)
	time.Sleep(100 * time.Millisecond)
	if first.Load() {
		t.Fatalf("replaced one-shot still fired")
	}
}

func TestCancel(t *testing.T) {
	r := New(logx.Nop())
	defer r.StopAll()

	var fired atomic.Bool
	r.RegisterOnce("a", 50*time.Millisecond, func(context.Context) error {
		fired.Store(true)
		return nil
	})
	if !r.Cancel("a") {
		t.Fatalf("cancel of registered job returned false")
	}
	if r.Cancel("a") {
		t.Fatalf("second cancel returned true")
	}
	time.Sleep(120 * time.Millisecond)
	if fired.Load() {
		t.Fatalf("cancelled one-shot still fired")
	}
}

func TestCancelWinsRaceWithExpiredTimer(t *testing.T) {
	r := New(logx.Nop())
	defer r.StopAll()

	var fired atomic.Bool
	r.RegisterOnce("a", 10*time.Millisecond, func(context.Context) error {
		fired.Store(true)
		return nil
	})

	// Hold the registry lock across the timer's expiry so the firing
	// goroutine is parked on it, then cancel while it waits. The cancel must
	// win: a removed job's task body never executes.
	r.mu.Lock()
	time.Sleep(50 * time.Millisecond)
	if !r.cancelLocked("a") {
		r.mu.Unlock()
		t.Fatalf("cancel of registered job returned false")
	}
	r.mu.Unlock()

	time.Sleep(100 * time.Millisecond)
	if fired.Load() {
		t.Fatalf("cancelled one-shot ran its task after expiry")
	}
}

func TestReplaceWinsRaceWithExpiredTimer(t *testing.T) {
	r := New(logx.Nop())
	defer r.StopAll()

	var old, replacement atomic.Bool
	r.RegisterOnce("a", 10*time.Millisecond, func(context.Context) error {
		old.Store(true)
		return nil
	})

	// Same window as above, but the racing caller re-registers the id instead
	// of cancelling it. Only the replacement may run.
	r.mu.Lock()
	time.Sleep(50 * time.Millisecond)
	r.registerOnceLocked("a", 10*time.Millisecond, func(context.Context) error {
		replacement.Store(true)
		return nil
	})
	r.mu.Unlock()

	waitUntil(t, 2*time.Second, replacement.Load)
	time.Sleep(100 * time.Millisecond)
	if old.Load() {
		t.Fatalf("replaced one-shot ran its task after expiry")
	}
}

func TestTaskFailureContained(t *testing.T) {
	r := New(logx.Nop())
	defer r.StopAll()

	var ok atomic.Bool
	r.RegisterOnce("bad", 0, func(context.Context) error {
		return errors.New("boom")
	})
	r.RegisterOnce("worse", 0, func(context.Context) error {
		panic("boom")
	})
	r.RegisterOnce("good", 10*time.Millisecond, func(context.Context) error {
		ok.Store(true)
		return nil
	})
	waitUntil(t, 2*time.Second, ok.Load)
}

func TestOneShotCanReregisterItself(t *testing.T) {
	r := New(logx.Nop())
	defer r.StopAll()

	var again atomic.Bool
	r.RegisterOnce("a", 0, func(context.Context) error {
		// The entry self-removed before this body ran, so this is a fresh
		// registration rather than a replacement of a still-pending job.
		r.RegisterOnce("a", 10*time.Millisecond, func(context.Context) error {
			again.Store(true)
			return nil
		})
		return nil
	})
	waitUntil(t, 2*time.Second, again.Load)
}

func TestRegisterRepeatingNeedsStart(t *testing.T) {
	r := New(logx.Nop())
	if err := r.RegisterRepeating("x", "@hourly", func(context.Context) error { return nil }); err == nil {
		t.Fatalf("expected error before Start")
	}
}

func TestRegisterRepeating(t *testing.T) {
	r := New(logx.Nop())
	r.Start(context.Background())
	defer r.StopAll()

	if err := r.RegisterRepeating("x", "not a spec", func(context.Context) error { return nil }); err == nil {
		t.Fatalf("expected error for invalid spec")
	}

	var ticks atomic.Int32
	if err := r.RegisterRepeating("tick", "@every 1s", func(context.Context) error {
		ticks.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("register repeating: %v", err)
	}
	waitUntil(t, 3*time.Second, func() bool { return ticks.Load() >= 1 })

	if !r.Cancel("tick") {
		t.Fatalf("cancel of repeating job returned false")
	}
}
