package loopctl_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mikroscope/sidecar/internal/loopctl"
)

func TestGuardTryDone(t *testing.T) {
	var g loopctl.Guard
	if !g.Try() {
		t.Fatal("expected first Try to succeed")
	}
	if g.Try() {
		t.Fatal("expected second Try to fail while held")
	}
	g.Done()
	if !g.Try() {
		t.Fatal("expected Try to succeed after Done")
	}
}

func TestTickerSkipsOverlap(t *testing.T) {
	var calls atomic.Int32
	g := &loopctl.Guard{}
	g.Try() // simulate an already-running task

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	tk := &loopctl.Ticker{Interval: 10 * time.Millisecond, Guard: g}
	tk.Run(ctx, func(context.Context) { calls.Add(1) })

	if calls.Load() != 0 {
		t.Fatalf("expected 0 calls while guard held, got %d", calls.Load())
	}
}

func TestTickerRunsImmediatelyThenOnInterval(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()

	tk := &loopctl.Ticker{Interval: 10 * time.Millisecond}
	tk.Run(ctx, func(context.Context) { calls.Add(1) })

	if calls.Load() < 2 {
		t.Fatalf("expected at least 2 calls, got %d", calls.Load())
	}
}

func TestResettableTimerFires(t *testing.T) {
	done := make(chan struct{})
	var rt loopctl.ResettableTimer
	rt.Reset(5*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timer never fired")
	}
}

func TestResettableTimerResetCancelsPrevious(t *testing.T) {
	var fired atomic.Bool
	var rt loopctl.ResettableTimer
	rt.Reset(20*time.Millisecond, func() { fired.Store(true) })
	rt.Reset(100*time.Millisecond, func() {})

	time.Sleep(40 * time.Millisecond)
	if fired.Load() {
		t.Fatal("first timer should have been cancelled by Reset")
	}
}
