// Package loopctl provides the timer primitives used by the sidecar's
// background tasks: the incremental indexer's auto-ingest timer and the
// maintenance loop run on a Ticker, the alerting scheduler pairs a Guard
// with a ResettableTimer, and the ingest queue's flush timer is a
// ResettableTimer. The first three are guarded by an in-flight flag so
// overlapping ticks are no-ops rather than concurrent runs; ingest queue
// flushes are not guarded and can overlap.
package loopctl

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Guard is a single-flight flag: Try reports whether the caller acquired
// the guard (false if another run is already in flight), and Done releases
// it. Safe for concurrent use.
type Guard struct {
	inFlight atomic.Bool
}

// Try attempts to acquire the guard. Returns false if already held.
func (g *Guard) Try() bool {
	return g.inFlight.CompareAndSwap(false, true)
}

// Done releases the guard.
func (g *Guard) Done() {
	g.inFlight.Store(false)
}

// Running reports whether the guard is currently held.
func (g *Guard) Running() bool {
	return g.inFlight.Load()
}

// Ticker runs action on a fixed interval until ctx is cancelled, skipping
// any tick that arrives while the previous run (or some other caller of the
// same Guard) is still in flight. It always runs action once immediately
// before entering the ticking loop.
type Ticker struct {
	Interval time.Duration
	Guard    *Guard
	Logger   *slog.Logger
	Name     string
}

// Run blocks until ctx is done.
func (t *Ticker) Run(ctx context.Context, action func(context.Context)) {
	log := t.Logger
	if log == nil {
		log = slog.Default()
	}
	if t.Guard == nil {
		t.Guard = &Guard{}
	}

	fire := func() {
		if !t.Guard.Try() {
			log.Debug("loopctl: tick skipped, already running", "task", t.Name)
			return
		}
		defer t.Guard.Done()
		action(ctx)
	}

	fire()

	if t.Interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fire()
		}
	}
}

// ResettableTimer models a one-shot timer that can be (re)armed repeatedly —
// the ingest queue's coalescing flush window and the alerting manager's
// reconfigure-reschedule both need exactly this.
type ResettableTimer struct {
	timer *time.Timer
}

// Reset (re)arms the timer to fire after d, stopping any previous pending fire.
func (r *ResettableTimer) Reset(d time.Duration, fn func()) {
	r.Stop()
	r.timer = time.AfterFunc(d, fn)
}

// Stop cancels any pending fire. Safe to call when nothing is armed.
func (r *ResettableTimer) Stop() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}
