package health

import (
	"context"
	"sync/atomic"

	"github.com/keithlinneman/startupgate/internal/xerrors"
)

// Probe is evaluated at request time: nil means pass, an error fails with
// its message as the reason.
type Probe interface{ Check(context.Context) error }

// CheckFunc adapts a function into a Probe.
type CheckFunc func(context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// Fixed always passes, or always fails with reason ("unhealthy" if empty).
func Fixed(ok bool, reason string) CheckFunc {
	if ok {
		return func(context.Context) error { return nil }
	}
	if reason == "" {
		reason = "unhealthy"
	}
	return func(context.Context) error { return xerrors.New(reason) }
}

// All passes only if every non-nil probe passes. It stops at the first failure.
func All(ps ...Probe) CheckFunc {
	return func(ctx context.Context) error {
		for _, p := range ps {
			if p == nil {
				continue
			}
			if err := p.Check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// Gated reports DOWN whenever p fails and defers to sr otherwise. main uses
// it so a draining instance tells registries DOWN on /-/status too.
func Gated(sr StatusReporter, p Probe) StatusReporter {
	return StatusFunc(func(ctx context.Context) Status {
		if p != nil && p.Check(ctx) != nil {
			return StatusDown
		}
		if sr == nil {
			return StatusUp
		}
		return sr.Status(ctx)
	})
}

// ShutdownGate fails readiness once the process starts draining. Like
// StartupGate it only moves one way.
type ShutdownGate struct {
	draining atomic.Bool
	reason   atomic.Value
}

func (g *ShutdownGate) Set(reason string) {
	g.reason.Store(reason)
	g.draining.Store(true)
}

func (g *ShutdownGate) Draining() bool { return g.draining.Load() }

func (g *ShutdownGate) Probe() CheckFunc {
	return func(context.Context) error {
		if !g.draining.Load() {
			return nil
		}
		r, _ := g.reason.Load().(string)
		if r == "" {
			r = "draining"
		}
		return xerrors.New(r)
	}
}
