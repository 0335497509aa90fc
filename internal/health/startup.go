package health

import (
	"context"
	"sync/atomic"

	"github.com/keithlinneman/startupgate/internal/log"
	"github.com/keithlinneman/startupgate/internal/xerrors"
)

// Status is the health vocabulary service registries expect.
type Status string

const (
	StatusUp   Status = "UP"
	StatusDown Status = "DOWN"
)

// StatusReporter is anything that can answer a registry health poll.
type StatusReporter interface {
	Status(ctx context.Context) Status
}

// StatusFunc adapts a function into a StatusReporter.
type StatusFunc func(context.Context) Status

func (f StatusFunc) Status(ctx context.Context) Status { return f(ctx) }

// StartupGate reports DOWN until the application signals that startup has
// completed, then UP for the rest of the process lifetime.
//
// Some registries flag an instance OUT_OF_SERVICE when the first health poll
// lands before the app is ready, and ignore every UP after that. Reporting an
// explicit DOWN during startup overrides that state so the later UP is honored.
//
// The zero value is a gate in the starting state. There is no way back from
// UP to DOWN; use ShutdownGate for draining.
type StartupGate struct {
	up atomic.Bool
}

// NewStartupGate returns a gate in the starting state.
func NewStartupGate() *StartupGate { return &StartupGate{} }

// OnStartupComplete marks the application as up. Safe to call more than once;
// only the first call logs.
func (g *StartupGate) OnStartupComplete(ctx context.Context) {
	if g.up.CompareAndSwap(false, true) {
		log.FromContext(ctx).Info(ctx, "application has started, reporting status up")
	}
}

// Ready reports whether startup has completed.
func (g *StartupGate) Ready() bool { return g.up.Load() }

// Status returns DOWN while starting and UP once startup has completed.
func (g *StartupGate) Status(ctx context.Context) Status {
	if !g.up.Load() {
		log.FromContext(ctx).Debug(ctx, "reporting status down, application has not finished starting")
		return StatusDown
	}
	return StatusUp
}

// Probe fails with "starting" until startup has completed.
func (g *StartupGate) Probe() CheckFunc {
	return func(context.Context) error {
		if g.up.Load() {
			return nil
		}
		return xerrors.New("starting")
	}
}
