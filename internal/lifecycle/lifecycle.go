// Package lifecycle runs the bootstrap sequence and delivers the
// startup-complete signal to subscribers exactly once.
//
// main registers subscribers (the startup gate, metrics, systemd notify) with
// [Notifier.Subscribe], then calls [Notifier.Run] with the ordered startup
// steps. If every step succeeds the signal fires; if any step fails or ctx is
// cancelled it never fires, and anything gated on it keeps reporting down.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/startupgate/internal/log"
	"github.com/keithlinneman/startupgate/internal/xerrors"
)

// Step is one named unit of startup work.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

type subscriber struct {
	name string
	fn   func(ctx context.Context)
}

type Options struct {
	// OnStep is called after every step with its duration and result,
	// e.g. to record prometheus metrics.
	OnStep func(name string, d time.Duration, err error)
}

// Notifier fans the startup-complete signal out to subscribers.
type Notifier struct {
	mu         sync.Mutex
	subs       []subscriber
	fired      bool
	delivering bool
	// logger from the firing context, handed to late subscribers
	logger log.Logger
	onStep func(string, time.Duration, error)
}

func New(opts Options) *Notifier {
	return &Notifier{onStep: opts.OnStep}
}

// Subscribe registers fn to run when startup completes. Subscribers run in
// registration order. Subscribing while the signal is being delivered queues
// fn behind the subscribers already waiting; subscribing after delivery has
// finished runs fn immediately on the caller's goroutine with a context that
// carries the firing logger.
func (n *Notifier) Subscribe(name string, fn func(ctx context.Context)) {
	if fn == nil {
		return
	}
	n.mu.Lock()
	if !n.fired || n.delivering {
		n.subs = append(n.subs, subscriber{name: name, fn: fn})
		n.mu.Unlock()
		return
	}
	ctx := log.WithContext(context.Background(), n.logger)
	n.mu.Unlock()

	log.FromContext(ctx).Debug(ctx, "notifying late startup subscriber", "subscriber", name)
	fn(ctx)
}

// Fire delivers the startup-complete signal. Only the first call has an
// effect. Subscribers added by other subscribers during delivery are run
// before Fire returns.
func (n *Notifier) Fire(ctx context.Context) {
	L := log.FromContext(ctx)

	n.mu.Lock()
	if n.fired {
		n.mu.Unlock()
		return
	}
	n.fired = true
	n.delivering = true
	n.logger = L
	n.mu.Unlock()

	for {
		n.mu.Lock()
		subs := n.subs
		n.subs = nil
		if len(subs) == 0 {
			n.delivering = false
			n.mu.Unlock()
			return
		}
		n.mu.Unlock()

		for _, s := range subs {
			L.Debug(ctx, "notifying startup subscriber", "subscriber", s.name)
			s.fn(ctx)
		}
	}
}

// Fired reports whether the signal has fired.
func (n *Notifier) Fired() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.fired
}

const tracerName = "github.com/keithlinneman/startupgate/internal/lifecycle"

// Run executes steps in order and fires the signal once all have succeeded.
// The first failing step aborts the sequence and its error is returned
// wrapped with the step name. The sequence and each step get a span.
func (n *Notifier) Run(ctx context.Context, steps ...Step) (err error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "startup")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "startup failed")
		}
		span.End()
	}()

	L := log.FromContext(ctx)
	start := time.Now()

	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return xerrors.Wrapf(err, "startup aborted before step %q", s.Name)
		}
		if s.Run == nil {
			continue
		}

		L.Info(ctx, "running startup step", "step", s.Name)
		d, stepErr := runStep(ctx, tracer, s)

		if n.onStep != nil {
			n.onStep(s.Name, d, stepErr)
		}
		if stepErr != nil {
			return xerrors.Wrapf(stepErr, "startup step %q", s.Name)
		}
		L.Debug(ctx, "startup step complete", "step", s.Name, "duration", d.Seconds())
	}

	L.Info(ctx, "startup complete", "duration", time.Since(start).Seconds(), "steps", len(steps))
	n.Fire(ctx)
	return nil
}

func runStep(ctx context.Context, tracer trace.Tracer, s Step) (time.Duration, error) {
	ctx, span := tracer.Start(ctx, "startup."+s.Name, trace.WithAttributes(attribute.String("startup.step", s.Name)))
	defer span.End()

	t0 := time.Now()
	err := s.Run(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return time.Since(t0), err
}

// Sleep returns a step that waits for d or until ctx is cancelled.
func Sleep(name string, d time.Duration) Step {
	return Step{
		Name: name,
		Run: func(ctx context.Context) error {
			if d <= 0 {
				return nil
			}
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-t.C:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
}
