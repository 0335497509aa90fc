package main

import (
	"context"
	"net/http"

	"github.com/keithlinneman/startupgate/internal/health"
	"github.com/keithlinneman/startupgate/internal/lifecycle"
	"github.com/keithlinneman/startupgate/internal/log"
	"github.com/keithlinneman/startupgate/internal/metrics"
)

// gates is the startup and shutdown state every health surface reads.
// Everything reports DOWN until the notifier fires, and again once draining.
type gates struct {
	startup  *health.StartupGate
	shutdown *health.ShutdownGate
	notifier *lifecycle.Notifier

	readiness health.Probe
	// status answers HTTP polls and is counted in health_status_checks_total.
	status health.StatusReporter
	// grpcStatus is neither counted nor logged, Watch streams poll it on a
	// ticker.
	grpcStatus health.StatusReporter
}

func newGates(m *metrics.ServerMetrics, notifyReady func() error) *gates {
	g := &gates{
		startup:  health.NewStartupGate(),
		shutdown: &health.ShutdownGate{},
		notifier: lifecycle.New(lifecycle.Options{OnStep: m.ObserveStartupStep}),
	}
	g.readiness = health.All(g.shutdown.Probe(), g.startup.Probe())
	g.status = m.CountStatus(health.Gated(g.startup, g.shutdown.Probe()))
	g.grpcStatus = health.StatusFunc(func(context.Context) health.Status {
		if g.shutdown.Draining() || !g.startup.Ready() {
			return health.StatusDown
		}
		return health.StatusUp
	})

	g.notifier.Subscribe("startup-gate", g.startup.OnStartupComplete)
	g.notifier.Subscribe("metrics", func(context.Context) { m.SetStartupReady(true) })
	if notifyReady != nil {
		g.notifier.Subscribe("systemd", func(ctx context.Context) {
			if err := notifyReady(); err != nil {
				// worst case systemd kills us after its start timeout
				log.FromContext(ctx).Warn(ctx, "failed to notify systemd of readiness", "error", err)
			}
		})
	}
	return g
}

// rateLimitExempt lets registry and orchestrator polling through, since many
// instances behind one NAT share an address. /-/ping, /-/version and unknown
// paths are still limited.
func rateLimitExempt(r *http.Request) bool {
	switch r.URL.Path {
	case "/-/status", "/-/ready", "/-/healthy":
		return true
	}
	return false
}
