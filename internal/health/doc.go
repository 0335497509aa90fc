// Package health provides composable health check probes, the startup and
// shutdown gates, and HTTP handlers for liveness, readiness and registry
// status endpoints.
//
// Probes are combined with [All]; [Fixed] is a static probe.
// [CheckFunc] adapts a plain function into a [Probe].
//
// [StartupGate] reports DOWN until the bootstrap sequence signals that the
// application has started, then UP for the rest of the process lifetime. It
// backs the /-/status endpoint that service registries poll.
//
// [ShutdownGate] coordinates graceful shutdown: once closed, readiness probes
// fail immediately (via atomic.Bool) so load balancers stop sending traffic
// before in-flight requests are drained. [Gated] folds a shutdown gate into a
// status reporter so registries also see DOWN while draining.
package health
