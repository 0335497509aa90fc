package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keithlinneman/startupgate/internal/health"
	"github.com/keithlinneman/startupgate/internal/version"
)

type ServerMetrics struct {
	reg                  *prometheus.Registry
	handler              http.Handler
	inflight             prometheus.Gauge
	reqTotal             *prometheus.CounterVec
	reqDur               *prometheus.HistogramVec
	respBytes            *prometheus.HistogramVec
	errorsTotal          *prometheus.CounterVec
	httpPanicTotal       prometheus.Counter
	buildInfo            *prometheus.GaugeVec
	ratelimitDeniedTotal prometheus.Counter
	profilingActive      prometheus.Gauge

	// startup
	startupReady        prometheus.Gauge
	startupStepDuration *prometheus.HistogramVec
	startupStepFailures *prometheus.CounterVec
	statusChecksTotal   *prometheus.CounterVec
}

// New returns a fresh registry + standard collectors + HTTP and startup metrics
// safe labels only (method, route, code, step) to avoid cardinality explosions
func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &ServerMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"method", "route"}),
		respBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response size by method and route",
			Buckets: []float64{16, 64, 256, 1024, 4096, 16384},
		}, []string{"method", "route"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total 5xx HTTP server errors by method and route (SLI)",
		}, []string{"method", "route"}),
		httpPanicTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Total number of recovered httpserver panics",
		}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "component", "version", "commit", "build_date", "vcs_dirty", "go_version"}),
		ratelimitDeniedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_requests_rate_limited_total",
			Help: "Total requests rejected by rate limiter",
		}),
		profilingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "profiling_active",
			Help: "Whether continuous profiling is active (1) or disabled/failed (0)",
		}),
		startupReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "startup_ready",
			Help: "Whether the startup-complete signal has fired (1) or not (0)",
		}),
		startupStepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "startup_step_duration_seconds",
			Help:    "Duration of each startup step",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		}, []string{"step"}),
		startupStepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "startup_step_failures_total",
			Help: "Total startup steps that returned an error",
		}, []string{"step"}),
		statusChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "health_status_checks_total",
			Help: "Total HTTP status polls by reported status, gRPC Watch ticks are not counted",
		}, []string{"status"}),
	}
	reg.MustRegister(
		m.inflight,
		m.reqTotal,
		m.reqDur,
		m.respBytes,
		m.errorsTotal,
		m.httpPanicTotal,
		m.buildInfo,
		m.ratelimitDeniedTotal,
		m.profilingActive,
		m.startupReady,
		m.startupStepDuration,
		m.startupStepFailures,
		m.statusChecksTotal,
	)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	m.reg = reg
	return m
}

func (m *ServerMetrics) Handler() http.Handler {
	return m.handler
}

func (m *ServerMetrics) IncHttpPanic() {
	m.httpPanicTotal.Inc()
}

func (m *ServerMetrics) IncRateLimitDenied() {
	m.ratelimitDeniedTotal.Inc()
}

// set once at startup.
func (m *ServerMetrics) SetBuildInfoFromVersion(component string, vi version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.With(prometheus.Labels{
		"app":        vi.AppName,
		"component":  component,
		"version":    vi.Version,
		"commit":     vi.Commit,
		"build_date": vi.BuildDate,
		"go_version": vi.GoVersion,
		"vcs_dirty":  dirty,
	}).Set(1)
}

func (m *ServerMetrics) SetProfilingActive(active bool) {
	setBool(m.profilingActive, active)
}

func (m *ServerMetrics) SetStartupReady(ready bool) {
	setBool(m.startupReady, ready)
}

// ObserveStartupStep matches lifecycle.Options.OnStep.
func (m *ServerMetrics) ObserveStartupStep(step string, d time.Duration, err error) {
	m.startupStepDuration.WithLabelValues(step).Observe(d.Seconds())
	if err != nil {
		m.startupStepFailures.WithLabelValues(step).Inc()
	}
}

// CountStatus wraps a reporter so every status query is counted by result.
func (m *ServerMetrics) CountStatus(sr health.StatusReporter) health.StatusReporter {
	return health.StatusFunc(func(ctx context.Context) health.Status {
		st := health.StatusUp
		if sr != nil {
			st = sr.Status(ctx)
		}
		m.statusChecksTotal.WithLabelValues(string(st)).Inc()
		return st
	})
}

func setBool(g prometheus.Gauge, v bool) {
	if v {
		g.Set(1)
	} else {
		g.Set(0)
	}
}
