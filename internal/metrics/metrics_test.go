package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/keithlinneman/startupgate/internal/health"
	"github.com/keithlinneman/startupgate/internal/version"
)

// test helpers

func gatherMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func mustGather(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	f := gatherMetric(t, reg, name)
	if f == nil || len(f.GetMetric()) == 0 {
		t.Fatalf("metric %q not found", name)
	}
	return f
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	return mustGather(t, reg, name).GetMetric()[0].GetCounter().GetValue()
}

func gaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	return mustGather(t, reg, name).GetMetric()[0].GetGauge().GetValue()
}

func histogramCount(t *testing.T, reg *prometheus.Registry, name string) uint64 {
	t.Helper()
	var n uint64
	for _, m := range mustGather(t, reg, name).GetMetric() {
		n += m.GetHistogram().GetSampleCount()
	}
	return n
}

func labelsOf(m *dto.Metric) map[string]string {
	out := make(map[string]string)
	for _, lp := range m.GetLabel() {
		out[lp.GetName()] = lp.GetValue()
	}
	return out
}

// New / Handler

func TestHandler_ServesRegistry(t *testing.T) {
	m := New()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", http.NoBody))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{
		"http_inflight_requests",
		"http_panic_total",
		"http_requests_rate_limited_total",
		"profiling_active",
		"startup_ready",
		"go_goroutines",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metric %q not found in /metrics output", name)
		}
	}
}

func TestNew_IsolatedRegistries(t *testing.T) {
	a, b := New(), New()
	a.IncHttpPanic()

	if v := counterValue(t, a.reg, "http_panic_total"); v != 1 {
		t.Fatalf("a http_panic_total = %v, want 1", v)
	}
	if v := counterValue(t, b.reg, "http_panic_total"); v != 0 {
		t.Fatalf("b http_panic_total = %v, want 0", v)
	}
}

func TestIncRateLimitDenied(t *testing.T) {
	m := New()
	m.IncRateLimitDenied()
	m.IncRateLimitDenied()
	if v := counterValue(t, m.reg, "http_requests_rate_limited_total"); v != 2 {
		t.Fatalf("rate_limited_total = %v, want 2", v)
	}
}

func TestSetBuildInfoFromVersion(t *testing.T) {
	m := New()
	dirty := false
	m.SetBuildInfoFromVersion("server", version.Info{
		AppName:   "startupgate",
		Version:   "1.0.0",
		Commit:    "abc123",
		GoVersion: "go1.24",
		VCSDirty:  &dirty,
	})

	f := mustGather(t, m.reg, "build_info")
	labels := labelsOf(f.GetMetric()[0])
	want := map[string]string{
		"app":       "startupgate",
		"component": "server",
		"version":   "1.0.0",
		"commit":    "abc123",
		"vcs_dirty": "false",
	}
	for k, v := range want {
		if labels[k] != v {
			t.Fatalf("label %s = %q, want %q", k, labels[k], v)
		}
	}
	if g := f.GetMetric()[0].GetGauge().GetValue(); g != 1 {
		t.Fatalf("build_info = %v, want 1", g)
	}
}

func TestSetBuildInfoFromVersion_NilVCSDirty(t *testing.T) {
	m := New()
	m.SetBuildInfoFromVersion("server", version.Info{AppName: "startupgate"})

	labels := labelsOf(mustGather(t, m.reg, "build_info").GetMetric()[0])
	if labels["vcs_dirty"] != "unknown" {
		t.Fatalf("vcs_dirty = %q, want unknown", labels["vcs_dirty"])
	}
}

func TestSetProfilingActive(t *testing.T) {
	m := New()
	m.SetProfilingActive(true)
	if v := gaugeValue(t, m.reg, "profiling_active"); v != 1 {
		t.Fatalf("profiling_active = %v, want 1", v)
	}
	m.SetProfilingActive(false)
	if v := gaugeValue(t, m.reg, "profiling_active"); v != 0 {
		t.Fatalf("profiling_active = %v, want 0", v)
	}
}

// startup

func TestSetStartupReady(t *testing.T) {
	m := New()
	if v := gaugeValue(t, m.reg, "startup_ready"); v != 0 {
		t.Fatalf("startup_ready = %v, want 0 before startup", v)
	}
	m.SetStartupReady(true)
	if v := gaugeValue(t, m.reg, "startup_ready"); v != 1 {
		t.Fatalf("startup_ready = %v, want 1", v)
	}
}

func TestObserveStartupStep(t *testing.T) {
	m := New()
	m.ObserveStartupStep("warmup", 250*time.Millisecond, nil)
	m.ObserveStartupStep("migrate", time.Second, errors.New("boom"))

	if n := histogramCount(t, m.reg, "startup_step_duration_seconds"); n != 2 {
		t.Fatalf("step observations = %d, want 2", n)
	}

	f := mustGather(t, m.reg, "startup_step_failures_total")
	if len(f.GetMetric()) != 1 {
		t.Fatalf("failure series = %d, want 1", len(f.GetMetric()))
	}
	if step := labelsOf(f.GetMetric()[0])["step"]; step != "migrate" {
		t.Fatalf("failed step = %q, want migrate", step)
	}
}

func TestCountStatus(t *testing.T) {
	m := New()
	g := health.NewStartupGate()
	sr := m.CountStatus(g)
	ctx := context.Background()

	if st := sr.Status(ctx); st != health.StatusDown {
		t.Fatalf("status = %q, want DOWN", st)
	}
	g.OnStartupComplete(ctx)
	sr.Status(ctx)
	sr.Status(ctx)

	got := map[string]float64{}
	for _, metric := range mustGather(t, m.reg, "health_status_checks_total").GetMetric() {
		got[labelsOf(metric)["status"]] = metric.GetCounter().GetValue()
	}
	if got["DOWN"] != 1 || got["UP"] != 2 {
		t.Fatalf("checks = %v, want DOWN=1 UP=2", got)
	}
}

func TestCountStatus_NilReporter(t *testing.T) {
	m := New()
	if st := m.CountStatus(nil).Status(context.Background()); st != health.StatusUp {
		t.Fatalf("status = %q, want UP", st)
	}
}
