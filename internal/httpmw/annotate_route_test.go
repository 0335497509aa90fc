package httpmw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func serveTraced(t *testing.T, h http.Handler, method, path string) sdktrace.ReadOnlySpan {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "http.server")
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(method, path, http.NoBody).WithContext(ctx))
	span.End()

	ended := sr.Ended()
	if len(ended) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(ended))
	}
	return ended[0]
}

func routeAttr(s sdktrace.ReadOnlySpan) string {
	for _, kv := range s.Attributes() {
		if kv.Key == attribute.Key("http.route") {
			return kv.Value.AsString()
		}
	}
	return ""
}

func TestAnnotateHTTPRoute_MatchedRoute(t *testing.T) {
	r := chi.NewRouter()
	r.Use(AnnotateHTTPRoute)
	r.Get("/-/status", func(w http.ResponseWriter, r *http.Request) {})

	s := serveTraced(t, r, "GET", "/-/status")

	if s.Name() != "GET /-/status" {
		t.Fatalf("span name = %q, want GET /-/status", s.Name())
	}
	if got := routeAttr(s); got != "/-/status" {
		t.Fatalf("http.route = %q, want /-/status", got)
	}
}

func TestAnnotateHTTPRoute_Unmatched(t *testing.T) {
	r := chi.NewRouter()
	r.Use(AnnotateHTTPRoute)
	r.Get("/-/status", func(w http.ResponseWriter, r *http.Request) {})

	s := serveTraced(t, r, "GET", "/wp-login.php")

	if s.Name() != "GET unmatched" {
		t.Fatalf("span name = %q, want GET unmatched", s.Name())
	}
}

func TestAnnotateHTTPRoute_NoSpan(t *testing.T) {
	called := false
	h := AnnotateHTTPRoute(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", http.NoBody))
	if !called {
		t.Fatal("next handler not called")
	}
}
