package health

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/keithlinneman/startupgate/internal/log"
)

func TestStartupGate_ZeroValueIsDown(t *testing.T) {
	var g StartupGate
	if got := g.Status(context.Background()); got != StatusDown {
		t.Fatalf("status = %q, want DOWN", got)
	}
	if g.Ready() {
		t.Fatal("zero value gate should not be ready")
	}
}

func TestStartupGate_DownUntilStartupComplete(t *testing.T) {
	g := NewStartupGate()
	for i := 0; i < 50; i++ {
		if got := g.Status(context.Background()); got != StatusDown {
			t.Fatalf("query %d: status = %q, want DOWN", i, got)
		}
	}
}

func TestStartupGate_UpAfterStartupComplete(t *testing.T) {
	g := NewStartupGate()
	g.OnStartupComplete(context.Background())

	for i := 0; i < 50; i++ {
		if got := g.Status(context.Background()); got != StatusUp {
			t.Fatalf("query %d: status = %q, want UP", i, got)
		}
	}
	if !g.Ready() {
		t.Fatal("Ready() = false after startup complete")
	}
}

func TestStartupGate_QueriesThenStartup(t *testing.T) {
	g := NewStartupGate()
	ctx := context.Background()

	got := []Status{g.Status(ctx), g.Status(ctx)}
	g.OnStartupComplete(ctx)
	got = append(got, g.Status(ctx))

	want := []Status{StatusDown, StatusDown, StatusUp}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sequence = %v, want %v", got, want)
		}
	}
}

func TestStartupGate_DoubleStartupComplete(t *testing.T) {
	g := NewStartupGate()
	ctx := context.Background()

	g.OnStartupComplete(ctx)
	g.OnStartupComplete(ctx)

	if got := g.Status(ctx); got != StatusUp {
		t.Fatalf("status = %q, want UP", got)
	}
}

func TestStartupGate_NeverRevertsToDown(t *testing.T) {
	g := NewStartupGate()
	ctx := context.Background()
	g.OnStartupComplete(ctx)

	for i := 0; i < 10; i++ {
		g.OnStartupComplete(ctx)
		if got := g.Status(ctx); got != StatusUp {
			t.Fatalf("iteration %d: status = %q, want UP", i, got)
		}
	}
}

func TestStartupGate_LogsTransitionOnce(t *testing.T) {
	var buf bytes.Buffer
	L, err := log.New(log.Options{App: "test", Writer: &buf})
	if err != nil {
		t.Fatalf("log.New: %v", err)
	}
	ctx := log.WithContext(context.Background(), L)

	g := NewStartupGate()
	g.OnStartupComplete(ctx)
	g.OnStartupComplete(ctx)
	g.OnStartupComplete(ctx)

	if n := strings.Count(buf.String(), "application has started"); n != 1 {
		t.Fatalf("transition logged %d times, want 1\n%s", n, buf.String())
	}
}

func TestStartupGate_DownQueryLogsAtDebug(t *testing.T) {
	var buf bytes.Buffer
	L, err := log.New(log.Options{App: "test", Writer: &buf})
	if err != nil {
		t.Fatalf("log.New: %v", err)
	}
	ctx := log.WithContext(context.Background(), L)

	g := NewStartupGate()
	g.Status(ctx)
	if buf.Len() != 0 {
		t.Fatalf("down query should not log at info level, got %q", buf.String())
	}
}

func TestStartupGate_ConcurrentAccess(t *testing.T) {
	g := NewStartupGate()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			g.OnStartupComplete(ctx)
		}()
		go func() {
			defer wg.Done()
			st := g.Status(ctx)
			if st != StatusUp && st != StatusDown {
				t.Errorf("unexpected status %q", st)
			}
		}()
	}
	wg.Wait()

	if got := g.Status(ctx); got != StatusUp {
		t.Fatalf("status after all completions = %q, want UP", got)
	}
}

func TestStartupGate_ObservedUpAfterReturnInOtherGoroutines(t *testing.T) {
	g := NewStartupGate()
	ctx := context.Background()
	g.OnStartupComplete(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := g.Status(ctx); got != StatusUp {
				t.Errorf("status = %q, want UP", got)
			}
		}()
	}
	wg.Wait()
}

// Probe

func TestStartupGate_Probe(t *testing.T) {
	g := NewStartupGate()
	p := g.Probe()

	err := p.Check(context.Background())
	if err == nil {
		t.Fatal("probe should fail while starting")
	}
	if err.Error() != "starting" {
		t.Fatalf("reason = %q, want 'starting'", err.Error())
	}

	g.OnStartupComplete(context.Background())
	if err := p.Check(context.Background()); err != nil {
		t.Fatalf("probe should pass after startup, got %v", err)
	}
}

func TestAll_WithStartupAndShutdownGates(t *testing.T) {
	var sg ShutdownGate
	g := NewStartupGate()
	p := All(g.Probe(), sg.Probe())
	ctx := context.Background()

	if err := p.Check(ctx); err == nil || err.Error() != "starting" {
		t.Fatalf("before startup: err = %v, want 'starting'", err)
	}

	g.OnStartupComplete(ctx)
	if err := p.Check(ctx); err != nil {
		t.Fatalf("after startup: err = %v, want nil", err)
	}

	sg.Set("draining")
	if err := p.Check(ctx); err == nil || err.Error() != "draining" {
		t.Fatalf("while draining: err = %v, want 'draining'", err)
	}
}

func TestStatusFunc_ImplementsStatusReporter(t *testing.T) {
	var sr StatusReporter = StatusFunc(func(context.Context) Status { return StatusUp })
	if sr.Status(context.Background()) != StatusUp {
		t.Fatal("StatusFunc should return its value")
	}
}
