package health

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestFixed(t *testing.T) {
	ctx := context.Background()
	if err := Fixed(true, "ignored").Check(ctx); err != nil {
		t.Fatalf("Fixed(true) = %v, want nil", err)
	}
	if err := Fixed(false, "db down").Check(ctx); err == nil || err.Error() != "db down" {
		t.Fatalf("Fixed(false, db down) = %v", err)
	}
	if err := Fixed(false, "").Check(ctx); err == nil || err.Error() != "unhealthy" {
		t.Fatalf("Fixed(false, \"\") = %v, want unhealthy", err)
	}
}

func TestAll(t *testing.T) {
	ctx := context.Background()
	first := errors.New("first")
	calls := 0
	counting := CheckFunc(func(context.Context) error { calls++; return nil })

	if err := All().Check(ctx); err != nil {
		t.Fatalf("empty All = %v, want nil", err)
	}
	if err := All(nil, Fixed(true, ""), counting).Check(ctx); err != nil {
		t.Fatalf("passing All = %v, want nil", err)
	}
	err := All(CheckFunc(func(context.Context) error { return first }), Fixed(false, "second"), counting).Check(ctx)
	if !errors.Is(err, first) {
		t.Fatalf("All = %v, want first failure", err)
	}
	if calls != 1 {
		t.Fatalf("All should stop at the first failure, later probe ran %d times total", calls)
	}
}

func TestShutdownGate(t *testing.T) {
	ctx := context.Background()
	var g ShutdownGate

	if err := g.Probe().Check(ctx); err != nil || g.Draining() {
		t.Fatalf("zero gate = %v draining=%v, want open", err, g.Draining())
	}

	g.Set("")
	if err := g.Probe().Check(ctx); err == nil || err.Error() != "draining" {
		t.Fatalf("Set(\"\") = %v, want draining", err)
	}

	g.Set("sigterm")
	if err := g.Probe().Check(ctx); err == nil || err.Error() != "sigterm" {
		t.Fatalf("Set(sigterm) = %v", err)
	}
	if !g.Draining() {
		t.Fatal("Draining() = false after Set")
	}
}

func TestShutdownGate_Concurrent(t *testing.T) {
	var g ShutdownGate
	p := g.Probe()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); g.Set("draining") }()
		go func() { defer wg.Done(); _ = p.Check(context.Background()) }()
	}
	wg.Wait()
	if !g.Draining() {
		t.Fatal("gate should be draining")
	}
}

func TestGated(t *testing.T) {
	ctx := context.Background()
	startup := NewStartupGate()
	var shutdown ShutdownGate
	sr := Gated(startup, shutdown.Probe())

	if st := sr.Status(ctx); st != StatusDown {
		t.Fatalf("starting = %q, want DOWN", st)
	}
	startup.OnStartupComplete(ctx)
	if st := sr.Status(ctx); st != StatusUp {
		t.Fatalf("started = %q, want UP", st)
	}
	shutdown.Set("draining")
	if st := sr.Status(ctx); st != StatusDown {
		t.Fatalf("draining = %q, want DOWN", st)
	}
	if !startup.Ready() {
		t.Fatal("draining must not touch the startup gate")
	}
}

func TestGated_NilParts(t *testing.T) {
	if st := Gated(nil, nil).Status(context.Background()); st != StatusUp {
		t.Fatalf("Gated(nil, nil) = %q, want UP", st)
	}
}
