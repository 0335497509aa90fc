package log

import (
	"context"
	"io"
	"testing"
)

func TestFromContext_ReturnsStoredLogger(t *testing.T) {
	l, _ := New(Options{App: "test", Writer: io.Discard})
	ctx := WithContext(context.Background(), l)

	if got := FromContext(ctx); got != l {
		t.Fatal("FromContext did not return the stored logger")
	}
}

func TestFromContext_EmptyContextReturnsNop(t *testing.T) {
	if _, ok := FromContext(context.Background()).(nopLogger); !ok {
		t.Fatal("empty context should yield the nop logger")
	}
}

func TestFromContext_NilLoggerReturnsNop(t *testing.T) {
	ctx := WithContext(context.Background(), nil)
	if FromContext(ctx) == nil {
		t.Fatal("FromContext returned nil")
	}
}

func TestWithContext_DoesNotAffectParent(t *testing.T) {
	parent := context.Background()
	l, _ := New(Options{App: "test", Writer: io.Discard})
	_ = WithContext(parent, l)

	if _, ok := FromContext(parent).(nopLogger); !ok {
		t.Fatal("parent context should not carry the child's logger")
	}
}

func TestNop_Chains(t *testing.T) {
	l := Nop().With("a", 1).With("odd")
	ctx := context.Background()
	l.Debug(ctx, "x")
	l.Info(ctx, "x")
	l.Warn(ctx, "x")
	l.Error(ctx, nil, "x")
	if err := l.Sync(); err != nil {
		t.Fatalf("Sync() = %v, want nil", err)
	}
}
