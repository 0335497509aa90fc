package version_test

import (
	"strings"
	"testing"

	v "github.com/keithlinneman/startupgate/internal/version"
)

func TestVCSDirtyTriState(t *testing.T) {
	orig := v.VCSDirty
	t.Cleanup(func() { v.VCSDirty = orig })

	trueVal := true
	v.VCSDirty = &trueVal
	if info := v.Get(); info.VCSDirty == nil || !*info.VCSDirty {
		t.Fatalf("VCSDirty = %v, want true", info.VCSDirty)
	}

	falseVal := false
	v.VCSDirty = &falseVal
	if info := v.Get(); info.VCSDirty == nil || *info.VCSDirty {
		t.Fatalf("VCSDirty = %v, want false", info.VCSDirty)
	}
}

func TestGet_AppName(t *testing.T) {
	if got := v.Get().AppName; got != v.AppName {
		t.Fatalf("AppName = %q, want %q", got, v.AppName)
	}
}

func TestGet_LinkTimeVersionWins(t *testing.T) {
	orig := v.Version
	t.Cleanup(func() { v.Version = orig })

	v.Version = "1.2.3"
	if got := v.Get().Version; got != "1.2.3" {
		t.Fatalf("Version = %q, want 1.2.3", got)
	}
}

func TestShort(t *testing.T) {
	dirty := true
	info := v.Info{AppName: "startupgate", Version: "1.0.0", Commit: "abc", GoVersion: "go1.24", VCSDirty: &dirty}
	s := info.Short()
	for _, want := range []string{"startupgate 1.0.0", "commit=abc", "dirty", "go=go1.24"} {
		if !strings.Contains(s, want) {
			t.Fatalf("Short() = %q, missing %q", s, want)
		}
	}
}
