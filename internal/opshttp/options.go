package opshttp

import (
	"net/http"

	"github.com/keithlinneman/startupgate/internal/health"
)

type Options struct {
	Port         int
	Metrics      http.Handler
	EnablePprof  bool
	Health       health.Probe
	Readiness    health.Probe
	Status       health.StatusReporter // registry status at /-/status, nil = always UP
	UseRecoverMW bool
	OnPanic      func() // Optional callback for when panics are recovered, e.g. to trigger alerts or increment prometheus counters, etc.
}
