// Package healthhttp mounts the health and status routes on the application
// router, so callers that only reach the public port can still see the
// startup state.
package healthhttp

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/startupgate/internal/health"
	"github.com/keithlinneman/startupgate/internal/httpmw"
	"github.com/keithlinneman/startupgate/internal/version"
)

// API registers the /-/ routes on a chi router. Nil probes and a nil status
// reporter count as healthy.
type API struct {
	Health    health.Probe
	Readiness health.Probe
	Status    health.StatusReporter
	Version   func() version.Info
}

func NewAPI(liveness, readiness health.Probe, status health.StatusReporter) *API {
	return &API{
		Health:    liveness,
		Readiness: readiness,
		Status:    status,
		Version:   version.Get,
	}
}

// RegisterRoutes attaches /-/ping, /-/healthy, /-/ready, /-/status and
// /-/version.
func (api *API) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httpmw.Scope("health"))

		// answers as long as the process is serving http at all
		r.Get("/-/ping", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("pong\n"))
		})

		r.Get("/-/healthy", health.HealthzHandler(api.Health))
		r.Get("/-/ready", health.ReadyzHandler(api.Readiness))
		r.Get("/-/status", health.StatusHandler(api.Status))
		r.Get("/-/version", api.versionHandler)
	})
}

func (api *API) versionHandler(w http.ResponseWriter, _ *http.Request) {
	get := api.Version
	if get == nil {
		get = version.Get
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(get())
}
