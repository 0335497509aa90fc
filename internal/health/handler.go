package health

import (
	"encoding/json"
	"net/http"
)

// HealthzHandler: 200 OK when probe passes, 503 otherwise (with reason)
func HealthzHandler(p Probe) http.HandlerFunc {
	return probeHandler(p, "ok\n")
}

// ReadyzHandler: 200 OK when probe passes, 503 otherwise (with reason)
func ReadyzHandler(p Probe) http.HandlerFunc {
	return probeHandler(p, "ready\n")
}

func probeHandler(p Probe, okBody string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			if err := p.Check(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(okBody))
	}
}

type statusBody struct {
	Status Status `json:"status"`
}

// StatusHandler serves {"status":"UP"} with 200 or {"status":"DOWN"} with 503.
// Registries that poll an actuator-style endpoint read either the body or the code.
// A nil reporter is treated as UP.
func StatusHandler(sr StatusReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := StatusUp
		if sr != nil {
			st = sr.Status(r.Context())
		}
		code := http.StatusOK
		if st != StatusUp {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(statusBody{Status: st})
	}
}
