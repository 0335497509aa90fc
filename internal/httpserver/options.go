package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/startupgate/internal/httpmw"
	"github.com/keithlinneman/startupgate/internal/log"
)

type Options struct {
	Logger       log.Logger
	Port         int
	UseRecoverMW bool
	OnPanic      func()
	MetricsMW    func(http.Handler) http.Handler
	RateLimitMW  func(http.Handler) http.Handler
	ClientIPOpts httpmw.ClientIPOptions

	// APIRoutes mounts routes on the router, healthhttp.API.RegisterRoutes in main.
	APIRoutes func(chi.Router)
}
