package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/keithlinneman/startupgate/internal/cfg"
	"github.com/keithlinneman/startupgate/internal/grpchealth"
	"github.com/keithlinneman/startupgate/internal/health"
	"github.com/keithlinneman/startupgate/internal/healthhttp"
	"github.com/keithlinneman/startupgate/internal/httpmw"
	"github.com/keithlinneman/startupgate/internal/httpserver"
	"github.com/keithlinneman/startupgate/internal/lifecycle"
	"github.com/keithlinneman/startupgate/internal/log"
	"github.com/keithlinneman/startupgate/internal/metrics"
	"github.com/keithlinneman/startupgate/internal/opshttp"
	"github.com/keithlinneman/startupgate/internal/otelx"
	"github.com/keithlinneman/startupgate/internal/prof"
	"github.com/keithlinneman/startupgate/internal/ratelimit"
	"github.com/keithlinneman/startupgate/internal/xerrors"
	v "github.com/keithlinneman/startupgate/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vi := v.Get()

	var conf cfg.App
	var showVersion bool

	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(vi.Short())
		os.Exit(0)
	}

	cfg.FillFromEnv(flag.CommandLine, cfg.EnvPrefix, func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %s: %v\n", conf.LogLevel, err)
		os.Exit(1)
	}
	stackLvl, err := log.ParseLevel(conf.StacktraceLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid stacktrace level %s: %v\n", conf.StacktraceLevel, err)
		os.Exit(1)
	}
	lg, err := log.New(log.Options{
		App:               v.AppName,
		Version:           vi.Version,
		Level:             lvl,
		StacktraceLevel:   stackLvl,
		JsonFormat:        conf.LogJSON,
		MaxErrorLinks:     conf.MaxErrorLinks,
		IncludeErrorLinks: conf.IncludeErrorLinks,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	defer lg.Sync()
	L := lg.With("component", "server")
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_id", vi.BuildId,
		"go_version", vi.GoVersion,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"grpc_port", conf.GRPCPort,
		"grpc_service", conf.GRPCService,
		"startup_delay", conf.StartupDelay.String(),
		"drain_period", conf.DrainPeriod.String(),
		"rate_limit_rps", conf.RateLimitRPS,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
	)

	m := metrics.New()
	m.SetBuildInfoFromVersion("server", vi)

	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.AppName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"app":       v.AppName,
			"component": "server",
			"version":   vi.Version,
			"commit":    vi.Commit,
		},
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	m.SetProfilingActive(err == nil && conf.EnablePyroscope)
	defer stopProf()

	// collector is expected on localhost
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:   conf.EnableTracing,
		Endpoint:  conf.OTLPEndpoint,
		Insecure:  true,
		Sample:    conf.TraceSample,
		Service:   v.AppName,
		Component: "server",
		Version:   vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed, tracing disabled")
		shutdownOTEL = func(context.Context) error { return nil }
	}
	defer func() { _ = shutdownOTEL(context.Background()) }()

	g := newGates(m, notifySystemd)

	opsHTTPStop, err := opshttp.Start(ctx, L, opshttp.Options{
		Port:         conf.AdminPort,
		Metrics:      m.Handler(),
		EnablePprof:  conf.EnablePprof,
		Health:       health.Fixed(true, ""),
		Readiness:    g.readiness,
		Status:       g.status,
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		os.Exit(1)
	}
	defer func() { _ = opsHTTPStop(context.Background()) }()

	var rateLimitMW func(http.Handler) http.Handler
	if conf.RateLimitRPS > 0 {
		limiter := ratelimit.New(ctx,
			ratelimit.WithRate(conf.RateLimitRPS, conf.RateLimitBurst),
			ratelimit.WithExempt(rateLimitExempt),
			ratelimit.WithOnDenied(func(string) { m.IncRateLimitDenied() }),
			ratelimit.WithOnFirstDenied(func(ip string) {
				L.Warn(ctx, "rate limit triggered", "ip", ip)
			}),
		)
		rateLimitMW = limiter.Middleware
	}

	api := healthhttp.NewAPI(health.Fixed(true, ""), g.readiness, g.status)
	appHTTPStop, err := httpserver.Start(ctx, httpserver.Options{
		Logger:       L,
		Port:         conf.HTTPPort,
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		MetricsMW:    m.Middleware,
		RateLimitMW:  rateLimitMW,
		ClientIPOpts: httpmw.ClientIPOptions{TrustedHops: conf.TrustedProxyHops},
		APIRoutes:    api.RegisterRoutes,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start app http listener")
		os.Exit(1)
	}
	defer func() { _ = appHTTPStop(context.Background()) }()

	grpcStop := func(context.Context) error { return nil }
	if conf.GRPCPort > 0 {
		grpcStop, err = grpchealth.Start(ctx, L, grpchealth.Options{
			Port:          conf.GRPCPort,
			Service:       conf.GRPCService,
			WatchInterval: conf.WatchInterval,
			Reporter:      g.grpcStatus,
		})
		if err != nil {
			L.Error(ctx, err, "failed to start grpc health listener")
			os.Exit(1)
		}
	}
	defer func() { _ = grpcStop(context.Background()) }()

	go func() {
		err := g.notifier.Run(ctx,
			lifecycle.Sleep("warmup", conf.StartupDelay),
			selfCheck(conf.HTTPPort),
		)
		if err != nil {
			// nothing retries startup, the instance stays DOWN until replaced
			L.Error(ctx, err, "startup did not complete, reporting DOWN")
		}
	}()

	<-ctx.Done()
	stop()

	L.Info(context.Background(), "shutdown signal received", "started", g.notifier.Fired())
	g.shutdown.Set("draining")

	L.Info(context.Background(), "draining before shutdown", "drain_period", conf.DrainPeriod.String())
	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(conf.DrainPeriod):
		L.Info(context.Background(), "drain period complete")
	case <-forceCh:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
	signal.Stop(forceCh)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := grpcStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "grpc health server shutdown")
	}
	if err := appHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "app http server shutdown")
	}
	if err := opsHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "ops http server shutdown")
	}
	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "otel shutdown")
	}

	L.Info(context.Background(), "shutdown complete")
}

// selfCheck confirms the app listener answers on loopback before the
// instance is announced as UP.
func selfCheck(port int) lifecycle.Step {
	client := &http.Client{
		Timeout:   2 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	url := fmt.Sprintf("http://127.0.0.1:%d/-/ping", port)

	return lifecycle.Step{
		Name: "self-check",
		Run: func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
			if err != nil {
				return xerrors.Wrap(err, "build self-check request")
			}
			resp, err := client.Do(req)
			if err != nil {
				return xerrors.Wrapf(err, "self-check %s", url)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return xerrors.Newf("self-check %s: status %d", url, resp.StatusCode)
			}
			return nil
		},
	}
}
