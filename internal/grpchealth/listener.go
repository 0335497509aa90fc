package grpchealth

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"

	"github.com/keithlinneman/startupgate/internal/health"
	"github.com/keithlinneman/startupgate/internal/log"
	"github.com/keithlinneman/startupgate/internal/xerrors"
)

type Options struct {
	Port          int
	Service       string
	WatchInterval time.Duration
	Reporter      health.StatusReporter
}

// Start gRPC health listener
// Returns stop(ctx) for graceful shutdown
func Start(ctx context.Context, L log.Logger, opts Options) (func(context.Context) error, error) {
	port := opts.Port
	if port == 0 {
		port = 9090
	}
	addr := fmt.Sprintf(":%d", port)

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, xerrors.Wrapf(err, "could not listen for grpc health on addr=%v", addr)
	}

	gs := grpc.NewServer()
	NewServer(opts.Reporter,
		WithService(opts.Service),
		WithWatchInterval(opts.WatchInterval),
	).Register(gs)

	go func() {
		L.Info(ctx, "grpc health server listening", "addr", addr, "service", opts.Service)
		if err := gs.Serve(ln); err != nil && err != grpc.ErrServerStopped {
			L.Error(ctx, err, "grpc health server error")
		}
	}()

	var once sync.Once
	stop := func(sctx context.Context) error {
		once.Do(func() {
			L.Info(sctx, "grpc health server shutting down")
			c, cancel := context.WithTimeout(sctx, 5*time.Second)
			defer cancel()

			// Watch streams only end when clients leave, so fall back to a hard stop
			done := make(chan struct{})
			go func() {
				gs.GracefulStop()
				close(done)
			}()
			select {
			case <-done:
			case <-c.Done():
				gs.Stop()
				<-done
			}
		})
		return nil
	}
	return stop, nil
}
