// Package grpchealth serves the startup gate over the standard
// grpc.health.v1.Health service so gRPC-aware registries and load balancers
// see NOT_SERVING until the application has started.
//
// The status is read from the reporter on every call; this package holds no
// health state of its own.
package grpchealth

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/keithlinneman/startupgate/internal/health"
)

const defaultWatchInterval = time.Second

// Server implements healthpb.HealthServer on top of a health.StatusReporter.
type Server struct {
	healthpb.UnimplementedHealthServer

	reporter      health.StatusReporter
	services      map[string]struct{}
	watchInterval time.Duration
}

type Option func(*Server)

// WithService adds a named service answered alongside the overall "" service.
func WithService(name string) Option {
	return func(s *Server) {
		if name != "" {
			s.services[name] = struct{}{}
		}
	}
}

// WithWatchInterval sets how often Watch streams re-read the reporter.
func WithWatchInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.watchInterval = d
		}
	}
}

func NewServer(reporter health.StatusReporter, opts ...Option) *Server {
	s := &Server{
		reporter:      reporter,
		services:      map[string]struct{}{"": {}},
		watchInterval: defaultWatchInterval,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register attaches the health service to a grpc server.
func (s *Server) Register(gs *grpc.Server) {
	healthpb.RegisterHealthServer(gs, s)
}

func (s *Server) servingStatus(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	if s.reporter != nil && s.reporter.Status(ctx) != health.StatusUp {
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	return healthpb.HealthCheckResponse_SERVING
}

func (s *Server) known(service string) bool {
	_, ok := s.services[service]
	return ok
}

func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if !s.known(req.GetService()) {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", req.GetService())
	}
	return &healthpb.HealthCheckResponse{Status: s.servingStatus(ctx)}, nil
}

func (s *Server) List(ctx context.Context, _ *healthpb.HealthListRequest) (*healthpb.HealthListResponse, error) {
	st := s.servingStatus(ctx)
	out := make(map[string]*healthpb.HealthCheckResponse, len(s.services))
	for name := range s.services {
		out[name] = &healthpb.HealthCheckResponse{Status: st}
	}
	return &healthpb.HealthListResponse{Statuses: out}, nil
}

// Watch sends the current status, then again whenever it changes, until the
// client goes away. Unknown services get SERVICE_UNKNOWN and stay open, as
// the health protocol specifies.
func (s *Server) Watch(req *healthpb.HealthCheckRequest, stream healthpb.Health_WatchServer) error {
	ctx := stream.Context()

	if !s.known(req.GetService()) {
		if err := stream.Send(&healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVICE_UNKNOWN}); err != nil {
			return err
		}
		<-ctx.Done()
		return status.FromContextError(ctx.Err()).Err()
	}

	last := s.servingStatus(ctx)
	if err := stream.Send(&healthpb.HealthCheckResponse{Status: last}); err != nil {
		return err
	}

	ticker := time.NewTicker(s.watchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return status.FromContextError(ctx.Err()).Err()
		case <-ticker.C:
			cur := s.servingStatus(ctx)
			if cur == last {
				continue
			}
			last = cur
			if err := stream.Send(&healthpb.HealthCheckResponse{Status: cur}); err != nil {
				return err
			}
		}
	}
}
