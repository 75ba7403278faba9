package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/dropkeeper/internal/logging"
	"github.com/dmitrijs2005/dropkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/dropkeeper/internal/server/services"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// RateLimit bounds Login calls per peer.
type RateLimit struct {
	PerSecond float64
	Burst     int
}

type GRPCServer struct {
	address     string
	auth        *services.AuthService
	submissions *services.SubmissionService
	metrics     *metrics.Metrics
	logger      logging.Logger
	limiter     *peerLimiter
}

func NewgGRPCServer(a string, l logging.Logger, as *services.AuthService, ss *services.SubmissionService, mx *metrics.Metrics, rl RateLimit) (*GRPCServer, error) {
	return &GRPCServer{
		address:     a,
		logger:      l.With("module", "grpc_server"),
		auth:        as,
		submissions: ss,
		metrics:     mx,
		limiter:     newPeerLimiter(rate.Limit(rl.PerSecond), rl.Burst),
	}, nil
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {

	// creates gRPC-server
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		s.metricsInterceptor,
		s.rateLimitInterceptor,
		s.accessTokenInterceptor,
	))

	// registers services
	srv.RegisterService(&JournalistServiceDesc, s)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gPRC server...")
		hs.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
