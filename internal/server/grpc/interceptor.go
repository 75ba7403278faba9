package grpc

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/dmitrijs2005/dropkeeper/internal/common"
	"github.com/dmitrijs2005/dropkeeper/internal/server/auth"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// protectedMethods need a valid session token.
var protectedMethods = map[string]struct{}{
	FetchSubmissionMethod: {},
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	if _, ok := protectedMethods[info.FullMethod]; ok {

		var accessToken string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			values := md.Get(common.AccessTokenHeaderName)
			if len(values) > 0 {
				accessToken = values[0]
			}
		}
		if len(accessToken) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing token")
		}

		session, err := s.auth.Authenticate(accessToken)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}

		ctx = auth.WithSession(ctx, session)
	}

	return handler(ctx, req)
}

func (s *GRPCServer) rateLimitInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if info.FullMethod == LoginMethod && !s.limiter.Allow(peerKey(ctx)) {
		return nil, status.Error(codes.ResourceExhausted, "too many requests")
	}
	return handler(ctx, req)
}

func (s *GRPCServer) metricsInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.metrics.ObserveRequest(info.FullMethod, status.Code(err).String(), time.Since(start))
	return resp, err
}

// peerKey identifies the caller by remote host, without the port.
func peerKey(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

const (
	limiterIdleTTL = 10 * time.Minute
	limiterSweepAt = 4096
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// peerLimiter keeps one token bucket per peer. Idle buckets are dropped
// once the table grows past limiterSweepAt.
type peerLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	peers   map[string]*limiterEntry
	now     func() time.Time
	enabled bool
}

func newPeerLimiter(limit rate.Limit, burst int) *peerLimiter {
	return &peerLimiter{
		limit:   limit,
		burst:   burst,
		peers:   make(map[string]*limiterEntry),
		now:     time.Now,
		enabled: limit > 0 && burst > 0,
	}
}

func (l *peerLimiter) Allow(key string) bool {
	if !l.enabled {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.peers[key]
	if !ok {
		if len(l.peers) >= limiterSweepAt {
			l.sweep(now)
		}
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.peers[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (l *peerLimiter) sweep(now time.Time) {
	for k, e := range l.peers {
		if now.Sub(e.lastSeen) > limiterIdleTTL {
			delete(l.peers, k)
		}
	}
}
