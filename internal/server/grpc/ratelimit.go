package grpcserver

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"

	"github.com/and161185/reseller-portal/internal/errs"
)

// sweepAt is the bucket count above which idle peers are evicted.
const sweepAt = 4096

// PeerLimiter keeps one token bucket per remote host.
type PeerLimiter struct {
	mu    sync.Mutex
	limit rate.Limit
	burst int
	idle  time.Duration
	peers map[string]*bucket
	now   func() time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewPeerLimiter allows perSecond calls per host with the given burst.
// A non-positive rate disables limiting.
func NewPeerLimiter(perSecond float64, burst int) *PeerLimiter {
	if burst < 1 {
		burst = 1
	}
	return &PeerLimiter{
		limit: rate.Limit(perSecond),
		burst: burst,
		idle:  10 * time.Minute,
		peers: make(map[string]*bucket),
		now:   time.Now,
	}
}

// Allow takes one token from key's bucket.
func (l *PeerLimiter) Allow(key string) bool {
	if l == nil || l.limit <= 0 {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.peers[key]
	if !ok {
		if len(l.peers) >= sweepAt {
			l.sweep(now)
		}
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.peers[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

func (l *PeerLimiter) sweep(now time.Time) {
	for k, b := range l.peers {
		if now.Sub(b.seen) > l.idle {
			delete(l.peers, k)
		}
	}
}

// Unary returns the interceptor form of the limiter.
func (l *PeerLimiter) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if !l.Allow(remoteIP(ctx)) {
			return nil, toStatus(errs.ErrRateLimited)
		}
		return next(ctx, req)
	}
}

// remoteIP is the caller's host without port, or "" when unknown.
func remoteIP(ctx context.Context) string {
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
