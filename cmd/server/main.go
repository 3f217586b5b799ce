// Command portal-server starts the reseller portal gRPC server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	portalv1 "github.com/and161185/reseller-portal/api/portal/v1"
	"github.com/and161185/reseller-portal/internal/config"
	pkgcrypto "github.com/and161185/reseller-portal/internal/crypto"
	"github.com/and161185/reseller-portal/internal/limiter"
	"github.com/and161185/reseller-portal/internal/migrate"
	"github.com/and161185/reseller-portal/internal/obs"
	"github.com/and161185/reseller-portal/internal/repository"
	"github.com/and161185/reseller-portal/internal/repository/memory"
	"github.com/and161185/reseller-portal/internal/repository/postgres"
	grpcserver "github.com/and161185/reseller-portal/internal/server/grpc"
	"github.com/and161185/reseller-portal/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// main loads configuration, opens the store and serves until SIGINT/SIGTERM.
func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	logger, _ := zap.NewProduction()
	if cfg.Dev {
		logger, _ = zap.NewDevelopment()
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("store", cfg.Store),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := obs.NewMetrics(reg)

	store, lim, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// Services
	hasher := pkgcrypto.NewHasher(pkgcrypto.Params{
		Time: cfg.Argon2.Time, MemoryKiB: cfg.Argon2.MemoryKiB, Threads: cfg.Argon2.Threads,
	})
	authSvc := service.NewAuthService(store, hasher, service.AuthConfig{
		SignKey:     []byte(cfg.JWTKey),
		AccessTTL:   cfg.AccessTTL,
		SetupSecret: cfg.SetupSecret,
	}, lim, logger.Named("auth"), metrics)
	prov := service.NewProvisioner(store, hasher, logger.Named("provisioning"), metrics)
	portal := service.NewPortal(store, prov)

	if cfg.SetupSecret == "" {
		if needed, err := authSvc.SetupNeeded(ctx); err == nil && needed {
			logger.Warn("no admin exists and bootstrap is disabled; set setup_secret to create one")
		}
	}

	// gRPC server with interceptors
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			grpcserver.LoggingUnary(logger),
			grpcserver.MetricsUnary(metrics),
			grpcserver.NewPeerLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst).Unary(),
			grpcserver.AuthUnary(authSvc),
		),
	}
	if cfg.TLSCert != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return fmt.Errorf("load TLS cert/key: %w", err)
		}
		opts = append(opts, grpc.Creds(creds))
	} else {
		logger.Warn("TLS disabled; serving plaintext")
	}
	s := grpc.NewServer(opts...)
	portalv1.RegisterPortalServer(s, grpcserver.New(authSvc, portal))

	// Health & reflection (dev)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if cfg.Dev {
		reflection.Register(s)
	}
	if p, ok := store.(pinger); ok {
		go watchHealth(ctx, p, hs, logger)
	}

	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.Bool("tls", cfg.TLSCert != ""))
		errCh <- s.Serve(lis)
	}()

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics: %w", err)
			}
		}()
	}

	// Wait for stop
	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	hs.Shutdown()
	if metricsSrv != nil {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = metricsSrv.Shutdown(shutCtx)
		cancel()
	}
	// graceful shutdown
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.Stop()
	}
	return serveErr
}

// openStore selects the backend named by cfg.Store along with a matching login limiter.
func openStore(ctx context.Context, cfg config.Config) (repository.Store, limiter.Limiter, func(), error) {
	policy := limiter.Policy{Window: cfg.Login.Window, MaxFails: cfg.Login.MaxFails, BlockFor: cfg.Login.BlockFor}
	switch cfg.Store {
	case config.StoreMemory:
		return memory.New(), limiter.NewMemory(policy), func() {}, nil
	case config.StorePostgres:
		if err := migrate.Up(ctx, cfg.DSN); err != nil {
			return nil, nil, nil, fmt.Errorf("migrate up: %w", err)
		}
		db, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open pool: %w", err)
		}
		return postgres.NewStore(db), limiter.NewPG(db.Pool, policy), db.Close, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
}

// watchHealth flips the health status with store reachability.
func watchHealth(ctx context.Context, p pinger, hs *health.Server, logger *zap.Logger) {
	t := time.NewTicker(10 * time.Second)
	defer t.Stop()
	last := healthpb.HealthCheckResponse_UNKNOWN
	for {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := p.Ping(pctx)
		cancel()
		st := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
		if st != last {
			if err != nil {
				logger.Warn("store unreachable", zap.Error(err))
			}
			hs.SetServingStatus("", st)
			hs.SetServingStatus(portalv1.ServiceName, st)
			last = st
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
