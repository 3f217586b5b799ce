package grpcserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/and161185/reseller-portal/internal/obs"
)

type fakeAddr struct{}

func (fakeAddr) Network() string { return "tcp" }
func (fakeAddr) String() string  { return "127.0.0.1:12345" }

func TestLoggingUnary_Passthrough(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	ic := LoggingUnary(zap.New(core))

	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: fakeAddr{}})
	info := &grpc.UnaryServerInfo{FullMethod: "/portal.v1.Portal/Profile"}

	h := func(ctx context.Context, req any) (any, error) { return "ok", nil }
	resp, err := ic(ctx, "req", info, h)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s, _ := resp.(string); s != "ok" {
		t.Fatalf("resp mismatch: %v", resp)
	}

	wantErr := errors.New("boom")
	hErr := func(ctx context.Context, req any) (any, error) { return nil, wantErr }
	_, err = ic(ctx, "req", info, hErr)
	if !errors.Is(err, wantErr) {
		t.Fatalf("want original error, got: %v", err)
	}

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("want 2 log entries, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["peer"]; got != "127.0.0.1:12345" {
		t.Fatalf("peer field = %v", got)
	}
	if entries[1].Level != zapcore.InfoLevel {
		t.Fatalf("unknown code should log at info, got %s", entries[1].Level)
	}
}

func TestLoggingUnary_InternalLogsAtError(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	ic := LoggingUnary(zap.New(core))
	info := &grpc.UnaryServerInfo{FullMethod: "/portal.v1.Portal/Reconcile"}

	h := func(ctx context.Context, req any) (any, error) { return nil, status.Error(codes.DataLoss, "drift") }
	_, _ = ic(context.Background(), "req", info, h)

	entries := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	if len(entries) != 1 || entries[0].ContextMap()["code"] != "DataLoss" {
		t.Fatalf("want one error entry with DataLoss, got %+v", entries)
	}
}

func TestRecoverUnary_CatchesPanic(t *testing.T) {
	t.Parallel()

	ic := RecoverUnary(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: "/portal.v1.Portal/Panic"}

	panicH := func(ctx context.Context, req any) (any, error) {
		panic("oh no")
	}

	_, err := ic(context.Background(), "req", info, panicH)
	if err == nil {
		t.Fatalf("expected error from panic")
	}
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Internal {
		t.Fatalf("want codes.Internal, got: %v", err)
	}
}

func TestRecoverUnary_NoPanicPassThrough(t *testing.T) {
	t.Parallel()

	ic := RecoverUnary(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: "/portal.v1.Portal/Ok"}

	h := func(ctx context.Context, req any) (any, error) { return 42, nil }

	resp, err := ic(context.Background(), "req", info, h)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if resp.(int) != 42 {
		t.Fatalf("resp mismatch: %v", resp)
	}
}

func TestLoggingUnary_DurationFieldDoesNotBlock(t *testing.T) {
	t.Parallel()

	ic := LoggingUnary(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: "/portal.v1.Portal/Sleep"}
	h := func(ctx context.Context, req any) (any, error) {
		time.Sleep(5 * time.Millisecond)
		return "done", nil
	}

	start := time.Now()
	resp, err := ic(context.Background(), "req", info, h)
	if err != nil || resp.(string) != "done" {
		t.Fatalf("unexpected result: %v, %v", resp, err)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Fatalf("duration should reflect handler time")
	}
}

func TestMetricsUnary_CountsByCode(t *testing.T) {
	t.Parallel()

	m := obs.NewMetrics(prometheus.NewRegistry())
	ic := MetricsUnary(m)
	info := &grpc.UnaryServerInfo{FullMethod: "/portal.v1.Portal/Login"}

	ok := func(ctx context.Context, req any) (any, error) { return "ok", nil }
	denied := func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.Unauthenticated, "no")
	}
	_, _ = ic(context.Background(), nil, info, ok)
	_, _ = ic(context.Background(), nil, info, denied)
	_, _ = ic(context.Background(), nil, info, denied)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`portal_rpc_requests_total{code="OK",method="/portal.v1.Portal/Login"} 1`,
		`portal_rpc_requests_total{code="Unauthenticated",method="/portal.v1.Portal/Login"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q in:\n%s", want, body)
		}
	}

	// nil metrics must be a no-op
	if _, err := MetricsUnary(nil)(context.Background(), nil, info, ok); err != nil {
		t.Fatalf("nil metrics: %v", err)
	}
}
