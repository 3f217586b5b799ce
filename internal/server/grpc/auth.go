package grpcserver

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	portalv1 "github.com/and161185/reseller-portal/api/portal/v1"
	"github.com/and161185/reseller-portal/internal/errs"
	"github.com/and161185/reseller-portal/internal/service"
)

// publicMethods are portal calls served without a bearer token.
var publicMethods = map[string]bool{
	portalv1.LoginMethod:          true,
	portalv1.BootstrapAdminMethod: true,
	portalv1.SetupStatusMethod:    true,
}

// AuthUnary resolves "authorization: Bearer <JWT>" into a principal for every
// non-public portal method. Calls to other services (health) pass through.
func AuthUnary(auth service.AuthService) grpc.UnaryServerInterceptor {
	prefix := "/" + portalv1.ServiceName + "/"
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, prefix) || publicMethods[info.FullMethod] {
			return next(ctx, req)
		}
		tok, err := bearerTokenFromMD(ctx)
		if err != nil {
			return nil, toStatus(errs.ErrUnauthorized)
		}
		p, err := auth.Authenticate(ctx, tok)
		if err != nil {
			return nil, toStatus(err)
		}
		return next(WithPrincipal(ctx, p), req)
	}
}

func bearerTokenFromMD(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("no metadata")
	}
	for _, v := range md.Get("authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			t := strings.TrimSpace(v[7:])
			if t != "" {
				return t, nil
			}
		}
	}
	return "", errors.New("no bearer token")
}
