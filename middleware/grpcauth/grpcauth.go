// Package grpcauth adapts the authorization filter to gRPC servers.
//
// gRPC has no preflight, and the interceptors never fail a call themselves.
// Handlers call [Require] to enforce access.
package grpcauth

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/MrEthical07/portalauth/middleware"
)

const authorizationKey = "authorization"

func resolve(ctx context.Context, f *middleware.Filter) context.Context {
	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(authorizationKey); len(vals) > 0 {
			header = vals[0]
		}
	}
	// Every gRPC call is an HTTP/2 POST.
	ctx, _ = f.Resolve(ctx, http.MethodPost, header)
	return ctx
}

// UnaryServerInterceptor resolves the caller's identity before the handler runs.
func UnaryServerInterceptor(f *middleware.Filter) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		return handler(resolve(ctx, f), req)
	}
}

type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *wrappedStream) Context() context.Context { return s.ctx }

// StreamServerInterceptor is the streaming counterpart of UnaryServerInterceptor.
func StreamServerInterceptor(f *middleware.Filter) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		return handler(srv, &wrappedStream{ServerStream: ss, ctx: resolve(ss.Context(), f)})
	}
}

// Require returns a gRPC status error unless ctx carries an identity holding
// one of authorities.
func Require(ctx context.Context, authorities ...string) error {
	err := middleware.Check(ctx, authorities...)
	if err == nil {
		return nil
	}
	_, msg := middleware.Denial(err)
	if errors.Is(err, middleware.ErrForbidden) {
		return status.Error(codes.PermissionDenied, msg)
	}
	return status.Error(codes.Unauthenticated, msg)
}
