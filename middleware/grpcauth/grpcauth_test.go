package grpcauth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/MrEthical07/portalauth/jwt"
	"github.com/MrEthical07/portalauth/middleware"
)

func newFilter(t *testing.T) (*middleware.Filter, *jwt.Manager) {
	t.Helper()
	codec, err := jwt.NewManager(jwt.Config{
		Secret:   []byte("grpc-adapter-test-secret-0123456789"),
		Issuer:   "Said App",
		Audience: "User Management Portal",
		Lifetime: time.Hour,
	})
	require.NoError(t, err)
	f, err := middleware.NewFilter(codec)
	require.NoError(t, err)
	return f, codec
}

func withAuth(header string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", header))
}

func TestUnaryInterceptor(t *testing.T) {
	f, codec := newFilter(t)
	reader, err := codec.Issue("alice", []string{"user:read"})
	require.NoError(t, err)

	interceptor := UnaryServerInterceptor(f)
	info := &grpc.UnaryServerInfo{FullMethod: "/portal.Users/Delete"}
	deleteHandler := func(ctx context.Context, _ any) (any, error) {
		if err := Require(ctx, "user:delete"); err != nil {
			return nil, err
		}
		return "deleted", nil
	}
	listHandler := func(ctx context.Context, _ any) (any, error) {
		if err := Require(ctx); err != nil {
			return nil, err
		}
		sc, _ := middleware.FromContext(ctx)
		return sc.Subject, nil
	}

	_, err = interceptor(context.Background(), nil, info, deleteHandler)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = interceptor(withAuth("Bearer broken"), nil, info, deleteHandler)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Contains(t, err.Error(), middleware.MessageTokenUnverified)

	_, err = interceptor(withAuth("Bearer "+reader), nil, info, deleteHandler)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	got, err := interceptor(withAuth("Bearer "+reader), nil, info, listHandler)
	require.NoError(t, err)
	assert.Equal(t, "alice", got)
}

type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *fakeStream) Context() context.Context { return s.ctx }

func TestStreamInterceptor(t *testing.T) {
	f, codec := newFilter(t)
	token, err := codec.Issue("bob", []string{"user:read"})
	require.NoError(t, err)

	var subject string
	err = StreamServerInterceptor(f)(nil, &fakeStream{ctx: withAuth("Bearer " + token)}, &grpc.StreamServerInfo{},
		func(_ any, ss grpc.ServerStream) error {
			if err := Require(ss.Context()); err != nil {
				return err
			}
			sc, _ := middleware.FromContext(ss.Context())
			subject = sc.Subject
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, "bob", subject)
}
