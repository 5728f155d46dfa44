package adminapi

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// bearerCredentials implements credentials.PerRPCCredentials, attaching a
// static bearer token to every call the way admind's authMiddleware reads
// an "Authorization: Bearer ..." header on the HTTP side
// (irc/admind/admin.go).
type bearerCredentials struct {
	token string
}

func (b bearerCredentials) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}

func (b bearerCredentials) RequireTransportSecurity() bool { return false }

// UnaryServerAuth returns an interceptor rejecting any call whose
// "authorization" metadata doesn't carry the expected bearer token,
// mirroring admind's API-token check but expressed as gRPC metadata
// instead of an HTTP header.
func UnaryServerAuth(token string) grpc.UnaryServerInterceptor {
	want := "Bearer " + token
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "adminapi: missing metadata")
		}
		got := md.Get("authorization")
		if len(got) != 1 || got[0] != want {
			return nil, status.Error(codes.Unauthenticated, "adminapi: invalid or missing bearer token")
		}
		return handler(ctx, req)
	}
}

// errUnauthorized is returned by Client methods when the server rejects
// the configured token, so callers don't need to inspect a gRPC status.
var errUnauthorized = fmt.Errorf("adminapi: unauthorized")
