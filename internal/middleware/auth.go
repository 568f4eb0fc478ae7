package middleware

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"workshop-agenda/internal/auth"
	"workshop-agenda/internal/rpc"
)

type ctxKey string

const (
	UserIDKey ctxKey = "uid"
	RoleKey   ctxKey = "role"
)

// skip auth for these; the pending pair backs the public fill-in link
var open = map[string]bool{
	rpc.Method("Register"):      true,
	rpc.Method("Login"):         true,
	rpc.Method("Refresh"):       true,
	rpc.Method("GetPending"):    true,
	rpc.Method("SubmitPending"): true,
}

func UserID(ctx context.Context) string {
	v, _ := ctx.Value(UserIDKey).(string)
	return v
}

func Role(ctx context.Context) string {
	v, _ := ctx.Value(RoleKey).(string)
	return v
}

// Verifier checks a bearer token. *auth.Signer implements it.
type Verifier interface {
	Verify(raw string) (*auth.Claims, error)
}

// WithClaims is what the interceptors attach; the websocket route reuses it.
func WithClaims(ctx context.Context, c *auth.Claims) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, c.UserID())
	return context.WithValue(ctx, RoleKey, c.Role)
}

func authenticate(ctx context.Context, v Verifier) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing metadata")
	}

	// token from Authorization: Bearer <jwt>
	raw := ""
	if vals := md.Get("authorization"); len(vals) > 0 {
		raw = strings.TrimPrefix(vals[0], "Bearer ")
	}
	if raw == "" {
		return nil, status.Error(codes.Unauthenticated, "no token")
	}

	claims, err := v.Verify(raw)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "bad token")
	}
	return WithClaims(ctx, claims), nil
}

func Auth(v Verifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if open[info.FullMethod] {
			return next(ctx, req)
		}
		ctx, err := authenticate(ctx, v)
		if err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

type authedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authedStream) Context() context.Context { return s.ctx }

func StreamAuth(v Verifier) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, next grpc.StreamHandler) error {
		if open[info.FullMethod] {
			return next(srv, ss)
		}
		ctx, err := authenticate(ss.Context(), v)
		if err != nil {
			return err
		}
		return next(srv, &authedStream{ServerStream: ss, ctx: ctx})
	}
}
