package middleware

import (
	"context"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"workshop-agenda/internal/auth"
	"workshop-agenda/internal/rpc"
)

var signer = auth.NewSigner("test-secret")

func incoming(token string) context.Context {
	md := metadata.New(map[string]string{"authorization": "Bearer " + token})
	return metadata.NewIncomingContext(context.Background(), md)
}

func TestAuthInterceptor(t *testing.T) {
	a, _ := signer.Access("u1", "admin")
	tok := a.Token
	icpt := Auth(signer)

	foreign, _ := auth.NewSigner("other").Access("u1", "admin")

	var gotUID, gotRole string
	next := func(ctx context.Context, req any) (any, error) {
		gotUID, gotRole = UserID(ctx), Role(ctx)
		return "ok", nil
	}

	tests := []struct {
		name   string
		ctx    context.Context
		method string
		code   codes.Code
	}{
		{"valid token", incoming(tok), rpc.Method("ListEvents"), codes.OK},
		{"no metadata", context.Background(), rpc.Method("ListEvents"), codes.Unauthenticated},
		{"empty token", incoming(""), rpc.Method("CreateEvent"), codes.Unauthenticated},
		{"bad token", incoming("garbage"), rpc.Method("CreateEvent"), codes.Unauthenticated},
		{"foreign key", incoming(foreign.Token), rpc.Method("CreateEvent"), codes.Unauthenticated},
		{"open login", context.Background(), rpc.Method("Login"), codes.OK},
		{"open pending", context.Background(), rpc.Method("SubmitPending"), codes.OK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := icpt(tt.ctx, nil, &grpc.UnaryServerInfo{FullMethod: tt.method}, next)
			if status.Code(err) != tt.code {
				t.Fatalf("expected %v, got %v", tt.code, err)
			}
		})
	}

	gotUID, gotRole = "", ""
	icpt(incoming(tok), nil, &grpc.UnaryServerInfo{FullMethod: rpc.Method("ListEvents")}, next)
	if gotUID != "u1" || gotRole != "admin" {
		t.Errorf("claims not in context: uid=%q role=%q", gotUID, gotRole)
	}
}

type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (f *fakeStream) Context() context.Context { return f.ctx }

func TestStreamAuth(t *testing.T) {
	a, _ := signer.Access("u2", "staff")
	tok := a.Token
	icpt := StreamAuth(signer)
	info := &grpc.StreamServerInfo{FullMethod: rpc.Method("WatchEvents"), IsServerStream: true}

	var uid string
	err := icpt(nil, &fakeStream{ctx: incoming(tok)}, info, func(_ any, ss grpc.ServerStream) error {
		uid = UserID(ss.Context())
		return nil
	})
	if err != nil || uid != "u2" {
		t.Fatalf("err=%v uid=%q", err, uid)
	}

	err = icpt(nil, &fakeStream{ctx: context.Background()}, info, func(any, grpc.ServerStream) error {
		t.Fatal("handler must not run")
		return nil
	})
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("expected Unauthenticated, got %v", err)
	}
}
