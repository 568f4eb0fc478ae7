package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"workshop-agenda/internal/auth"
	"workshop-agenda/internal/model"
	"workshop-agenda/internal/rpc"
	"workshop-agenda/internal/store"
)

func (h *Handler) Register(ctx context.Context, req *rpc.RegisterRequest) (*rpc.AuthResponse, error) {
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Password == "" || req.Name == "" {
		return nil, status.Error(codes.InvalidArgument, "all fields required")
	}
	if len(req.Password) < auth.MinPassword {
		return nil, status.Error(codes.InvalidArgument, "password too short")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}

	u := &model.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
		Role:         model.RoleStaff,
	}
	if h.admins[u.Email] {
		u.Role = model.RoleAdmin
	}
	if err := h.store.CreateUser(ctx, u); err != nil {
		// unique violation = dup email, but don't reveal that
		return nil, status.Error(codes.AlreadyExists, "registration failed")
	}
	h.log.Info("user registered", zap.String("uid", u.ID))
	return h.issue(ctx, u)
}

func (h *Handler) Login(ctx context.Context, req *rpc.LoginRequest) (*rpc.AuthResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "email and password required")
	}

	u, err := h.store.UserByEmail(ctx, strings.TrimSpace(strings.ToLower(req.Email)))
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid credentials")
	}
	if !auth.PasswordMatches(u.PasswordHash, req.Password) {
		return nil, status.Error(codes.Unauthenticated, "invalid credentials")
	}
	return h.issue(ctx, u)
}

// Refresh exchanges a refresh token for a new pair. Presenting a token that
// was already exchanged revokes every token of that user.
func (h *Handler) Refresh(ctx context.Context, req *rpc.RefreshRequest) (*rpc.AuthResponse, error) {
	if req.RefreshToken == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh token required")
	}
	next, err := h.tokens.Refresh()
	if err != nil {
		return nil, h.fail("mint refresh token", err)
	}
	owner, err := h.store.RotateRefreshToken(ctx, auth.HashRefresh(req.RefreshToken), store.RefreshToken{
		ID:        next.ID,
		Hash:      next.Hash,
		ExpiresAt: next.ExpiresAt,
	}, time.Now())
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, status.Error(codes.Unauthenticated, "invalid refresh token")
	case errors.Is(err, store.ErrTokenReused):
		h.log.Warn("refresh token reuse, all sessions revoked", zap.String("uid", owner))
		return nil, status.Error(codes.Unauthenticated, "invalid refresh token")
	case errors.Is(err, store.ErrTokenExpired):
		return nil, status.Error(codes.Unauthenticated, "refresh token expired")
	case err != nil:
		return nil, h.fail("rotate refresh token", err)
	}

	u, err := h.store.UserByID(ctx, owner)
	if err != nil {
		return nil, h.fail("refresh user", err)
	}
	return h.respond(u, next.Raw)
}

func (h *Handler) Logout(ctx context.Context, _ *rpc.Empty) (*rpc.Empty, error) {
	if err := h.store.RevokeAllRefreshTokens(ctx, uid(ctx)); err != nil {
		return nil, h.fail("logout", err)
	}
	return &rpc.Empty{}, nil
}

func (h *Handler) GetProfile(ctx context.Context, _ *rpc.Empty) (*rpc.ProfileResponse, error) {
	u, err := h.store.UserByID(ctx, uid(ctx))
	if err != nil {
		return nil, h.fail("get profile", err)
	}
	return &rpc.ProfileResponse{User: *u}, nil
}

// UpdateProfile changes the user's own record only; events already stamped
// with the old name keep it.
func (h *Handler) UpdateProfile(ctx context.Context, req *rpc.UpdateProfileRequest) (*rpc.ProfileResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "name required")
	}
	u, err := h.store.UserByID(ctx, uid(ctx))
	if err != nil {
		return nil, h.fail("update profile", err)
	}
	u.Name = name
	u.Phone = strings.TrimSpace(req.Phone)
	u.Address = strings.TrimSpace(req.Address)
	u.PhotoURL = strings.TrimSpace(req.PhotoURL)
	if err := h.store.UpdateProfile(ctx, u); err != nil {
		return nil, h.fail("update profile", err)
	}
	return &rpc.ProfileResponse{User: *u}, nil
}

// issue starts a new session for u.
func (h *Handler) issue(ctx context.Context, u *model.User) (*rpc.AuthResponse, error) {
	r, err := h.tokens.Refresh()
	if err != nil {
		return nil, h.fail("mint refresh token", err)
	}
	if err := h.store.SaveRefreshToken(ctx, store.RefreshToken{
		ID:        r.ID,
		UserID:    u.ID,
		Hash:      r.Hash,
		ExpiresAt: r.ExpiresAt,
	}); err != nil {
		return nil, h.fail("store refresh token", err)
	}
	return h.respond(u, r.Raw)
}

func (h *Handler) respond(u *model.User, refresh string) (*rpc.AuthResponse, error) {
	a, err := h.tokens.Access(u.ID, u.Role)
	if err != nil {
		return nil, h.fail("sign access token", err)
	}
	return &rpc.AuthResponse{
		UserID:       u.ID,
		Name:         u.Name,
		Role:         u.Role,
		AccessToken:  a.Token,
		RefreshToken: refresh,
		ExpiresAt:    a.ExpiresAt,
	}, nil
}
