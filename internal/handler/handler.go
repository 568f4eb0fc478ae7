package handler

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"workshop-agenda/internal/auth"
	"workshop-agenda/internal/booking"
	"workshop-agenda/internal/feed"
	"workshop-agenda/internal/middleware"
	"workshop-agenda/internal/model"
	"workshop-agenda/internal/rpc"
	"workshop-agenda/internal/store"
)

type Handler struct {
	store   *store.Store
	booking *booking.Service
	hub     *feed.Hub
	tokens  *auth.Signer
	log     *zap.Logger
	admins  map[string]bool
}

var _ rpc.AgendaServer = (*Handler)(nil)

func New(st *store.Store, svc *booking.Service, hub *feed.Hub, tokens *auth.Signer, log *zap.Logger) *Handler {
	return &Handler{store: st, booking: svc, hub: hub, tokens: tokens, log: log, admins: map[string]bool{}}
}

// Admins lists emails that are given the admin role when they register.
func (h *Handler) Admins(emails ...string) *Handler {
	for _, e := range emails {
		if e = strings.TrimSpace(strings.ToLower(e)); e != "" {
			h.admins[e] = true
		}
	}
	return h
}

func uid(ctx context.Context) string {
	return middleware.UserID(ctx)
}

// fail maps service errors onto gRPC status codes. Anything unexpected is
// logged and hidden behind a generic message.
func (h *Handler) fail(op string, err error) error {
	var fe *model.FieldError
	switch {
	case errors.Is(err, model.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.As(err, &fe):
		return status.Error(codes.InvalidArgument, fe.Error())
	case errors.Is(err, model.ErrBadPatch), errors.Is(err, booking.ErrInvalidSlot):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, booking.ErrForbidden):
		return status.Error(codes.PermissionDenied, "admin role required")
	case errors.Is(err, booking.ErrNotPending):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "canceled")
	}
	h.log.Error(op, zap.Error(err))
	return status.Error(codes.Internal, "internal error")
}
