package handler

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"workshop-agenda/internal/model"
	"workshop-agenda/internal/rpc"
)

func (h *Handler) actor(ctx context.Context) (model.Creator, string, error) {
	by, role, err := h.booking.Actor(ctx, uid(ctx))
	if err != nil {
		return model.Creator{}, "", h.fail("resolve actor", err)
	}
	return by, role, nil
}

func (h *Handler) ListEvents(ctx context.Context, req *rpc.ListEventsRequest) (*rpc.ListEventsResponse, error) {
	events, err := h.booking.ListEvents(ctx, req.From, req.To)
	if err != nil {
		return nil, h.fail("list events", err)
	}
	return &rpc.ListEventsResponse{Events: events}, nil
}

func (h *Handler) VehicleHistory(ctx context.Context, req *rpc.HistoryRequest) (*rpc.ListEventsResponse, error) {
	events, err := h.booking.History(ctx, req.Plate)
	if err != nil {
		return nil, h.fail("vehicle history", err)
	}
	return &rpc.ListEventsResponse{Events: events}, nil
}

// WatchEvents streams a snapshot followed by per-event changes until the
// client goes away. A client that falls behind is cut off and must reconnect.
func (h *Handler) WatchEvents(_ *rpc.WatchEventsRequest, stream rpc.EventStream) error {
	ctx := stream.Context()
	ch, err := h.hub.Subscribe(ctx)
	if err != nil {
		return h.fail("subscribe", err)
	}
	for c := range ch {
		if err := stream.Send(&c); err != nil {
			return err
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	h.log.Info("watch subscriber dropped", zap.String("uid", uid(ctx)))
	return status.Error(codes.ResourceExhausted, "subscriber fell behind, resubscribe")
}

func (h *Handler) CreateEvent(ctx context.Context, req *rpc.CreateEventRequest) (*rpc.EventResponse, error) {
	by, _, err := h.actor(ctx)
	if err != nil {
		return nil, err
	}
	e, err := h.booking.CreateEvent(ctx, by, req.Form, req.Start)
	if err != nil {
		return nil, h.fail("create event", err)
	}
	return &rpc.EventResponse{Event: e}, nil
}

func (h *Handler) UpdateEvent(ctx context.Context, req *rpc.UpdateEventRequest) (*rpc.EventResponse, error) {
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	e, err := h.booking.UpdateEvent(ctx, req.ID, req.Patch)
	if err != nil {
		return nil, h.fail("update event", err)
	}
	return &rpc.EventResponse{Event: e}, nil
}

func (h *Handler) RescheduleEvent(ctx context.Context, req *rpc.RescheduleEventRequest) (*rpc.EventResponse, error) {
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	e, err := h.booking.Reschedule(ctx, req.ID, req.Start)
	if err != nil {
		return nil, h.fail("reschedule event", err)
	}
	return &rpc.EventResponse{Event: e}, nil
}

func (h *Handler) CancelEvent(ctx context.Context, req *rpc.EventRequest) (*rpc.EventResponse, error) {
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	e, err := h.booking.Cancel(ctx, req.ID)
	if err != nil {
		return nil, h.fail("cancel event", err)
	}
	return &rpc.EventResponse{Event: e}, nil
}

func (h *Handler) ReactivateEvent(ctx context.Context, req *rpc.EventRequest) (*rpc.EventResponse, error) {
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	e, err := h.booking.Reactivate(ctx, req.ID)
	if err != nil {
		return nil, h.fail("reactivate event", err)
	}
	return &rpc.EventResponse{Event: e}, nil
}

// DeleteEvent checks the role stored on the user, not the one in the token,
// so a demotion takes effect before the token expires.
func (h *Handler) DeleteEvent(ctx context.Context, req *rpc.EventRequest) (*rpc.Empty, error) {
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	by, role, err := h.actor(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.booking.Delete(ctx, by, role, req.ID); err != nil {
		return nil, h.fail("delete event", err)
	}
	return &rpc.Empty{}, nil
}

func (h *Handler) CreatePendingLink(ctx context.Context, req *rpc.CreatePendingLinkRequest) (*rpc.PendingLinkResponse, error) {
	by, _, err := h.actor(ctx)
	if err != nil {
		return nil, err
	}
	p, url, err := h.booking.CreatePendingLink(ctx, by, req.Slot)
	if err != nil {
		return nil, h.fail("create pending link", err)
	}
	return &rpc.PendingLinkResponse{Pending: p, URL: url}, nil
}

func (h *Handler) GetPending(ctx context.Context, req *rpc.PendingRequest) (*rpc.PendingResponse, error) {
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	p, err := h.booking.LoadPending(ctx, req.ID)
	if err != nil {
		return nil, h.fail("get pending", err)
	}
	return &rpc.PendingResponse{Pending: p}, nil
}

func (h *Handler) SubmitPending(ctx context.Context, req *rpc.SubmitPendingRequest) (*rpc.EventResponse, error) {
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	e, err := h.booking.SubmitPending(ctx, req.ID, req.Form)
	if err != nil {
		return nil, h.fail("submit pending", err)
	}
	return &rpc.EventResponse{Event: e}, nil
}
