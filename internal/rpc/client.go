package rpc

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"workshop-agenda/internal/feed"
	"workshop-agenda/internal/model"
)

// TokenSource supplies the bearer token attached to each call.
type TokenSource interface {
	AccessToken() string
}

type Client struct {
	conn *grpc.ClientConn
	log  *zap.Logger

	mu     sync.RWMutex
	tokens TokenSource
}

func Dial(addr string, log *zap.Logger, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, log: log}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) UseTokens(ts TokenSource) {
	c.mu.Lock()
	c.tokens = ts
	c.mu.Unlock()
}

func (c *Client) outgoing(ctx context.Context) context.Context {
	c.mu.RLock()
	ts := c.tokens
	c.mu.RUnlock()
	if ts == nil {
		return ctx
	}
	if tok := ts.AccessToken(); tok != "" {
		return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+tok)
	}
	return ctx
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	return c.conn.Invoke(c.outgoing(ctx), Method(method), req, resp)
}

func (c *Client) Register(ctx context.Context, email, password, name string) (*AuthResponse, error) {
	resp := &AuthResponse{}
	err := c.invoke(ctx, "Register", &RegisterRequest{Email: email, Password: password, Name: name}, resp)
	return resp, err
}

func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	resp := &AuthResponse{}
	err := c.invoke(ctx, "Login", &LoginRequest{Email: email, Password: password}, resp)
	return resp, err
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	resp := &AuthResponse{}
	err := c.invoke(ctx, "Refresh", &RefreshRequest{RefreshToken: refreshToken}, resp)
	return resp, err
}

func (c *Client) Logout(ctx context.Context) error {
	return c.invoke(ctx, "Logout", &Empty{}, &Empty{})
}

func (c *Client) Profile(ctx context.Context) (*model.User, error) {
	resp := &ProfileResponse{}
	if err := c.invoke(ctx, "GetProfile", &Empty{}, resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

func (c *Client) UpdateProfile(ctx context.Context, req *UpdateProfileRequest) (*model.User, error) {
	resp := &ProfileResponse{}
	if err := c.invoke(ctx, "UpdateProfile", req, resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

func (c *Client) ListEvents(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	resp := &ListEventsResponse{}
	if err := c.invoke(ctx, "ListEvents", &ListEventsRequest{From: from, To: to}, resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *Client) History(ctx context.Context, plate string) ([]model.Event, error) {
	resp := &ListEventsResponse{}
	if err := c.invoke(ctx, "VehicleHistory", &HistoryRequest{Plate: plate}, resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *Client) event(ctx context.Context, method string, req any) (*model.Event, error) {
	resp := &EventResponse{}
	if err := c.invoke(ctx, method, req, resp); err != nil {
		return nil, err
	}
	return resp.Event, nil
}

func (c *Client) CreateEvent(ctx context.Context, form model.EventForm, start time.Time) (*model.Event, error) {
	return c.event(ctx, "CreateEvent", &CreateEventRequest{Start: start, Form: form})
}

func (c *Client) UpdateEvent(ctx context.Context, id string, p model.EventPatch) (*model.Event, error) {
	return c.event(ctx, "UpdateEvent", &UpdateEventRequest{ID: id, Patch: p})
}

func (c *Client) Reschedule(ctx context.Context, id string, start time.Time) (*model.Event, error) {
	return c.event(ctx, "RescheduleEvent", &RescheduleEventRequest{ID: id, Start: start})
}

func (c *Client) Cancel(ctx context.Context, id string) (*model.Event, error) {
	return c.event(ctx, "CancelEvent", &EventRequest{ID: id})
}

func (c *Client) Reactivate(ctx context.Context, id string) (*model.Event, error) {
	return c.event(ctx, "ReactivateEvent", &EventRequest{ID: id})
}

func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	return c.invoke(ctx, "DeleteEvent", &EventRequest{ID: id}, &Empty{})
}

func (c *Client) CreatePendingLink(ctx context.Context, slot time.Time) (*model.PendingAppointment, string, error) {
	resp := &PendingLinkResponse{}
	if err := c.invoke(ctx, "CreatePendingLink", &CreatePendingLinkRequest{Slot: slot}, resp); err != nil {
		return nil, "", err
	}
	return resp.Pending, resp.URL, nil
}

func (c *Client) GetPending(ctx context.Context, id string) (*model.PendingAppointment, error) {
	resp := &PendingResponse{}
	if err := c.invoke(ctx, "GetPending", &PendingRequest{ID: id}, resp); err != nil {
		return nil, err
	}
	return resp.Pending, nil
}

func (c *Client) SubmitPending(ctx context.Context, id string, form model.EventForm) (*model.Event, error) {
	return c.event(ctx, "SubmitPending", &SubmitPendingRequest{ID: id, Form: form})
}

// Subscribe opens WatchEvents. The first message (the snapshot) is read before
// returning so auth and connection errors surface here. The channel is closed
// when the stream ends or ctx is canceled.
func (c *Client) Subscribe(ctx context.Context) (<-chan feed.Change, error) {
	st, err := c.conn.NewStream(c.outgoing(ctx), &watchEventsDesc, Method("WatchEvents"))
	if err != nil {
		return nil, err
	}
	if err := st.SendMsg(&WatchEventsRequest{}); err != nil {
		return nil, err
	}
	if err := st.CloseSend(); err != nil {
		return nil, err
	}
	var first feed.Change
	if err := st.RecvMsg(&first); err != nil {
		return nil, err
	}

	ch := make(chan feed.Change, feed.DefaultBuffer)
	ch <- first
	go func() {
		defer close(ch)
		for {
			var next feed.Change
			if err := st.RecvMsg(&next); err != nil {
				if !errors.Is(err, io.EOF) && status.Code(err) != codes.Canceled {
					c.log.Warn("watch stream ended", zap.Error(err))
				}
				return
			}
			select {
			case ch <- next:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
