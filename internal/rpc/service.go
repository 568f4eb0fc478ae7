package rpc

import (
	"context"

	"google.golang.org/grpc"

	"workshop-agenda/internal/feed"
)

const ServiceName = "agenda.v1.AgendaService"

// Method returns the full gRPC method name, as seen by interceptors.
func Method(name string) string {
	return "/" + ServiceName + "/" + name
}

type AgendaServer interface {
	Register(context.Context, *RegisterRequest) (*AuthResponse, error)
	Login(context.Context, *LoginRequest) (*AuthResponse, error)
	Refresh(context.Context, *RefreshRequest) (*AuthResponse, error)
	Logout(context.Context, *Empty) (*Empty, error)
	GetProfile(context.Context, *Empty) (*ProfileResponse, error)
	UpdateProfile(context.Context, *UpdateProfileRequest) (*ProfileResponse, error)

	ListEvents(context.Context, *ListEventsRequest) (*ListEventsResponse, error)
	VehicleHistory(context.Context, *HistoryRequest) (*ListEventsResponse, error)
	WatchEvents(*WatchEventsRequest, EventStream) error
	CreateEvent(context.Context, *CreateEventRequest) (*EventResponse, error)
	UpdateEvent(context.Context, *UpdateEventRequest) (*EventResponse, error)
	RescheduleEvent(context.Context, *RescheduleEventRequest) (*EventResponse, error)
	CancelEvent(context.Context, *EventRequest) (*EventResponse, error)
	ReactivateEvent(context.Context, *EventRequest) (*EventResponse, error)
	DeleteEvent(context.Context, *EventRequest) (*Empty, error)

	CreatePendingLink(context.Context, *CreatePendingLinkRequest) (*PendingLinkResponse, error)
	GetPending(context.Context, *PendingRequest) (*PendingResponse, error)
	SubmitPending(context.Context, *SubmitPendingRequest) (*EventResponse, error)
}

// EventStream is the server side of WatchEvents.
type EventStream interface {
	Send(*feed.Change) error
	Context() context.Context
}

type eventStream struct {
	grpc.ServerStream
}

func (s *eventStream) Send(c *feed.Change) error { return s.ServerStream.SendMsg(c) }

func unary[Req, Resp any](name string, call func(AgendaServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, in grpc.UnaryServerInterceptor) (any, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, err
			}
			s := srv.(AgendaServer)
			if in == nil {
				return call(s, ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: Method(name)}
			return in(ctx, req, info, func(ctx context.Context, r any) (any, error) {
				return call(s, ctx, r.(*Req))
			})
		},
	}
}

func watchEventsHandler(srv any, stream grpc.ServerStream) error {
	req := new(WatchEventsRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(AgendaServer).WatchEvents(req, &eventStream{stream})
}

var watchEventsDesc = grpc.StreamDesc{
	StreamName:    "WatchEvents",
	Handler:       watchEventsHandler,
	ServerStreams: true,
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AgendaServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Register", AgendaServer.Register),
		unary("Login", AgendaServer.Login),
		unary("Refresh", AgendaServer.Refresh),
		unary("Logout", AgendaServer.Logout),
		unary("GetProfile", AgendaServer.GetProfile),
		unary("UpdateProfile", AgendaServer.UpdateProfile),
		unary("ListEvents", AgendaServer.ListEvents),
		unary("VehicleHistory", AgendaServer.VehicleHistory),
		unary("CreateEvent", AgendaServer.CreateEvent),
		unary("UpdateEvent", AgendaServer.UpdateEvent),
		unary("RescheduleEvent", AgendaServer.RescheduleEvent),
		unary("CancelEvent", AgendaServer.CancelEvent),
		unary("ReactivateEvent", AgendaServer.ReactivateEvent),
		unary("DeleteEvent", AgendaServer.DeleteEvent),
		unary("CreatePendingLink", AgendaServer.CreatePendingLink),
		unary("GetPending", AgendaServer.GetPending),
		unary("SubmitPending", AgendaServer.SubmitPending),
	},
	Streams:  []grpc.StreamDesc{watchEventsDesc},
	Metadata: "agenda/v1/agenda",
}

func RegisterAgendaServer(s grpc.ServiceRegistrar, srv AgendaServer) {
	s.RegisterService(&ServiceDesc, srv)
}
