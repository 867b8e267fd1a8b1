package internalgrpc

import (
	"context"

	"github.com/golang/protobuf/ptypes/empty"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

const serviceName = "sked.Events"

// EventsServer is the server API of the sked.Events service.
// Payloads are protobuf well-known types so no generated code is needed.
type EventsServer interface {
	AddEvent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveEvent(context.Context, *structpb.Struct) (*empty.Empty, error)
	GetEventsForDay(context.Context, *structpb.Struct) (*structpb.ListValue, error)
	GetDueReminders(context.Context, *timestamppb.Timestamp) (*structpb.ListValue, error)
}

type methodHandler = func(
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error)

func unary[Req any, Resp any](method string, call func(EventsServer, context.Context, *Req) (Resp, error)) methodHandler {
	return func(
		srv interface{},
		ctx context.Context,
		dec func(interface{}) error,
		interceptor grpc.UnaryServerInterceptor,
	) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(EventsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(EventsServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var eventsServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*EventsServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "AddEvent",
			Handler: unary("AddEvent", func(s EventsServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.AddEvent(ctx, in)
			}),
		},
		{
			MethodName: "RemoveEvent",
			Handler: unary("RemoveEvent", func(s EventsServer, ctx context.Context, in *structpb.Struct) (*empty.Empty, error) {
				return s.RemoveEvent(ctx, in)
			}),
		},
		{
			MethodName: "GetEventsForDay",
			Handler: unary("GetEventsForDay",
				func(s EventsServer, ctx context.Context, in *structpb.Struct) (*structpb.ListValue, error) {
					return s.GetEventsForDay(ctx, in)
				}),
		},
		{
			MethodName: "GetDueReminders",
			Handler: unary("GetDueReminders",
				func(s EventsServer, ctx context.Context, in *timestamppb.Timestamp) (*structpb.ListValue, error) {
					return s.GetDueReminders(ctx, in)
				}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sked/events",
}

func RegisterEventsServer(s grpc.ServiceRegistrar, srv EventsServer) {
	s.RegisterService(&eventsServiceDesc, srv)
}

// Client calls the sked.Events service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) AddEvent(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/AddEvent", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RemoveEvent(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*empty.Empty, error) {
	out := new(empty.Empty)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/RemoveEvent", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetEventsForDay(
	ctx context.Context,
	in *structpb.Struct,
	opts ...grpc.CallOption,
) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/GetEventsForDay", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetDueReminders(
	ctx context.Context,
	in *timestamppb.Timestamp,
	opts ...grpc.CallOption,
) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/GetDueReminders", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
