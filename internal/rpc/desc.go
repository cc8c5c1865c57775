// Package rpc is the inter-service command channel: a JSON request/response protocol carried
// over a single gRPC service with two unary methods.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "taskmesh.rpc.v1.Commands"

const (
	sendMethod = "/" + ServiceName + "/Send"
	emitMethod = "/" + ServiceName + "/Emit"
)

// Metadata keys.
const (
	mdCommand   = "x-command"
	mdRequestID = "x-request-id"
)

// commandsServer is the handler type checked by grpc.RegisterService.
type commandsServer interface {
	Send(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	Emit(ctx context.Context, in *wrapperspb.BytesValue) (*emptypb.Empty, error)
}

func sendHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(commandsServer).Send(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: sendMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(commandsServer).Send(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func emitHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(commandsServer).Emit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: emitMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(commandsServer).Emit(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*commandsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Send", Handler: sendHandler},
		{MethodName: "Emit", Handler: emitHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "taskmesh/rpc/v1/commands.proto",
}
