// Package fuzzrpc is the gRPC control plane for a running fuzzing
// campaign: pause/resume, a shutdown request, and a stats snapshot. No
// .proto-generated code is vendored here; the wire messages are the
// well-known empty/struct protobuf types and the service is registered
// through a hand-written grpc.ServiceDesc, the same mechanism generated
// code relies on under the hood.
package fuzzrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name FuzzerControl is
// registered and invoked under.
const ServiceName = "branchfuzz.v1.FuzzerControl"

// FuzzerControlServer is implemented by anything that can answer control
// requests for a live campaign.
type FuzzerControlServer interface {
	Stats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Pause(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	Resume(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	Shutdown(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

func statsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FuzzerControlServer).Stats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Stats"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FuzzerControlServer).Stats(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func pauseHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FuzzerControlServer).Pause(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Pause"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FuzzerControlServer).Pause(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func resumeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FuzzerControlServer).Resume(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Resume"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FuzzerControlServer).Resume(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func shutdownHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FuzzerControlServer).Shutdown(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Shutdown"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FuzzerControlServer).Shutdown(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// serviceDesc is the hand-written equivalent of a protoc-gen-go-grpc
// _ServiceDesc var.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FuzzerControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Stats", Handler: statsHandler},
		{MethodName: "Pause", Handler: pauseHandler},
		{MethodName: "Resume", Handler: resumeHandler},
		{MethodName: "Shutdown", Handler: shutdownHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fuzzrpc/control.proto",
}

// RegisterFuzzerControlServer registers srv's methods against s.
func RegisterFuzzerControlServer(s grpc.ServiceRegistrar, srv FuzzerControlServer) {
	s.RegisterService(&serviceDesc, srv)
}

// FuzzerControlClient is the client-side stub for FuzzerControlServer.
type FuzzerControlClient interface {
	Stats(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	Pause(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error)
	Resume(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error)
	Shutdown(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

type fuzzerControlClient struct {
	cc grpc.ClientConnInterface
}

// NewFuzzerControlClient wraps cc (typically from grpc.NewClient) with
// the FuzzerControl stub methods.
func NewFuzzerControlClient(cc grpc.ClientConnInterface) FuzzerControlClient {
	return &fuzzerControlClient{cc}
}

func (c *fuzzerControlClient) Stats(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Stats", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fuzzerControlClient) Pause(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Pause", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fuzzerControlClient) Resume(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Resume", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fuzzerControlClient) Shutdown(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Shutdown", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
