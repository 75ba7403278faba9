package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "dropkeeper.v1.JournalistService"

const (
	LoginMethod           = "/" + ServiceName + "/Login"
	FetchSubmissionMethod = "/" + ServiceName + "/FetchSubmission"
)

// JournalistServiceServer is implemented by GRPCServer.
//
// Login takes {"username", "password", "code"} and answers with
// {"access_token", "expires_at", "username", "admin"}.
// FetchSubmission takes {"filesystem_id", "ref"} and needs an access_token
// in the request metadata.
type JournalistServiceServer interface {
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FetchSubmission(context.Context, *structpb.Struct) (*wrapperspb.BytesValue, error)
}

func loginHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(JournalistServiceServer).Login(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: LoginMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(JournalistServiceServer).Login(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func fetchSubmissionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(JournalistServiceServer).FetchSubmission(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FetchSubmissionMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(JournalistServiceServer).FetchSubmission(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// JournalistServiceDesc describes the service to grpc.Server.RegisterService.
var JournalistServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*JournalistServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Login", Handler: loginHandler},
		{MethodName: "FetchSubmission", Handler: fetchSubmissionHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dropkeeper/v1/journalist.proto",
}

// JournalistServiceClient is the client side of JournalistServiceServer.
type JournalistServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewJournalistServiceClient(cc grpc.ClientConnInterface) *JournalistServiceClient {
	return &JournalistServiceClient{cc: cc}
}

func (c *JournalistServiceClient) Login(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, LoginMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *JournalistServiceClient) FetchSubmission(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, FetchSubmissionMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
