package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "dlrshim.v1.Inference"

// Method paths.
const (
	ListModelsMethod = "/" + ServiceName + "/ListModels"
	DescribeMethod   = "/" + ServiceName + "/Describe"
	PredictMethod    = "/" + ServiceName + "/Predict"
)

// InferenceServer is the server API for the dlrshim.v1.Inference service.
// Requests and responses are google.protobuf.Struct values.
type InferenceServer interface {
	ListModels(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Describe(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Predict(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the dlrshim.v1.Inference service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InferenceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListModels", Handler: unaryHandler(ListModelsMethod, InferenceServer.ListModels)},
		{MethodName: "Describe", Handler: unaryHandler(DescribeMethod, InferenceServer.Describe)},
		{MethodName: "Predict", Handler: unaryHandler(PredictMethod, InferenceServer.Predict)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dlrshim/v1/inference.proto",
}

// RegisterInferenceServer registers srv on s.
func RegisterInferenceServer(s grpc.ServiceRegistrar, srv InferenceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type unaryMethod func(InferenceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(InferenceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(InferenceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Client calls the dlrshim.v1.Inference service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a client over cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) ListModels(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ListModelsMethod, &structpb.Struct{}, opts...)
}

func (c *Client) Describe(ctx context.Context, modelID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(map[string]any{"model_id": modelID})
	if err != nil {
		return nil, err
	}
	return c.invoke(ctx, DescribeMethod, req, opts...)
}

// Predict sends req as is. It must carry "model_id" and "inputs".
func (c *Client) Predict(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, PredictMethod, req, opts...)
}

func (c *Client) invoke(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
