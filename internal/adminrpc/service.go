package adminrpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// jsonCodecName is registered with google.golang.org/grpc/encoding so a
// client can select it via grpc.CallContentSubtype("json") without
// either side depending on a protoc-generated message type.
const jsonCodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec implements encoding.Codec by delegating to encoding/json,
// the substitution the teacher's gRPC stack never needed (its wire
// types are protobuf messages) but spec section 12 calls for here since
// no generated pb package accompanies this service.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return jsonCodecName }

// AdminServiceServer is the interface a gRPC server registers to
// satisfy the AdminService RPCs. *Server implements it.
type AdminServiceServer interface {
	GetSystemStatus(ctx context.Context, req *SystemStatusRequest) (*SystemStatusResponse, error)
	ListObjects(ctx context.Context, req *ListObjectsRequest) (*ListObjectsResponse, error)
	GetExecutionRecord(ctx context.Context, req *GetExecutionRecordRequest) (*ExecutionRecordResponse, error)
}

// ServiceName is the gRPC full method prefix, matching the teacher's
// "package.Service" naming convention without a .proto file to define
// it in.
const ServiceName = "adminrpc.AdminService"

// RegisterAdminServiceServer wires srv into grpcServer under
// ServiceName, grounded in the teacher's generated
// pb.RegisterEngineServiceServer but hand-written since no generated
// registrar exists for this service.
func RegisterAdminServiceServer(grpcServer grpc.ServiceRegistrar, srv AdminServiceServer) {
	grpcServer.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AdminServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetSystemStatus", Handler: handleGetSystemStatus},
		{MethodName: "ListObjects", Handler: handleListObjects},
		{MethodName: "GetExecutionRecord", Handler: handleGetExecutionRecord},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "adminrpc.proto",
}

func handleGetSystemStatus(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SystemStatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServiceServer).GetSystemStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fmt.Sprintf("/%s/GetSystemStatus", ServiceName)}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AdminServiceServer).GetSystemStatus(ctx, req.(*SystemStatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func handleListObjects(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListObjectsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServiceServer).ListObjects(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fmt.Sprintf("/%s/ListObjects", ServiceName)}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AdminServiceServer).ListObjects(ctx, req.(*ListObjectsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func handleGetExecutionRecord(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetExecutionRecordRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServiceServer).GetExecutionRecord(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fmt.Sprintf("/%s/GetExecutionRecord", ServiceName)}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AdminServiceServer).GetExecutionRecord(ctx, req.(*GetExecutionRecordRequest))
	}
	return interceptor(ctx, in, info, handler)
}
