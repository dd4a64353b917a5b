package grpc

import (
	"context"

	gogrpc "google.golang.org/grpc"
)

const serviceName = "blockmgr.transport.BlockTransfer"

// blockTransferServer is implemented by Server; it is the handler side of
// the BlockTransfer service.
type blockTransferServer interface {
	fetchBlock(ctx context.Context, req *fetchBlockRequest) (*fetchBlockResponse, error)
	uploadBlock(ctx context.Context, req *uploadBlockRequest) (*uploadBlockResponse, error)
}

func fetchBlockHandler(srv any, ctx context.Context, dec func(any) error, interceptor gogrpc.UnaryServerInterceptor) (any, error) {
	req := new(fetchBlockRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(blockTransferServer).fetchBlock(ctx, req)
	}
	info := &gogrpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/FetchBlock"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(blockTransferServer).fetchBlock(ctx, req.(*fetchBlockRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func uploadBlockHandler(srv any, ctx context.Context, dec func(any) error, interceptor gogrpc.UnaryServerInterceptor) (any, error) {
	req := new(uploadBlockRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(blockTransferServer).uploadBlock(ctx, req)
	}
	info := &gogrpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/UploadBlock"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(blockTransferServer).uploadBlock(ctx, req.(*uploadBlockRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// serviceDesc describes the BlockTransfer service to grpc.Server.
// Register passes it to grpc.Server.RegisterService.
var serviceDesc = gogrpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*blockTransferServer)(nil),
	Methods: []gogrpc.MethodDesc{
		{MethodName: "FetchBlock", Handler: fetchBlockHandler},
		{MethodName: "UploadBlock", Handler: uploadBlockHandler},
	},
	Streams:  []gogrpc.StreamDesc{},
	Metadata: "blockmgr/transport.proto",
}
