package blockmgr

import (
	"context"

	"github.com/blockmgr/blockmanager/pkg/blockid"
	"github.com/blockmgr/blockmanager/pkg/transport"
	"github.com/blockmgr/blockmanager/pkg/transport/grpc"
)

// grpcEndpoint adapts Manager's ManagedBuffer-based HandleFetch/HandleUpload
// to transport/grpc's plain-[]byte Endpoint shape. The grpc transport never
// spills a fetch response to a temp file on the serving side (only the
// fetching side does, via TempFileAllocator), so collapsing ManagedBuffer
// to a flat []byte here loses nothing.
type grpcEndpoint struct {
	m *Manager
}

// NewGRPCEndpoint returns a transport/grpc.Endpoint backed by m, for
// wiring into grpc.NewServer.
func NewGRPCEndpoint(m *Manager) grpc.Endpoint {
	return grpcEndpoint{m: m}
}

func (g grpcEndpoint) HandleFetch(ctx context.Context, blockIDStr string) ([]byte, bool, error) {
	buf, err := g.m.HandleFetch(ctx, blockIDStr)
	if err != nil {
		if err == transport.ErrBlockNotAtPeer {
			return nil, false, nil
		}
		return nil, false, err
	}
	return buf.Bytes, true, nil
}

func (g grpcEndpoint) HandleUpload(ctx context.Context, blockID blockid.BlockId, data []byte, level blockid.StorageLevel, tag string) error {
	return g.m.HandleUpload(ctx, blockID, transport.ManagedBuffer{Bytes: data, Size: int64(len(data))}, level, tag)
}
