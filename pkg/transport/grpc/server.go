package grpc

import (
	"context"
	"fmt"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/blockmgr/blockmanager/internal/logger"
	"github.com/blockmgr/blockmanager/pkg/blockid"
)

func init() {
	encoding.RegisterCodec(codec{})
}

// Endpoint is implemented by whatever owns the local block data a remote
// fetch or upload request should be served from: typically blockmgr.Manager.
type Endpoint interface {
	// HandleFetch serves a local synchronous fetch for blockIDStr. found is
	// false, with no error, when this node holds no copy.
	HandleFetch(ctx context.Context, blockIDStr string) (data []byte, found bool, err error)

	// HandleUpload accepts a peer-initiated upload of blockID's bytes.
	HandleUpload(ctx context.Context, blockID blockid.BlockId, data []byte, level blockid.StorageLevel, tag string) error
}

// Server adapts an Endpoint to the BlockTransfer gRPC service.
type Server struct {
	endpoint Endpoint
}

// NewServer returns a Server dispatching RPCs into endpoint.
func NewServer(endpoint Endpoint) *Server {
	return &Server{endpoint: endpoint}
}

// Register attaches the BlockTransfer service to s. It does not set a codec;
// the wire codec is forced by NewGRPCServer, which s is expected to come from.
func Register(s *gogrpc.Server, srv *Server) {
	s.RegisterService(&serviceDesc, srv)
}

// NewGRPCServer is a convenience constructor wiring the wire codec as the
// server's default, since grpc.NewServer otherwise expects protoc-generated
// proto.Message types.
func NewGRPCServer(opts ...gogrpc.ServerOption) *gogrpc.Server {
	opts = append(opts, gogrpc.ForceServerCodec(codec{}))
	return gogrpc.NewServer(opts...)
}

func (s *Server) fetchBlock(ctx context.Context, req *fetchBlockRequest) (*fetchBlockResponse, error) {
	data, found, err := s.endpoint.HandleFetch(ctx, req.BlockIDStr)
	if err != nil {
		logger.ErrorCtx(ctx, "grpc transport: fetch failed", logger.BlockID(req.BlockIDStr), "error", err)
		return nil, fmt.Errorf("grpc transport: fetch %s: %w", req.BlockIDStr, err)
	}
	return &fetchBlockResponse{Found: found, Bytes: data, Size: int64(len(data))}, nil
}

func (s *Server) uploadBlock(ctx context.Context, req *uploadBlockRequest) (*uploadBlockResponse, error) {
	id, err := blockid.Decode(req.BlockIDWire)
	if err != nil {
		return nil, fmt.Errorf("grpc transport: decode block id: %w", err)
	}
	useDisk, useMemory, useOffHeap, deserialized := decodeLevelFlags(req.LevelFlags)
	level := blockid.StorageLevel{
		UseDisk:      useDisk,
		UseMemory:    useMemory,
		UseOffHeap:   useOffHeap,
		Deserialized: deserialized,
		Replication:  uint8(req.Replication),
	}
	if err := s.endpoint.HandleUpload(ctx, id, req.Bytes, level, req.Tag); err != nil {
		logger.ErrorCtx(ctx, "grpc transport: upload failed", logger.BlockID(id.Name()), "error", err)
		return nil, fmt.Errorf("grpc transport: upload %s: %w", id.Name(), err)
	}
	return &uploadBlockResponse{}, nil
}

var _ blockTransferServer = (*Server)(nil)
