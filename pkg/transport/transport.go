// Package transport defines the wire-transfer interface a BlockManager uses
// to fetch blocks from, and upload blocks to, peer nodes. Concrete
// implementations live in transport/grpc (real network) and
// transport/memory (in-process, for tests and single-process deployments).
package transport

import (
	"context"
	"errors"
	"io"

	"github.com/blockmgr/blockmanager/pkg/blockid"
)

// ErrBlockNotAtPeer is returned by Transport.FetchBlockSync when the target
// peer has no copy of the requested block.
var ErrBlockNotAtPeer = errors.New("transport: block not found at peer")

// ManagedBuffer is the transport-level payload handed back by a fetch. It is
// either fully resident (Bytes) or backed by a temp file the caller must
// read and eventually dispose of (File); exactly one is non-nil.
type ManagedBuffer struct {
	Bytes []byte
	File  io.ReadCloser
	Size  int64
}

// TempFileAllocator is implemented by pkg/tempfile.Manager. When a fetch
// response exceeds the caller's in-memory threshold, the transport asks it
// for a file to spill into instead of buffering in a []byte.
type TempFileAllocator interface {
	// NewTempFile returns a writable file a transport may spill an oversize
	// fetch response into, plus a function that opens it for reading once
	// the transport is done writing.
	NewTempFile() (w io.WriteCloser, openForRead func() (io.ReadCloser, error), err error)
}

// Transport is the external block-transfer capability used for peer
// uploads and fetches.
type Transport interface {
	// FetchBlockSync synchronously retrieves blockIDStr from host:port.
	// tempFileManager is non-nil when the caller expects a response large
	// enough to warrant spilling to disk instead of buffering in memory.
	FetchBlockSync(ctx context.Context, host string, port int, executorID, blockIDStr string, tempFileManager TempFileAllocator) (ManagedBuffer, error)

	// UploadBlockSync synchronously uploads blockID's bytes to host:port.
	UploadBlockSync(ctx context.Context, host string, port int, executorID string, blockID blockid.BlockId, buf ManagedBuffer, level blockid.StorageLevel, tag string) error
}
