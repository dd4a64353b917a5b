package blockmgr

import (
	"context"
	"io"

	"github.com/blockmgr/blockmanager/pkg/blockid"
	"github.com/blockmgr/blockmanager/pkg/blockinfo"
	"github.com/blockmgr/blockmanager/pkg/transport"
	"github.com/blockmgr/blockmanager/pkg/transport/memory"
)

var _ memory.Endpoint = (*Manager)(nil)

// HandleFetch serves a peer's synchronous fetch request for blockIDStr. It
// is the receiving side of Transport.FetchBlockSync: a transport
// implementation (pkg/transport/grpc, pkg/transport/memory) routes an
// inbound fetch here rather than back through Get, since a peer request
// must never itself trigger a remote fetch — only a local lookup.
func (m *Manager) HandleFetch(ctx context.Context, blockIDStr string) (transport.ManagedBuffer, error) {
	id, err := blockid.Parse(blockIDStr)
	if err != nil {
		return transport.ManagedBuffer{}, err
	}

	data, release, err := m.GetLocalBytes(id, NonTaskWriter)
	if err != nil {
		if err == ErrBlockNotFound {
			return transport.ManagedBuffer{}, transport.ErrBlockNotAtPeer
		}
		return transport.ManagedBuffer{}, err
	}
	defer release()

	// Copy out from under the read lock: the caller may hold onto Bytes
	// after release() drops the lock below.
	out := make([]byte, len(data))
	copy(out, data)

	return transport.ManagedBuffer{Bytes: out, Size: int64(len(out))}, nil
}

// HandleUpload accepts a peer-initiated replica push, places it locally and
// reports this replica's location to the master (the uploading peer reports
// only its own copy). The replica is stored with Replication 1, so this call
// never recurses back into replication.
func (m *Manager) HandleUpload(ctx context.Context, id blockid.BlockId, buf transport.ManagedBuffer, level blockid.StorageLevel, tag string) error {
	data := buf.Bytes
	if data == nil && buf.File != nil {
		defer buf.File.Close()
		read, err := io.ReadAll(buf.File)
		if err != nil {
			return err
		}
		data = read
	}

	nonReplicating := level
	nonReplicating.Replication = 1

	err := m.doPut(ctx, id, nonReplicating, true, false, NonTaskWriter, func(info *blockinfo.BlockInfo) (putResult, error) {
		return m.placeBytes(ctx, id, data, nonReplicating)
	})
	if err == ErrBlockExists {
		return nil
	}
	return err
}
