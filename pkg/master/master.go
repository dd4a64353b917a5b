// Package master defines the directory-service interface a BlockManager
// registers with and reports status to. The master itself is an external
// collaborator; this package only defines the contract plus an in-memory
// reference implementation under master/memory.
package master

import (
	"context"
	"errors"

	"github.com/blockmgr/blockmanager/pkg/blockid"
)

// ErrUnknownSender is returned by UpdateBlockInfo when the master does not
// recognize the reporting BlockManagerId, instructing the caller to
// re-register.
var ErrUnknownSender = errors.New("master: sender is not registered")

// BlockStatus is a point-in-time snapshot of a block's placement, derived
// live from the stores that hold it.
type BlockStatus struct {
	Level    blockid.StorageLevel
	MemSize  int64
	DiskSize int64
}

// Empty is the BlockStatus reported for a block absent from both tiers.
var Empty = BlockStatus{}

// Master is the directory service tracking which BlockManagerId holds which
// BlockId, and the liveness of registered BlockManagers.
type Master interface {
	// RegisterBlockManager announces this node's presence and capacity. The
	// master may canonicalize the id it returns (effectiveId).
	RegisterBlockManager(ctx context.Context, id blockid.BlockManagerId, maxOnHeap, maxOffHeap int64, slaveEndpoint string) (effectiveId blockid.BlockManagerId, err error)

	// UpdateBlockInfo reports a block's current placement. A false return
	// (with no error) instructs the sender to re-register; ErrUnknownSender
	// wraps that signal for callers that prefer an error path.
	UpdateBlockInfo(ctx context.Context, id blockid.BlockManagerId, blockID blockid.BlockId, level blockid.StorageLevel, memSize, diskSize int64) (bool, error)

	// GetLocations returns every BlockManagerId known to hold a copy of
	// blockID.
	GetLocations(ctx context.Context, blockID blockid.BlockId) ([]blockid.BlockManagerId, error)

	// GetLocationsAndStatus returns locations together with the status the
	// master has on file; ok is false if the block is unknown to the master.
	GetLocationsAndStatus(ctx context.Context, blockID blockid.BlockId) (locations []blockid.BlockManagerId, status BlockStatus, ok bool, err error)

	// GetPeers returns every registered BlockManagerId other than self,
	// eligible as replication targets.
	GetPeers(ctx context.Context, self blockid.BlockManagerId) ([]blockid.BlockManagerId, error)
}
