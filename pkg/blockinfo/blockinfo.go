// Package blockinfo implements per-block multi-reader/single-writer locking,
// keyed by blockid.BlockId and tracked per task so a failed or completed task
// can release everything it was holding in one call.
package blockinfo

import (
	"fmt"

	"github.com/blockmgr/blockmanager/pkg/blockid"
)

// TaskID identifies the task that holds or is waiting on a lock.
type TaskID int64

// NonTaskWriter is used for administrative writes that originate outside any
// task (master-driven evictions, background compaction, tests).
const NonTaskWriter TaskID = -1024

// BlockInfo is the metadata record a BlockInfoManager guards with its lock.
// Readers and writers of a block see the same BlockInfo instance for as long
// as the block exists; it is replaced, not mutated in place, by removeBlock.
type BlockInfo struct {
	Level        blockid.StorageLevel
	Size         int64
	Tellmaster   bool // whether placement/removal should be reported to the master
	readerCount  int
	writerTask   TaskID
	hasWriter    bool
}

// newBlockInfo returns a BlockInfo with no size recorded yet; Size is filled
// in by the caller once placement succeeds.
func newBlockInfo(level blockid.StorageLevel, tellMaster bool) *BlockInfo {
	return &BlockInfo{Level: level, Tellmaster: tellMaster, writerTask: NonTaskWriter}
}

// ReaderCount reports the current number of readers holding this block.
func (bi *BlockInfo) ReaderCount() int { return bi.readerCount }

// Writer reports whether a writer currently holds this block, and by whom.
func (bi *BlockInfo) Writer() (TaskID, bool) { return bi.writerTask, bi.hasWriter }

var (
	// ErrBlockNotFound is returned by lock operations when no BlockInfo exists
	// for the id.
	ErrBlockNotFound = fmt.Errorf("blockinfo: block not found")
)
