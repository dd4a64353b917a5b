package blockid

import (
	"errors"
	"fmt"
)

// ErrInvalidStorageLevel is returned by Validate when a StorageLevel violates
// one of its placement invariants.
var ErrInvalidStorageLevel = errors.New("blockid: invalid storage level")

// StorageLevel is the 5-tuple placement policy attached to every block.
type StorageLevel struct {
	UseDisk      bool
	UseMemory    bool
	UseOffHeap   bool
	Deserialized bool
	Replication  uint8
}

// Validate enforces that off-heap implies serialized-in-memory, and that
// at least one tier must be requested.
func (l StorageLevel) Validate() error {
	if l.UseOffHeap && l.Deserialized {
		return fmt.Errorf("%w: off-heap storage requires serialized bytes", ErrInvalidStorageLevel)
	}
	if l.UseOffHeap && !l.UseMemory {
		return fmt.Errorf("%w: off-heap storage requires useMemory", ErrInvalidStorageLevel)
	}
	if l.Replication < 1 {
		return fmt.Errorf("%w: replication must be >= 1", ErrInvalidStorageLevel)
	}
	if !l.IsValid() {
		return fmt.Errorf("%w: at least one of useMemory/useDisk must be true", ErrInvalidStorageLevel)
	}
	return nil
}

// IsValid reports whether the level places the block somewhere at all.
func (l StorageLevel) IsValid() bool {
	return l.UseMemory || l.UseDisk
}

// String returns a canonical human-readable form, used in logs and metrics.
func (l StorageLevel) String() string {
	if !l.IsValid() {
		return "NONE"
	}
	var tiers string
	switch {
	case l.UseDisk && l.UseMemory:
		tiers = "MEMORY_AND_DISK"
	case l.UseMemory:
		tiers = "MEMORY_ONLY"
	case l.UseDisk:
		tiers = "DISK_ONLY"
	}
	if l.UseMemory && !l.Deserialized {
		tiers += "_SER"
	}
	if l.UseOffHeap {
		tiers += "_OFF_HEAP"
	}
	if l.Replication > 1 {
		tiers += fmt.Sprintf("_%d", l.Replication)
	}
	return tiers
}

// Named constructors matching the conventional storage level table.
// Supplements the distilled spec: the original block manager ships these as
// public constants and every caller reaches for them by name.
var (
	MemoryOnly         = StorageLevel{UseMemory: true, Deserialized: true, Replication: 1}
	MemoryOnly2        = StorageLevel{UseMemory: true, Deserialized: true, Replication: 2}
	MemoryOnlySer      = StorageLevel{UseMemory: true, Deserialized: false, Replication: 1}
	MemoryOnlySer2     = StorageLevel{UseMemory: true, Deserialized: false, Replication: 2}
	DiskOnly           = StorageLevel{UseDisk: true, Replication: 1}
	DiskOnly2          = StorageLevel{UseDisk: true, Replication: 2}
	MemoryAndDisk      = StorageLevel{UseDisk: true, UseMemory: true, Deserialized: true, Replication: 1}
	MemoryAndDisk2     = StorageLevel{UseDisk: true, UseMemory: true, Deserialized: true, Replication: 2}
	MemoryAndDiskSer   = StorageLevel{UseDisk: true, UseMemory: true, Deserialized: false, Replication: 1}
	MemoryAndDiskSer2  = StorageLevel{UseDisk: true, UseMemory: true, Deserialized: false, Replication: 2}
	OffHeap            = StorageLevel{UseMemory: true, UseOffHeap: true, Deserialized: false, Replication: 1}
	None               = StorageLevel{}
)

// BlockManagerId is the composite node identity of a BlockManager instance.
type BlockManagerId struct {
	ExecutorID   string
	Host         string
	Port         int
	TopologyInfo string // optional rack/zone tag; ignored by Equal
}

// Equal compares two ids ignoring TopologyInfo.
func (id BlockManagerId) Equal(other BlockManagerId) bool {
	return id.ExecutorID == other.ExecutorID && id.Host == other.Host && id.Port == other.Port
}

// String returns a canonical form used in logs.
func (id BlockManagerId) String() string {
	return fmt.Sprintf("BlockManagerId(%s, %s:%d)", id.ExecutorID, id.Host, id.Port)
}
