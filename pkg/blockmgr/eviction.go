package blockmgr

import (
	"context"

	"github.com/blockmgr/blockmanager/internal/logger"
	"github.com/blockmgr/blockmanager/internal/telemetry"
	"github.com/blockmgr/blockmanager/pkg/blockid"
	"github.com/blockmgr/blockmanager/pkg/memstore"
	"github.com/blockmgr/blockmanager/pkg/metrics"
)

var _ memstore.EvictionHandler = (*Manager)(nil)

// DropFromMemory implements memstore.EvictionHandler. It is invoked by
// MemoryStore while holding the victim's write lock. If the block's level
// allows disk and disk does not already hold it, the block is persisted
// there first; the block is then reported to the master with its new
// (possibly empty) status and the effective post-eviction StorageLevel is
// returned.
func (m *Manager) DropFromMemory(id blockid.BlockId, bytes []byte, values []any) blockid.StorageLevel {
	ctx := context.Background()
	ctx, span := telemetry.StartEvictSpan(ctx, id.Name())
	defer span.End()

	info, ok := m.info.Get(id)
	if !ok {
		return blockid.None
	}

	newLevel := blockid.StorageLevel{UseDisk: info.Level.UseDisk, Replication: info.Level.Replication}

	if info.Level.UseDisk {
		if already, _ := m.disk.Contains(ctx, id.Name()); !already {
			data := bytes
			if data == nil && values != nil {
				serialized, err := m.serializer.SerializeValues(values)
				if err != nil {
					logger.Warn("blockmgr: failed to serialize evicted block for disk spill",
						logger.BlockID(id.Name()), logger.Err(err))
					newLevel = blockid.None
				} else {
					data = serialized
				}
			}
			if data != nil {
				if err := m.disk.Put(ctx, id.Name(), data); err != nil {
					logger.Warn("blockmgr: failed to spill evicted block to disk",
						logger.BlockID(id.Name()), logger.Err(err))
					newLevel = blockid.None
				}
			}
		}
	} else {
		// The victim's level did not allow disk: it is fully lost. Erase the
		// stale entry so a later put can create a fresh one instead of
		// finding a leftover write-lockable record for a block that no
		// longer exists anywhere.
		newLevel = blockid.None
		m.info.RemoveBlock(id)
	}

	var size int64
	if newLevel.IsValid() {
		size, _ = m.disk.Size(ctx, id.Name())
	}

	metrics.ObserveEviction(m.metrics, "memory-pressure", int64(len(bytes)))

	if info.Tellmaster {
		m.reportBlockStatus(ctx, id, newLevel, size)
	}

	return newLevel
}
