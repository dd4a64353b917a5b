package blockmgr

import (
	"context"

	"github.com/blockmgr/blockmanager/internal/logger"
	"github.com/blockmgr/blockmanager/pkg/blockid"
	"github.com/blockmgr/blockmanager/pkg/master"
)

// GetCurrentBlockStatus synthesizes a live snapshot from the two stores —
// it never trusts a stale size field on BlockInfo. Replication defaults to
// 1 if the block is no longer present anywhere.
func (m *Manager) GetCurrentBlockStatus(ctx context.Context, id blockid.BlockId, declaredLevel blockid.StorageLevel) master.BlockStatus {
	var memSize int64
	if sz, ok := m.mem.GetSize(id); ok {
		memSize = sz
	}

	var diskSize int64
	if present, _ := m.disk.Contains(ctx, id.Name()); present {
		diskSize, _ = m.disk.Size(ctx, id.Name())
	}

	level := declaredLevel
	if memSize == 0 && diskSize == 0 {
		level = blockid.StorageLevel{Replication: 1}
	}
	if level.IsValid() && level.Replication < 1 {
		level.Replication = 1
	}

	return master.BlockStatus{Level: level, MemSize: memSize, DiskSize: diskSize}
}

// reportBlockStatus sends an update to the master. If the master reports
// that the sender is unknown, an asynchronous re-registration is
// scheduled; this is fire-and-forget, the next heartbeat (or caller)
// drives the retry.
func (m *Manager) reportBlockStatus(ctx context.Context, id blockid.BlockId, level blockid.StorageLevel, size int64) {
	status := m.GetCurrentBlockStatus(ctx, id, level)

	known, err := m.master.UpdateBlockInfo(ctx, m.self, id, status.Level, status.MemSize, status.DiskSize)
	if err != nil {
		logger.Warn("blockmgr: failed to report block status to master",
			logger.BlockID(id.Name()), logger.Err(err))
		return
	}
	if !known {
		m.asyncReregister(ctx)
	}
}

// ReportAllBlocks reports the current status of each block in blocks (block
// id to declared level) to the master; the caller chooses which blocks to
// include. It is re-entrant and idempotent; a per-block
// failure is logged and skipped rather than aborting the whole pass, since
// the next heartbeat will retry it.
func (m *Manager) ReportAllBlocks(ctx context.Context, blocks map[blockid.BlockId]blockid.StorageLevel) {
	for id, level := range blocks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Warn("blockmgr: panic while reporting block status, skipping",
						logger.BlockID(id.Name()))
				}
			}()
			m.reportBlockStatus(ctx, id, level, 0)
		}()
	}
}

// asyncReregister fires a best-effort re-registration in the background.
// It is deduplicated: a re-registration already in flight is not
// duplicated by a second UnknownSender signal arriving while it runs.
func (m *Manager) asyncReregister(ctx context.Context) {
	m.reregisterMu.Lock()
	if m.reregistering {
		m.reregisterMu.Unlock()
		return
	}
	m.reregistering = true
	m.reregisterMu.Unlock()

	go func() {
		defer func() {
			m.reregisterMu.Lock()
			m.reregistering = false
			m.reregisterMu.Unlock()
		}()

		effective, err := m.master.RegisterBlockManager(ctx, m.self, 0, 0, "")
		if err != nil {
			logger.Warn("blockmgr: re-registration with master failed, next heartbeat will retry", logger.Err(err))
			return
		}
		m.self = effective
		logger.Info("blockmgr: re-registered with master after unknown-sender signal", logger.PeerID(effective.String()))
	}()
}
