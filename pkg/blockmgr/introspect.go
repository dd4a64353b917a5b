package blockmgr

import (
	"context"

	"github.com/blockmgr/blockmanager/pkg/blockid"
	"github.com/blockmgr/blockmanager/pkg/master"
)

// Self returns this BlockManager's node identity, as adopted from the
// master's Register response.
func (m *Manager) Self() blockid.BlockManagerId {
	return m.self
}

// BlockNames returns the names of every block currently tracked by this
// manager's lock table. Intended for read-only introspection; the result is
// a snapshot, not a live view.
func (m *Manager) BlockNames() []string {
	return m.info.ListBlockNames()
}

// Describe returns a point-in-time status snapshot for a known block. The
// second return value is false if id is not tracked by this manager.
func (m *Manager) Describe(ctx context.Context, id blockid.BlockId) (master.BlockStatus, bool) {
	info, ok := m.info.Get(id)
	if !ok {
		return master.BlockStatus{}, false
	}
	return m.GetCurrentBlockStatus(ctx, id, info.Level), true
}
