// Package memory implements an in-memory master.Master, suitable for a
// single-process deployment or as the reference directory used by this
// module's own tests. Registrations and block locations are lost on
// restart, matching the "durability across restarts is not required"
// non-goal.
package memory

import (
	"context"
	"sync"

	"github.com/blockmgr/blockmanager/pkg/blockid"
	"github.com/blockmgr/blockmanager/pkg/master"
)

// registration tracks a live BlockManager's declared capacity.
type registration struct {
	id            blockid.BlockManagerId
	maxOnHeap     int64
	maxOffHeap    int64
	slaveEndpoint string
}

// Master is an in-memory directory: BlockId -> set of holding
// BlockManagerIds, plus a registry of live BlockManagers.
type Master struct {
	mu        sync.RWMutex
	peers     map[string]registration           // executorID -> registration
	locations map[string]map[string]master.BlockStatus // blockName -> executorID -> status
}

// New returns an empty in-memory Master.
func New() *Master {
	return &Master{
		peers:     make(map[string]registration),
		locations: make(map[string]map[string]master.BlockStatus),
	}
}

// RegisterBlockManager records id's capacity. The memory master never
// canonicalizes ids, so effectiveId is always id unchanged.
func (m *Master) RegisterBlockManager(ctx context.Context, id blockid.BlockManagerId, maxOnHeap, maxOffHeap int64, slaveEndpoint string) (blockid.BlockManagerId, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.peers[id.ExecutorID] = registration{
		id:            id,
		maxOnHeap:     maxOnHeap,
		maxOffHeap:    maxOffHeap,
		slaveEndpoint: slaveEndpoint,
	}
	return id, nil
}

// UpdateBlockInfo records blockID's status at id. If id has never
// registered, it returns (false, nil) instructing the sender to
// re-register.
func (m *Master) UpdateBlockInfo(ctx context.Context, id blockid.BlockManagerId, blockID blockid.BlockId, level blockid.StorageLevel, memSize, diskSize int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, known := m.peers[id.ExecutorID]; !known {
		return false, nil
	}

	status := master.BlockStatus{Level: level, MemSize: memSize, DiskSize: diskSize}
	name := blockID.Name()

	if !level.IsValid() {
		if byExec, ok := m.locations[name]; ok {
			delete(byExec, id.ExecutorID)
			if len(byExec) == 0 {
				delete(m.locations, name)
			}
		}
		return true, nil
	}

	byExec, ok := m.locations[name]
	if !ok {
		byExec = make(map[string]master.BlockStatus)
		m.locations[name] = byExec
	}
	byExec[id.ExecutorID] = status
	return true, nil
}

// GetLocations returns every BlockManagerId currently reporting blockID.
func (m *Master) GetLocations(ctx context.Context, blockID blockid.BlockId) ([]blockid.BlockManagerId, error) {
	locs, _, _, err := m.GetLocationsAndStatus(ctx, blockID)
	return locs, err
}

// GetLocationsAndStatus returns locations together with the status reported
// by one of the holders (which one is not defined: holders are kept in a
// map); ok is false if no location holds blockID.
func (m *Master) GetLocationsAndStatus(ctx context.Context, blockID blockid.BlockId) ([]blockid.BlockManagerId, master.BlockStatus, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byExec, ok := m.locations[blockID.Name()]
	if !ok || len(byExec) == 0 {
		return nil, master.Empty, false, nil
	}

	locations := make([]blockid.BlockManagerId, 0, len(byExec))
	var status master.BlockStatus
	for execID, st := range byExec {
		reg, known := m.peers[execID]
		if !known {
			continue
		}
		locations = append(locations, reg.id)
		status = st
	}
	if len(locations) == 0 {
		return nil, master.Empty, false, nil
	}
	return locations, status, true, nil
}

// GetPeers returns every registered BlockManagerId other than self.
func (m *Master) GetPeers(ctx context.Context, self blockid.BlockManagerId) ([]blockid.BlockManagerId, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	peers := make([]blockid.BlockManagerId, 0, len(m.peers))
	for _, reg := range m.peers {
		if reg.id.Equal(self) {
			continue
		}
		peers = append(peers, reg.id)
	}
	return peers, nil
}

var _ master.Master = (*Master)(nil)
