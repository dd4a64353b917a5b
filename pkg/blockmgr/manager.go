// Package blockmgr implements Manager, the BlockManager core: admission,
// tiered placement, eviction-driven status reporting, and get/put
// orchestration over blockinfo's locks, memstore/diskstore's tiers, and the
// external master/transport collaborators.
package blockmgr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/blockmgr/blockmanager/internal/logger"
	"github.com/blockmgr/blockmanager/internal/telemetry"
	"github.com/blockmgr/blockmanager/pkg/blockid"
	"github.com/blockmgr/blockmanager/pkg/blockinfo"
	"github.com/blockmgr/blockmanager/pkg/diskstore"
	"github.com/blockmgr/blockmanager/pkg/master"
	"github.com/blockmgr/blockmanager/pkg/memstore"
	"github.com/blockmgr/blockmanager/pkg/metrics"
	"github.com/blockmgr/blockmanager/pkg/remotefetch"
	"github.com/blockmgr/blockmanager/pkg/replication"
	"github.com/blockmgr/blockmanager/pkg/tempfile"
	"github.com/blockmgr/blockmanager/pkg/transport"
)

// TaskID re-exports blockinfo.TaskID so callers need not import blockinfo
// just to name a task.
type TaskID = blockinfo.TaskID

// NonTaskWriter re-exports blockinfo.NonTaskWriter.
const NonTaskWriter = blockinfo.NonTaskWriter

var (
	// ErrBlockExists is returned by Put when the block was already present;
	// the write was skipped and the call is treated as a success.
	ErrBlockExists = errors.New("blockmgr: block already exists")

	// ErrPlacementFailed is returned when neither memory nor disk could
	// accept the block (e.g. memory reservation failed and disk was not
	// requested by the StorageLevel).
	ErrPlacementFailed = errors.New("blockmgr: could not place block in any requested tier")

	// ErrBlockNotFound is returned by get-path operations when a block is
	// resident nowhere this BlockManager knows about.
	ErrBlockNotFound = errors.New("blockmgr: block not found")
)

// Config carries every collaborator and tunable Manager needs. Self, Master,
// Info, Mem and Disk are required. Transport, Replicator, Fetcher, TempFiles
// and Metrics may be nil (no replication, no remote fetch, no metrics); a nil
// Serializer falls back to GobSerializer.
type Config struct {
	Self      blockid.BlockManagerId
	Master    master.Master
	Transport transport.Transport

	Info *blockinfo.Manager
	Mem  *memstore.Store
	Disk diskstore.Store

	Replicator *replication.Replicator
	Fetcher    *remotefetch.Fetcher
	TempFiles  *tempfile.Manager

	Serializer Serializer
	Metrics    metrics.BlockManagerMetrics
}

// Manager is the BlockManager core. It owns references to both stores, the
// lock manager, the master and transport handles, and the replicator; it
// does not own the master's directory state.
type Manager struct {
	self blockid.BlockManagerId

	info *blockinfo.Manager
	mem  *memstore.Store
	disk diskstore.Store

	master    master.Master
	transport transport.Transport

	replicator *replication.Replicator
	fetcher    *remotefetch.Fetcher
	tempFiles  *tempfile.Manager

	serializer Serializer
	metrics    metrics.BlockManagerMetrics
	offHeap    *offHeapAllocator

	reregisterMu   sync.Mutex
	reregistering  bool
}

// New wires cfg's collaborators into a ready-to-use Manager. Mem and Disk
// must both be non-nil; a BlockManager with neither tier cannot place
// anything.
func New(cfg Config) *Manager {
	serializer := cfg.Serializer
	if serializer == nil {
		serializer = GobSerializer{}
	}
	return &Manager{
		self:       cfg.Self,
		info:       cfg.Info,
		mem:        cfg.Mem,
		disk:       cfg.Disk,
		master:     cfg.Master,
		transport:  cfg.Transport,
		replicator: cfg.Replicator,
		fetcher:    cfg.Fetcher,
		tempFiles:  cfg.TempFiles,
		serializer: serializer,
		metrics:    cfg.Metrics,
		offHeap:    newOffHeapAllocator(),
	}
}

// Register announces this node to the master, adopting whatever effective
// id the master assigns (it may canonicalize host/port).
func (m *Manager) Register(ctx context.Context, maxOnHeap, maxOffHeap int64, slaveEndpoint string) error {
	effective, err := m.master.RegisterBlockManager(ctx, m.self, maxOnHeap, maxOffHeap, slaveEndpoint)
	if err != nil {
		return err
	}
	m.self = effective
	return nil
}

// putResult is what a placement body reports back to doPut.
type putResult struct {
	level blockid.StorageLevel
	size  int64
}

// doPut is the shared put skeleton: construct a fresh BlockInfo, attempt
// exclusive creation, run body under the write lock, compute the
// resulting status, then unlock (or downgrade) and report.
func (m *Manager) doPut(ctx context.Context, id blockid.BlockId, level blockid.StorageLevel, tellMaster, keepReadLock bool, taskID TaskID, body func(info *blockinfo.BlockInfo) (putResult, error)) error {
	if err := level.Validate(); err != nil {
		return err
	}

	info := newBlockInfoFor(level, tellMaster)
	created, err := m.info.LockNewBlockForWriting(id, taskID, info)
	if err != nil {
		return err
	}
	if !created {
		// Someone else already holds this block; we were handed a read lock
		// on the existing entry instead.
		if !keepReadLock {
			m.info.Unlock(id, taskID)
		}
		return ErrBlockExists
	}

	result, bodyErr := body(info)
	if bodyErr != nil || !result.level.IsValid() {
		m.info.RemoveBlock(id)
		m.info.Unlock(id, taskID)
		if bodyErr != nil {
			return bodyErr
		}
		return ErrPlacementFailed
	}

	info.Level = result.level
	info.Size = result.size

	if keepReadLock {
		m.info.DowngradeLock(id, taskID)
	} else {
		m.info.Unlock(id, taskID)
	}

	if tellMaster {
		m.reportBlockStatus(ctx, id, result.level, result.size)
	}
	return nil
}

func newBlockInfoFor(level blockid.StorageLevel, tellMaster bool) *blockinfo.BlockInfo {
	return &blockinfo.BlockInfo{Level: level, Tellmaster: tellMaster}
}

// PutBytes places already-serialized data under id. Replication is
// launched before local placement — the bytes are already in their final
// wire form, so the upload can proceed in parallel with memory/disk
// placement. The put returns only once both complete.
func (m *Manager) PutBytes(ctx context.Context, id blockid.BlockId, data []byte, level blockid.StorageLevel, tag string, taskID TaskID) error {
	start := time.Now()

	ctx, span := telemetry.StartPutSpan(ctx, id.Name(), level.String())
	defer span.End()

	var replicationFuture *replication.Future
	if level.Replication > 1 && m.replicator != nil {
		replicationFuture = m.replicator.ReplicateAsync(ctx, id, data, level, tag, nil)
	}

	err := m.doPut(ctx, id, level, true, false, taskID, func(info *blockinfo.BlockInfo) (putResult, error) {
		placed := data
		if level.UseOffHeap {
			placed = m.offHeap.copyOffHeap(data)
		}
		return m.placeBytes(ctx, id, placed, level)
	})

	if replicationFuture != nil {
		achieved := replicationFuture.Wait()
		metrics.ObserveReplication(m.metrics, len(achieved), int(level.Replication)-1, time.Since(start))
	}

	metrics.ObservePut(m.metrics, level.String(), int64(len(data)), time.Since(start), err == nil)
	return err
}

// placeBytes attempts memory placement first (even when disk is also
// requested), falling back to disk on memory failure — a store's
// reservation failure is a signal, not an error.
func (m *Manager) placeBytes(ctx context.Context, id blockid.BlockId, data []byte, level blockid.StorageLevel) (putResult, error) {
	if level.UseMemory {
		stored, err := m.mem.PutBytes(id, int64(len(data)), func() ([]byte, error) { return data, nil })
		if err != nil {
			return putResult{}, err
		}
		if stored {
			return putResult{level: level, size: int64(len(data))}, nil
		}
		if !level.UseDisk {
			return putResult{}, nil
		}
	}
	if level.UseDisk {
		if err := m.disk.Put(ctx, id.Name(), data); err != nil {
			return putResult{}, err
		}
		return putResult{level: level, size: int64(len(data))}, nil
	}
	return putResult{}, nil
}

// PutValues places typed values under id. Replication, if requested,
// happens after local placement completes (values must first be
// serialized by reading back the bytes that landed locally).
func (m *Manager) PutValues(ctx context.Context, id blockid.BlockId, values []any, level blockid.StorageLevel, tag string, taskID TaskID) error {
	start := time.Now()

	ctx, span := telemetry.StartPutSpan(ctx, id.Name(), level.String())
	defer span.End()

	var placedSize int64
	err := m.doPut(ctx, id, level, true, false, taskID, func(info *blockinfo.BlockInfo) (putResult, error) {
		result, err := m.placeValues(ctx, id, values, level)
		placedSize = result.size
		return result, err
	})

	if err == nil && level.Replication > 1 && m.replicator != nil {
		replicaBytes, serErr := m.readBackLocalBytes(ctx, id, level)
		if serErr == nil {
			achieved := m.replicator.ReplicateAsync(ctx, id, replicaBytes, level, tag, nil).Wait()
			metrics.ObserveReplication(m.metrics, len(achieved), int(level.Replication)-1, time.Since(start))
		} else {
			logger.Warn("blockmgr: could not serialize block for post-placement replication",
				logger.BlockID(id.Name()), logger.Err(serErr))
		}
	}

	metrics.ObservePut(m.metrics, level.String(), placedSize, time.Since(start), err == nil)
	return err
}

func (m *Manager) placeValues(ctx context.Context, id blockid.BlockId, values []any, level blockid.StorageLevel) (putResult, error) {
	idx := 0
	next := func() (any, bool) {
		if idx >= len(values) {
			return nil, false
		}
		v := values[idx]
		idx++
		return v, true
	}
	estimateSize := func(v any) int64 {
		b, err := m.serializer.SerializeValues([]any{v})
		if err != nil {
			return 64
		}
		return int64(len(b))
	}

	if level.Deserialized {
		return m.placeValuesDeserialized(ctx, id, next, estimateSize, level)
	}
	return m.placeValuesSerialized(ctx, id, next, level)
}

func (m *Manager) placeValuesDeserialized(ctx context.Context, id blockid.BlockId, next func() (any, bool), estimateSize func(any) int64, level blockid.StorageLevel) (putResult, error) {
	if !level.UseMemory {
		return m.spillValuesToDisk(ctx, id, drain(next), level)
	}

	size, partial, err := m.mem.PutIteratorAsValues(id, next, estimateSize)
	if err != nil {
		return putResult{}, err
	}
	if partial == nil {
		return putResult{level: level, size: size}, nil
	}

	remaining := drainPartial(partial)
	if level.UseDisk {
		return m.spillValuesToDisk(ctx, id, remaining, level)
	}
	// Memory couldn't hold it and disk wasn't requested: nothing placed.
	return putResult{}, nil
}

func (m *Manager) placeValuesSerialized(ctx context.Context, id blockid.BlockId, next func() (any, bool), level blockid.StorageLevel) (putResult, error) {
	serialize := func(w io.Writer, v any) error {
		b, err := m.serializer.SerializeValues([]any{v})
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	}

	if !level.UseMemory {
		var buf bytes.Buffer
		for v, ok := next(); ok; v, ok = next() {
			if err := serialize(&buf, v); err != nil {
				return putResult{}, err
			}
		}
		if !level.UseDisk {
			return putResult{}, nil
		}
		if err := m.disk.Put(ctx, id.Name(), buf.Bytes()); err != nil {
			return putResult{}, err
		}
		return putResult{level: level, size: int64(buf.Len())}, nil
	}

	size, partial, err := m.mem.PutIteratorAsBytes(id, next, serialize)
	if err != nil {
		return putResult{}, err
	}
	if partial == nil {
		return putResult{level: level, size: size}, nil
	}

	if !level.UseDisk {
		return putResult{}, nil
	}
	var buf bytes.Buffer
	if err := partial.FinishWritingToStream(&buf); err != nil {
		return putResult{}, err
	}
	if err := m.disk.Put(ctx, id.Name(), buf.Bytes()); err != nil {
		return putResult{}, err
	}
	return putResult{level: level, size: int64(buf.Len())}, nil
}

func (m *Manager) spillValuesToDisk(ctx context.Context, id blockid.BlockId, values []any, level blockid.StorageLevel) (putResult, error) {
	data, err := m.serializer.SerializeValues(values)
	if err != nil {
		return putResult{}, err
	}
	if err := m.disk.Put(ctx, id.Name(), data); err != nil {
		return putResult{}, err
	}
	return putResult{level: level, size: int64(len(data))}, nil
}

func drain(next func() (any, bool)) []any {
	var out []any
	for v, ok := next(); ok; v, ok = next() {
		out = append(out, v)
	}
	return out
}

func drainPartial(p *memstore.PartiallyUnrolledIterator) []any {
	var out []any
	for v, ok := p.Next(); ok; v, ok = p.Next() {
		out = append(out, v)
	}
	return out
}

// readBackLocalBytes produces the serialized form of a just-placed values
// block, preferring whichever tier holds it, for use as the replication
// payload.
func (m *Manager) readBackLocalBytes(ctx context.Context, id blockid.BlockId, level blockid.StorageLevel) ([]byte, error) {
	if b, ok := m.mem.GetBytes(id); ok {
		return b, nil
	}
	if values, ok := m.mem.GetValues(id); ok {
		return m.serializer.SerializeValues(values)
	}
	if level.UseDisk {
		return m.disk.Get(ctx, id.Name())
	}
	return nil, fmt.Errorf("blockmgr: no local copy of %s to serialize for replication", id.Name())
}

// RemoveBlock removes id from both tiers and the lock manager. It acquires
// id's write lock for taskID itself, blocking until current holders release
// it, so the caller must not already hold a lock on id; taskID
// NonTaskWriter is the conventional caller for administrative removal.
func (m *Manager) RemoveBlock(ctx context.Context, id blockid.BlockId, taskID TaskID) error {
	info, err := m.info.LockForWriting(id, taskID, true)
	if err != nil {
		return err
	}
	if info == nil {
		return ErrBlockNotFound
	}

	m.mem.Remove(id)
	_ = m.disk.Remove(ctx, id.Name())
	m.info.RemoveBlock(id)

	if info.Tellmaster {
		m.reportBlockStatus(ctx, id, blockid.None, 0)
	}
	return nil
}
