package blockmgr

import (
	"context"
	"time"

	"github.com/blockmgr/blockmanager/internal/telemetry"
	"github.com/blockmgr/blockmanager/pkg/blockid"
	"github.com/blockmgr/blockmanager/pkg/metrics"
	"github.com/blockmgr/blockmanager/pkg/transport"
)

// GetLocalValues acquires a read lock and returns id's values, reading
// through memory first then disk. The returned release func must be
// called exactly once, typically via defer, once the caller is done with
// the values — it releases the read lock acquired here.
func (m *Manager) GetLocalValues(id blockid.BlockId, taskID TaskID) (values []any, release func(), err error) {
	info, err := m.info.LockForReading(id, taskID, true)
	if err != nil {
		return nil, func() {}, err
	}
	if info == nil {
		return nil, func() {}, ErrBlockNotFound
	}
	release = func() { m.info.Unlock(id, taskID) }

	if vs, ok := m.mem.GetValues(id); ok {
		return vs, release, nil
	}
	if bs, ok := m.mem.GetBytes(id); ok {
		vs, derr := m.serializer.DeserializeValues(bs)
		if derr != nil {
			release()
			return nil, func() {}, derr
		}
		return vs, release, nil
	}
	if info.Level.UseDisk {
		data, derr := m.disk.Get(context.Background(), id.Name())
		if derr != nil {
			release()
			return nil, func() {}, derr
		}
		vs, serr := m.serializer.DeserializeValues(data)
		if serr != nil {
			release()
			return nil, func() {}, serr
		}
		// Opportunistically re-cache into memory; reservation failure here
		// is not an error, just a missed caching opportunity.
		_, _ = m.mem.PutBytes(id, int64(len(data)), func() ([]byte, error) { return data, nil })
		return vs, release, nil
	}

	release()
	return nil, func() {}, ErrBlockNotFound
}

// GetLocalBytes acquires a read lock and returns id's serialized bytes.
// Shuffle blocks bypass the lock manager entirely — this module has no
// shuffle resolver of its own (the shuffle subsystem is an out-of-scope
// external collaborator), so a shuffle BlockId is served straight from
// whichever store holds it without taking any lock.
func (m *Manager) GetLocalBytes(id blockid.BlockId, taskID TaskID) (data []byte, release func(), err error) {
	if id.IsShuffle() {
		return m.getBytesFromStores(id, func() {})
	}

	info, err := m.info.LockForReading(id, taskID, true)
	if err != nil {
		return nil, func() {}, err
	}
	if info == nil {
		return nil, func() {}, ErrBlockNotFound
	}
	release = func() { m.info.Unlock(id, taskID) }

	// A deserialized level prefers disk (already serialized) over memory
	// (would require fresh serialization); a non-deserialized level
	// prefers memory over disk.
	if info.Level.Deserialized {
		data, err = m.readBytesDiskFirst(id)
	} else {
		data, err = m.readBytesMemoryFirst(id)
	}
	if err != nil {
		release()
		return nil, func() {}, err
	}
	return data, release, nil
}

func (m *Manager) getBytesFromStores(id blockid.BlockId, release func()) ([]byte, func(), error) {
	if b, ok := m.mem.GetBytes(id); ok {
		return b, release, nil
	}
	data, err := m.disk.Get(context.Background(), id.Name())
	if err != nil {
		return nil, release, err
	}
	return data, release, nil
}

func (m *Manager) readBytesDiskFirst(id blockid.BlockId) ([]byte, error) {
	if data, err := m.disk.Get(context.Background(), id.Name()); err == nil {
		return data, nil
	}
	if b, ok := m.mem.GetBytes(id); ok {
		return b, nil
	}
	if vs, ok := m.mem.GetValues(id); ok {
		return m.serializer.SerializeValues(vs)
	}
	return nil, ErrBlockNotFound
}

func (m *Manager) readBytesMemoryFirst(id blockid.BlockId) ([]byte, error) {
	if b, ok := m.mem.GetBytes(id); ok {
		return b, nil
	}
	if vs, ok := m.mem.GetValues(id); ok {
		return m.serializer.SerializeValues(vs)
	}
	if data, err := m.disk.Get(context.Background(), id.Name()); err == nil {
		return data, nil
	}
	return nil, ErrBlockNotFound
}

// Get retrieves id's bytes, trying the local stores first and falling
// through to a remote fetch via the Fetcher when absent locally.
func (m *Manager) Get(ctx context.Context, id blockid.BlockId, taskID TaskID) (transport.ManagedBuffer, error) {
	start := time.Now()

	ctx, span := telemetry.StartGetSpan(ctx, id.Name())
	defer span.End()

	if data, release, err := m.GetLocalBytes(id, taskID); err == nil {
		release()
		span.SetAttributes(telemetry.CacheHit(true))
		metrics.ObserveGet(m.metrics, "local", int64(len(data)), time.Since(start), true)
		return transport.ManagedBuffer{Bytes: data, Size: int64(len(data))}, nil
	}
	span.SetAttributes(telemetry.CacheHit(false))

	buf, err := m.GetRemoteBytes(ctx, id)
	metrics.ObserveGet(m.metrics, "remote", buf.Size, time.Since(start), err == nil)
	return buf, err
}

// GetRemoteBytes delegates to the Fetcher.
func (m *Manager) GetRemoteBytes(ctx context.Context, id blockid.BlockId) (transport.ManagedBuffer, error) {
	if m.fetcher == nil {
		return transport.ManagedBuffer{}, ErrBlockNotFound
	}
	return m.fetcher.FetchRemoteBytes(ctx, id)
}
