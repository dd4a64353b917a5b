package memstore

import (
	"cmp"
	"errors"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/blockmgr/blockmanager/internal/logger"
	"github.com/blockmgr/blockmanager/pkg/blockid"
	"github.com/blockmgr/blockmanager/pkg/blockinfo"
)

// ErrReservationFailed signals that the accountant would not grant the
// requested bytes. It is not an error condition by itself — callers (doPut)
// treat it as a signal to spill to disk or give up.
var ErrReservationFailed = errors.New("memstore: reservation failed")

// EvictionHandler is the capability the owning BlockManager passes into a
// Store so the store can ask its owner to persist an evicted block
// elsewhere before the bytes are dropped from memory. This expresses the
// BlockManager<->MemoryStore back-edge as a callback interface the store
// captures at construction, avoiding a reference cycle between the two.
type EvictionHandler interface {
	// DropFromMemory is invoked while the victim's write lock is held. It
	// returns the StorageLevel the block now has after eviction (e.g. still
	// on disk, or entirely gone).
	DropFromMemory(id blockid.BlockId, bytes []byte, values []any) blockid.StorageLevel
}

// entry is one resident block.
type entry struct {
	id           blockid.BlockId
	rddID        int // -1 when id is not an RDDBlockId
	size         int64
	deserialized bool
	values       []any
	bytes        []byte
	lastAccess   time.Time
}

// Store is the bounded in-memory tier. It holds blocks either as typed
// values or as serialized bytes, up to the budget enforced by an injected
// Accountant.
type Store struct {
	mu         sync.RWMutex
	accountant Accountant
	evictor    EvictionHandler
	info       *blockinfo.Manager
	entries    map[string]*entry
}

// New returns a Store bounded by accountant, reporting evictions to handler.
// info, if non-nil, is the BlockManager's lock manager; evictForSpace
// acquires the victim's write lock through it before invoking handler, per
// the "eviction acquires a write lock on the victim before invoking the drop
// callback" rule. A nil info is accepted for standalone use (e.g. tests
// exercising the store in isolation from blockinfo).
func New(accountant Accountant, handler EvictionHandler, info *blockinfo.Manager) *Store {
	return &Store{
		accountant: accountant,
		evictor:    handler,
		info:       info,
		entries:    make(map[string]*entry),
	}
}

func rddAffinity(id blockid.BlockId) int {
	if r, ok := id.(blockid.RDDBlockId); ok {
		return r.RDDID
	}
	return -1
}

// PutBytes reserves size bytes from the accountant; on success it invokes
// materialize exactly once to produce the bytes, stores them, and returns
// true. On reservation failure it returns false without invoking
// materialize — materialization must stay lazy or an oversize block would
// OOM before the reservation could ever fail.
func (s *Store) PutBytes(id blockid.BlockId, size int64, materialize func() ([]byte, error)) (bool, error) {
	if !s.reserveStorage(id, size) {
		return false, nil
	}

	data, err := materialize()
	if err != nil {
		s.accountant.ReleaseStorageMemory(size)
		return false, err
	}

	s.mu.Lock()
	s.entries[id.Name()] = &entry{
		id:         id,
		rddID:      rddAffinity(id),
		size:       size,
		bytes:      data,
		lastAccess: time.Now(),
	}
	s.mu.Unlock()

	logger.Debug("block stored in memory", logger.BlockID(id.Name()), logger.Size(size))
	return true, nil
}

// PartiallyUnrolledIterator is returned by PutIteratorAsValues on reservation
// failure. It yields the values that were already unrolled into memory,
// followed by whatever remains of the original source, and releases the
// unroll-memory reservation once drained or explicitly closed.
type PartiallyUnrolledIterator struct {
	accountant     Accountant
	unrollReserved int64
	unrolled       []any
	unrolledIdx    int
	rest           func() (any, bool)
	released       bool
}

// Next returns the next value and true, or zero value and false when
// exhausted — at which point the unroll reservation is released.
func (p *PartiallyUnrolledIterator) Next() (any, bool) {
	if p.unrolledIdx < len(p.unrolled) {
		v := p.unrolled[p.unrolledIdx]
		p.unrolledIdx++
		return v, true
	}
	if p.rest != nil {
		if v, ok := p.rest(); ok {
			return v, true
		}
	}
	p.Close()
	return nil, false
}

// Close releases the unroll-memory reservation if not already released.
// Safe to call multiple times.
func (p *PartiallyUnrolledIterator) Close() {
	if p.released {
		return
	}
	p.released = true
	p.accountant.ReleaseUnrollMemory(p.unrollReserved)
}

// PutIteratorAsValues streams iter into an unroll buffer, checking
// reservation growth every unrollMemoryCheckPeriod values. On success it
// returns sizeBytes and a nil iterator. On reservation failure it returns a
// PartiallyUnrolledIterator the caller must drain or Close.
func (s *Store) PutIteratorAsValues(id blockid.BlockId, next func() (any, bool), estimateSize func(v any) int64) (sizeBytes int64, partial *PartiallyUnrolledIterator, err error) {
	const unrollMemoryCheckPeriod = 16
	const unrollMemoryGrowthFactor = 1.5

	var unrolled []any
	var reserved int64 = 1024 // initial unroll reservation
	if !s.accountant.ReserveUnrollMemory(reserved) {
		return 0, &PartiallyUnrolledIterator{accountant: s.accountant, rest: next}, nil
	}

	var total int64
	count := 0
	for {
		v, ok := next()
		if !ok {
			break
		}
		unrolled = append(unrolled, v)
		total += estimateSize(v)
		count++

		if count%unrollMemoryCheckPeriod == 0 && total > reserved {
			growth := int64(float64(reserved) * unrollMemoryGrowthFactor)
			if growth <= reserved {
				growth = reserved + total - reserved
			}
			delta := growth - reserved
			if !s.accountant.ReserveUnrollMemory(delta) {
				return 0, &PartiallyUnrolledIterator{
					accountant:     s.accountant,
					unrollReserved: reserved,
					unrolled:       unrolled,
					rest:           next,
				}, nil
			}
			reserved = growth
		}
	}

	// Transfer the unroll reservation into a storage reservation.
	if !s.accountant.ReserveStorageMemory(total) {
		s.accountant.ReleaseUnrollMemory(reserved)
		return 0, &PartiallyUnrolledIterator{unrolled: unrolled, unrolledIdx: 0, rest: nil, accountant: s.accountant}, nil
	}
	s.accountant.ReleaseUnrollMemory(reserved)

	s.mu.Lock()
	s.entries[id.Name()] = &entry{
		id:           id,
		rddID:        rddAffinity(id),
		size:         total,
		deserialized: true,
		values:       unrolled,
		lastAccess:   time.Now(),
	}
	s.mu.Unlock()

	return total, nil, nil
}

// PartiallySerializedValues is returned by PutIteratorAsBytes on reservation
// failure: the caller may finish writing the unrolled bytes and the remainder
// to a stream, or take a values iterator over the remainder only (the values
// already serialized into the unrolled bytes are not included).
type PartiallySerializedValues struct {
	unrolled       []byte
	rest           func() (any, bool)
	serialize      func(w io.Writer, v any) error
	accountant     Accountant
	unrollReserved int64
}

// FinishWritingToStream writes the already-unrolled bytes followed by the
// serialized remainder of the source iterator to w.
func (p *PartiallySerializedValues) FinishWritingToStream(w io.Writer) error {
	defer p.accountant.ReleaseUnrollMemory(p.unrollReserved)
	if _, err := w.Write(p.unrolled); err != nil {
		return err
	}
	if p.rest == nil {
		return nil
	}
	for {
		v, ok := p.rest()
		if !ok {
			return nil
		}
		if err := p.serialize(w, v); err != nil {
			return err
		}
	}
}

// ValuesIterator exposes the remaining source as a values iterator instead
// of finishing serialization to disk.
func (p *PartiallySerializedValues) ValuesIterator() func() (any, bool) {
	defer p.accountant.ReleaseUnrollMemory(p.unrollReserved)
	return p.rest
}

// PutIteratorAsBytes is the serialized-form analogue of PutIteratorAsValues.
func (s *Store) PutIteratorAsBytes(id blockid.BlockId, next func() (any, bool), serialize func(w io.Writer, v any) error) (sizeBytes int64, partial *PartiallySerializedValues, err error) {
	var buf writeCounter
	reserved := int64(1024)
	if !s.accountant.ReserveUnrollMemory(reserved) {
		return 0, &PartiallySerializedValues{accountant: s.accountant, rest: next, serialize: serialize}, nil
	}

	for {
		v, ok := next()
		if !ok {
			break
		}
		if err := serialize(&buf, v); err != nil {
			s.accountant.ReleaseUnrollMemory(reserved)
			return 0, nil, err
		}
		if int64(buf.n) > reserved {
			growth := int64(float64(reserved) * 1.5)
			delta := growth - reserved
			if !s.accountant.ReserveUnrollMemory(delta) {
				return 0, &PartiallySerializedValues{
					unrolled:       buf.data,
					rest:           next,
					serialize:      serialize,
					accountant:     s.accountant,
					unrollReserved: reserved,
				}, nil
			}
			reserved = growth
		}
	}

	total := int64(len(buf.data))
	if !s.accountant.ReserveStorageMemory(total) {
		s.accountant.ReleaseUnrollMemory(reserved)
		return 0, &PartiallySerializedValues{unrolled: buf.data, accountant: s.accountant}, nil
	}
	s.accountant.ReleaseUnrollMemory(reserved)

	s.mu.Lock()
	s.entries[id.Name()] = &entry{
		id:         id,
		rddID:      rddAffinity(id),
		size:       total,
		bytes:      buf.data,
		lastAccess: time.Now(),
	}
	s.mu.Unlock()

	return total, nil, nil
}

type writeCounter struct {
	data []byte
	n    int
}

func (w *writeCounter) Write(p []byte) (int, error) {
	w.data = append(w.data, p...)
	w.n += len(p)
	return len(p), nil
}

// GetValues returns the resident typed values for id, touching its access
// time for LRU purposes.
func (s *Store) GetValues(id blockid.BlockId) ([]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id.Name()]
	if !ok || !e.deserialized {
		return nil, false
	}
	e.lastAccess = time.Now()
	return e.values, true
}

// GetBytes returns the resident serialized bytes for id, touching its access
// time for LRU purposes.
func (s *Store) GetBytes(id blockid.BlockId) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id.Name()]
	if !ok || e.deserialized {
		return nil, false
	}
	e.lastAccess = time.Now()
	return e.bytes, true
}

// Contains reports whether id is resident in memory.
func (s *Store) Contains(id blockid.BlockId) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[id.Name()]
	return ok
}

// GetSize returns the resident size of id.
func (s *Store) GetSize(id blockid.BlockId) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id.Name()]
	if !ok {
		return 0, false
	}
	return e.size, true
}

// Remove evicts id without invoking the EvictionHandler (the caller already
// holds the write lock and is responsible for any persistence decision).
func (s *Store) Remove(id blockid.BlockId) bool {
	s.mu.Lock()
	e, ok := s.entries[id.Name()]
	if ok {
		delete(s.entries, id.Name())
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.accountant.ReleaseStorageMemory(e.size)
	return true
}

// reserveStorage attempts to reserve size bytes for id, evicting LRU victims
// (respecting RDD affinity) if the initial reservation fails.
func (s *Store) reserveStorage(id blockid.BlockId, size int64) bool {
	if s.accountant.ReserveStorageMemory(size) {
		return true
	}
	s.evictForSpace(id, size)
	return s.accountant.ReserveStorageMemory(size)
}

// evictForSpace selects LRU victims — never the block being admitted, never
// one sharing its RDD — and reports each to the EvictionHandler until the
// accountant's outstanding reservation pressure is relieved or victims are
// exhausted. Snapshot-then-sort-then-evict: victims are read under RLock,
// sorted, then evicted one at a time without holding the store lock for
// the whole pass.
func (s *Store) evictForSpace(admitting blockid.BlockId, needed int64) {
	admittingRDD := rddAffinity(admitting)
	admittingName := admitting.Name()

	type candidate struct {
		name       string
		lastAccess time.Time
	}

	s.mu.RLock()
	candidates := make([]candidate, 0, len(s.entries))
	for name, e := range s.entries {
		if name == admittingName {
			continue
		}
		if admittingRDD != -1 && e.rddID == admittingRDD {
			continue
		}
		candidates = append(candidates, candidate{name, e.lastAccess})
	}
	s.mu.RUnlock()

	slices.SortFunc(candidates, func(a, b candidate) int {
		return cmp.Compare(a.lastAccess.UnixNano(), b.lastAccess.UnixNano())
	})

	var freed int64
	for _, c := range candidates {
		if freed >= needed {
			break
		}
		freed += s.evictOne(c.name)
	}
}

// evictOne drops the named entry, acquiring its blockinfo write lock first
// (when a lock manager was supplied) so the drop callback never races a
// concurrent doPut/GetLocalBytes on the same block.
func (s *Store) evictOne(name string) int64 {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return 0
	}

	var unlock func()
	if s.info != nil {
		if locked, _ := s.info.LockForWriting(e.id, blockinfo.NonTaskWriter, true); locked != nil {
			unlock = func() { s.info.Unlock(e.id, blockinfo.NonTaskWriter) }
		}
	}

	s.mu.Lock()
	e, ok = s.entries[name]
	if !ok {
		// Lost the race while waiting for the write lock: already evicted or
		// removed by someone else.
		s.mu.Unlock()
		if unlock != nil {
			unlock()
		}
		return 0
	}
	delete(s.entries, name)
	s.mu.Unlock()

	s.accountant.ReleaseStorageMemory(e.size)

	if s.evictor != nil {
		newLevel := s.evictor.DropFromMemory(e.id, e.bytes, e.values)
		logger.Debug("evicted block from memory",
			logger.BlockID(name),
			logger.Size(e.size),
			logger.StorageLevel(newLevel.String()))
	}

	if unlock != nil {
		unlock()
	}
	return e.size
}
