package blockinfo

import (
	"strconv"
	"sync"

	"github.com/blockmgr/blockmanager/internal/logger"
	"github.com/blockmgr/blockmanager/pkg/blockid"
)

// entry is the lock-manager's bookkeeping record for one block: the public
// BlockInfo plus the synchronization state that guards it.
type entry struct {
	info *BlockInfo
}

// Manager provides multi-reader/single-writer locks keyed by blockid.BlockId,
// with lock ownership tracked per task so task completion or failure can
// release everything that task was holding.
//
// All state is synchronized on a single internal monitor; waits use a
// condition variable broadcast on every unlock/remove so blocked lockers can
// re-check their predicate.
type Manager struct {
	mu   sync.Mutex
	cond *sync.Cond

	entries map[string]*entry

	// readLocksByTask[taskID][blockName] counts how many times this task has
	// acquired a read lock on the block (re-entrant reads by the same task
	// are legal and must each be released independently).
	readLocksByTask map[TaskID]map[string]int

	// writeLocksByTask[taskID] is the set of block names this task holds the
	// write lock for.
	writeLocksByTask map[TaskID]map[string]struct{}
}

// NewManager returns an empty, ready-to-use Manager.
func NewManager() *Manager {
	m := &Manager{
		entries:          make(map[string]*entry),
		readLocksByTask:  make(map[TaskID]map[string]int),
		writeLocksByTask: make(map[TaskID]map[string]struct{}),
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// LockForReading blocks (when blocking is true) until no writer holds id,
// then increments the reader count and records the lock against taskID. It
// returns nil, nil if the block does not exist, and nil, nil if blocking is
// false and a writer currently holds it.
func (m *Manager) LockForReading(id blockid.BlockId, taskID TaskID, blocking bool) (*BlockInfo, error) {
	name := id.Name()

	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		e, ok := m.entries[name]
		if !ok {
			return nil, nil
		}
		if !e.info.hasWriter {
			e.info.readerCount++
			m.recordRead(taskID, name)
			logger.Debug("lock acquired for reading", logger.BlockID(name), logger.TaskID(taskIDString(taskID)))
			return e.info, nil
		}
		if !blocking {
			return nil, nil
		}
		m.cond.Wait()
	}
}

// LockForWriting blocks (when blocking is true) until id has no readers and
// no writer, then acquires the lock exclusively for taskID. Returns nil, nil
// under the same absence/non-blocking conditions as LockForReading.
func (m *Manager) LockForWriting(id blockid.BlockId, taskID TaskID, blocking bool) (*BlockInfo, error) {
	name := id.Name()

	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		e, ok := m.entries[name]
		if !ok {
			return nil, nil
		}
		if e.info.readerCount == 0 && !e.info.hasWriter {
			e.info.hasWriter = true
			e.info.writerTask = taskID
			m.recordWrite(taskID, name)
			logger.Debug("lock acquired for writing", logger.BlockID(name), logger.TaskID(taskIDString(taskID)))
			return e.info, nil
		}
		if !blocking {
			return nil, nil
		}
		m.cond.Wait()
	}
}

// LockNewBlockForWriting atomically inserts info under id if absent and
// returns true while holding the write lock. If an entry already exists, it
// instead acquires a (blocking) read lock on the existing entry and returns
// false — the caller did not create this block.
func (m *Manager) LockNewBlockForWriting(id blockid.BlockId, taskID TaskID, info *BlockInfo) (bool, error) {
	name := id.Name()

	m.mu.Lock()
	if _, exists := m.entries[name]; !exists {
		info.hasWriter = true
		info.writerTask = taskID
		m.entries[name] = &entry{info: info}
		m.recordWrite(taskID, name)
		m.mu.Unlock()
		logger.Debug("new block locked for writing", logger.BlockID(name), logger.TaskID(taskIDString(taskID)))
		return true, nil
	}
	m.mu.Unlock()

	if _, err := m.LockForReading(id, taskID, true); err != nil {
		return false, err
	}
	return false, nil
}

// Unlock releases one lock held by taskID on id: if taskID is the writer, the
// write lock is released; otherwise one read lock is released. Waiters are
// woken so they can re-check their predicate.
func (m *Manager) Unlock(id blockid.BlockId, taskID TaskID) {
	name := id.Name()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[name]
	if !ok {
		return
	}

	if e.info.hasWriter && e.info.writerTask == taskID {
		e.info.hasWriter = false
		e.info.writerTask = NonTaskWriter
		m.forgetWrite(taskID, name)
	} else {
		if e.info.readerCount > 0 {
			e.info.readerCount--
		}
		m.forgetRead(taskID, name)
	}

	m.cond.Broadcast()
}

// DowngradeLock atomically converts taskID's write lock on id into a read
// lock, with no window in which another writer could interpose.
func (m *Manager) DowngradeLock(id blockid.BlockId, taskID TaskID) {
	name := id.Name()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[name]
	if !ok || !e.info.hasWriter || e.info.writerTask != taskID {
		return
	}

	e.info.hasWriter = false
	e.info.writerTask = NonTaskWriter
	e.info.readerCount++
	m.forgetWrite(taskID, name)
	m.recordRead(taskID, name)

	// The writer is gone, so readers blocked on it can now proceed.
	m.cond.Broadcast()
}

// ReleaseAllLocksForTask releases every lock (read and write) recorded
// against taskID and returns the block ids that were touched. Used when a
// task completes or fails.
func (m *Manager) ReleaseAllLocksForTask(taskID TaskID) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	touched := make(map[string]struct{})

	for name := range m.writeLocksByTask[taskID] {
		if e, ok := m.entries[name]; ok && e.info.hasWriter && e.info.writerTask == taskID {
			e.info.hasWriter = false
			e.info.writerTask = NonTaskWriter
		}
		touched[name] = struct{}{}
	}
	delete(m.writeLocksByTask, taskID)

	for name, count := range m.readLocksByTask[taskID] {
		if e, ok := m.entries[name]; ok {
			e.info.readerCount -= count
			if e.info.readerCount < 0 {
				e.info.readerCount = 0
			}
		}
		touched[name] = struct{}{}
	}
	delete(m.readLocksByTask, taskID)

	if len(touched) > 0 {
		m.cond.Broadcast()
	}

	names := make([]string, 0, len(touched))
	for name := range touched {
		names = append(names, name)
	}
	return names
}

// RemoveBlock erases id's entry and wakes all waiters, who must then observe
// its absence. Must be called by the current write-lock holder.
func (m *Manager) RemoveBlock(id blockid.BlockId) {
	name := id.Name()

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, name)
	for taskID, names := range m.writeLocksByTask {
		delete(names, name)
		if len(names) == 0 {
			delete(m.writeLocksByTask, taskID)
		}
	}
	for taskID, counts := range m.readLocksByTask {
		delete(counts, name)
		if len(counts) == 0 {
			delete(m.readLocksByTask, taskID)
		}
	}

	m.cond.Broadcast()
}

// AssertBlockIsLockedForWriting is a debug-only invariant check returning the
// BlockInfo if id is currently write-locked, or nil if not.
func (m *Manager) AssertBlockIsLockedForWriting(id blockid.BlockId) *BlockInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id.Name()]
	if !ok || !e.info.hasWriter {
		return nil
	}
	return e.info
}

// Get returns the BlockInfo for id without acquiring any lock; callers must
// hold an appropriate lock already (e.g. from a prior LockFor* call) for the
// result to be meaningful.
func (m *Manager) Get(id blockid.BlockId) (*BlockInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id.Name()]
	if !ok {
		return nil, false
	}
	return e.info, true
}

// ListBlockNames returns the names of every block this manager currently
// tracks, in no particular order. Intended for read-only introspection
// (diagnostics endpoints), not for control flow.
func (m *Manager) ListBlockNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	return names
}

func (m *Manager) recordRead(taskID TaskID, name string) {
	byBlock, ok := m.readLocksByTask[taskID]
	if !ok {
		byBlock = make(map[string]int)
		m.readLocksByTask[taskID] = byBlock
	}
	byBlock[name]++
}

func (m *Manager) forgetRead(taskID TaskID, name string) {
	byBlock, ok := m.readLocksByTask[taskID]
	if !ok {
		return
	}
	byBlock[name]--
	if byBlock[name] <= 0 {
		delete(byBlock, name)
	}
	if len(byBlock) == 0 {
		delete(m.readLocksByTask, taskID)
	}
}

func (m *Manager) recordWrite(taskID TaskID, name string) {
	names, ok := m.writeLocksByTask[taskID]
	if !ok {
		names = make(map[string]struct{})
		m.writeLocksByTask[taskID] = names
	}
	names[name] = struct{}{}
}

func (m *Manager) forgetWrite(taskID TaskID, name string) {
	names, ok := m.writeLocksByTask[taskID]
	if !ok {
		return
	}
	delete(names, name)
	if len(names) == 0 {
		delete(m.writeLocksByTask, taskID)
	}
}

func taskIDString(taskID TaskID) string {
	if taskID == NonTaskWriter {
		return "non-task-writer"
	}
	return strconv.FormatInt(int64(taskID), 10)
}
