// Package tempfile implements a manager for temp files backing oversize
// remote block fetches.
//
// A fetched block that is too large to hold in memory is spilled to a temp
// file and read back by its consumer. Go has no reference queues, so
// lifetime tracking uses runtime.SetFinalizer on the handle returned to the
// consumer: once the consumer drops its reference and the handle is
// collected, the finalizer schedules the file for deletion. Callers that can
// determine disposal themselves should call Handle.Dispose explicitly
// instead of relying on GC timing.
package tempfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blockmgr/blockmanager/internal/logger"
	"github.com/blockmgr/blockmanager/pkg/transport"
)

var _ transport.TempFileAllocator = (*Manager)(nil)

// PollInterval is the period of the background goroutine's ticker. Paths of
// collected handles are removed as soon as they arrive on the channel; a
// tick itself does no work.
const PollInterval = time.Second

// Handle represents one temp file created to absorb an oversize remote
// fetch. Once the consumer is done, it should call Dispose; if it forgets,
// the finalizer-driven cleanup goroutine will eventually remove the file.
type Handle struct {
	path     string
	disposed atomic.Bool
	manager  *Manager
}

// Path returns the underlying file's path on disk.
func (h *Handle) Path() string { return h.path }

// Dispose deletes the backing file immediately. Safe to call more than
// once and safe to call concurrently with the finalizer.
func (h *Handle) Dispose() {
	if !h.disposed.CompareAndSwap(false, true) {
		return
	}
	runtime.SetFinalizer(h, nil)
	h.manager.remove(h.path)
}

// Manager tracks temp files and reclaims them once their in-memory consumer
// becomes unreachable, or on explicit Dispose.
type Manager struct {
	dir string

	mu      sync.Mutex
	pending map[string]struct{}

	finalized chan string
	stop      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// New returns a Manager creating temp files under dir (os.TempDir if dir is
// empty) and starts its background cleanup goroutine.
func New(dir string) *Manager {
	m := &Manager{
		dir:       dir,
		pending:   make(map[string]struct{}),
		finalized: make(chan string, 64),
		stop:      make(chan struct{}),
	}
	m.wg.Add(1)
	go m.run()
	return m
}

// NewTempFile implements transport.TempFileAllocator: it returns a writable
// file for a transport to spill an oversize response into, plus a function
// that reopens it for reading once writing is complete.
func (m *Manager) NewTempFile() (io.WriteCloser, func() (io.ReadCloser, error), error) {
	f, err := os.CreateTemp(m.dir, "blockmgr-remote-*.tmp")
	if err != nil {
		return nil, nil, fmt.Errorf("tempfile: create: %w", err)
	}

	path := f.Name()
	m.mu.Lock()
	m.pending[path] = struct{}{}
	m.mu.Unlock()

	openForRead := func() (io.ReadCloser, error) {
		return os.Open(path)
	}
	return f, openForRead, nil
}

// RegisterForCleanup wraps path in a Handle that is reclaimed once it
// becomes unreachable (finalizer) or Dispose is called explicitly. This is
// the RemoteBlockTempFileManager.registerTempFileToClean contract: the
// finalizer enqueues the path onto the reference queue the background
// goroutine polls, rather than deleting it itself.
func (m *Manager) RegisterForCleanup(path string) *Handle {
	h := &Handle{path: path, manager: m}
	runtime.SetFinalizer(h, func(h *Handle) {
		if !h.disposed.CompareAndSwap(false, true) {
			return
		}
		select {
		case h.manager.finalized <- h.path:
		default:
			// queue full: the path is dropped. It stays in pending, but
			// nothing sweeps pending later and the handle is already
			// disposed, so the file remains on disk.
		}
	})
	return h
}

func (m *Manager) remove(path string) {
	m.mu.Lock()
	_, tracked := m.pending[path]
	delete(m.pending, path)
	m.mu.Unlock()

	if !tracked {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("tempfile: failed to remove reclaimed file", "path", filepath.Base(path), "error", err)
	}
}

// run polls for finalizer-reported paths and removes them. Mirrors the
// reference background thread's 1 s poll cadence; honors Stop.
func (m *Manager) run() {
	defer m.wg.Done()
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case path := <-m.finalized:
			m.remove(path)
		case <-ticker.C:
			// idle tick; finalizer sends are delivered as they occur
		}
	}
}

// Stop interrupts the cleanup goroutine. Pending temp files not yet
// reclaimed are left on disk; callers that want a clean shutdown should
// Dispose their handles first.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
	m.wg.Wait()
}
