package remotefetch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/blockmgr/blockmanager/pkg/blockid"
	"github.com/blockmgr/blockmanager/pkg/master"
	"github.com/blockmgr/blockmanager/pkg/transport"
)

type fakeMaster struct {
	locations       []blockid.BlockManagerId
	status          master.BlockStatus
	known           bool
	refreshedLoc    []blockid.BlockManagerId
	getLocationsErr error
}

func (m *fakeMaster) RegisterBlockManager(ctx context.Context, id blockid.BlockManagerId, maxOnHeap, maxOffHeap int64, slaveEndpoint string) (blockid.BlockManagerId, error) {
	return id, nil
}

func (m *fakeMaster) UpdateBlockInfo(ctx context.Context, id blockid.BlockManagerId, blockID blockid.BlockId, level blockid.StorageLevel, memSize, diskSize int64) (bool, error) {
	return true, nil
}

func (m *fakeMaster) GetLocations(ctx context.Context, blockID blockid.BlockId) ([]blockid.BlockManagerId, error) {
	if m.getLocationsErr != nil {
		return nil, m.getLocationsErr
	}
	if m.refreshedLoc != nil {
		return m.refreshedLoc, nil
	}
	return m.locations, nil
}

func (m *fakeMaster) GetLocationsAndStatus(ctx context.Context, blockID blockid.BlockId) ([]blockid.BlockManagerId, master.BlockStatus, bool, error) {
	return m.locations, m.status, m.known, nil
}

func (m *fakeMaster) GetPeers(ctx context.Context, self blockid.BlockManagerId) ([]blockid.BlockManagerId, error) {
	return nil, nil
}

type fakeTransport struct {
	mu       sync.Mutex
	failFor  map[string]bool
	fetched  map[string]int
	response transport.ManagedBuffer
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{failFor: make(map[string]bool), fetched: make(map[string]int)}
}

func (f *fakeTransport) FetchBlockSync(ctx context.Context, host string, port int, executorID, blockIDStr string, tempFileManager transport.TempFileAllocator) (transport.ManagedBuffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched[executorID]++
	if f.failFor[executorID] {
		return transport.ManagedBuffer{}, errors.New("fetch failed")
	}
	return f.response, nil
}

func (f *fakeTransport) UploadBlockSync(ctx context.Context, host string, port int, executorID string, blockID blockid.BlockId, buf transport.ManagedBuffer, level blockid.StorageLevel, tag string) error {
	return nil
}

func peer(id, host string) blockid.BlockManagerId {
	return blockid.BlockManagerId{ExecutorID: id, Host: host, Port: 1}
}

func TestFetchRemoteBytesUnknownBlock(t *testing.T) {
	m := &fakeMaster{known: false}
	f := New(peer("self", "h0"), m, newFakeTransport(), nil, DefaultConfig())
	_, err := f.FetchRemoteBytes(context.Background(), blockid.RDDBlockId{RDDID: 1, Partition: 1})
	if !errors.Is(err, ErrBlockUnknown) {
		t.Errorf("expected ErrBlockUnknown, got %v", err)
	}
}

func TestFetchRemoteBytesSucceedsOnFirstLocation(t *testing.T) {
	m := &fakeMaster{known: true, locations: []blockid.BlockManagerId{peer("b", "h1")}, status: master.BlockStatus{MemSize: 10}}
	tr := newFakeTransport()
	tr.response = transport.ManagedBuffer{Bytes: []byte("hi")}
	f := New(peer("self", "h0"), m, tr, nil, DefaultConfig())

	buf, err := f.FetchRemoteBytes(context.Background(), blockid.RDDBlockId{RDDID: 1, Partition: 1})
	if err != nil {
		t.Fatalf("FetchRemoteBytes failed: %v", err)
	}
	if string(buf.Bytes) != "hi" {
		t.Errorf("expected %q, got %q", "hi", buf.Bytes)
	}
}

func TestFetchRemoteBytesFallsBackOnFailure(t *testing.T) {
	m := &fakeMaster{known: true, locations: []blockid.BlockManagerId{peer("b", "h1"), peer("c", "h2")}, status: master.BlockStatus{MemSize: 10}}
	tr := newFakeTransport()
	tr.failFor["b"] = true
	tr.response = transport.ManagedBuffer{Bytes: []byte("hi")}
	f := New(peer("self", "h0"), m, tr, nil, DefaultConfig())

	buf, err := f.FetchRemoteBytes(context.Background(), blockid.RDDBlockId{RDDID: 1, Partition: 1})
	if err != nil {
		t.Fatalf("FetchRemoteBytes failed: %v", err)
	}
	if string(buf.Bytes) != "hi" {
		t.Errorf("expected %q, got %q", "hi", buf.Bytes)
	}
}

func TestFetchRemoteBytesGivesUpAfterAllLocationsFail(t *testing.T) {
	m := &fakeMaster{known: true, locations: []blockid.BlockManagerId{peer("b", "h1"), peer("c", "h2")}, status: master.BlockStatus{MemSize: 10}}
	tr := newFakeTransport()
	tr.failFor["b"] = true
	tr.failFor["c"] = true
	f := New(peer("self", "h0"), m, tr, nil, DefaultConfig())

	_, err := f.FetchRemoteBytes(context.Background(), blockid.RDDBlockId{RDDID: 1, Partition: 1})
	if !errors.Is(err, ErrAllLocationsFailed) {
		t.Errorf("expected ErrAllLocationsFailed, got %v", err)
	}
}

func TestSortByAffinityPrefersSameHost(t *testing.T) {
	f := New(peer("self", "h0"), &fakeMaster{}, newFakeTransport(), nil, DefaultConfig())
	candidates := []blockid.BlockManagerId{peer("far", "h9"), peer("near", "h0")}
	ordered := f.sortByAffinity(candidates)
	if len(ordered) != 2 {
		t.Fatalf("expected 2 ordered candidates, got %d", len(ordered))
	}
	if ordered[0].ExecutorID != "near" {
		t.Errorf("expected same-host peer first, got %s", ordered[0].ExecutorID)
	}
}

func TestFetchRemoteBytesRefreshesLocationsAfterThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxFailuresBeforeLocationRefresh = 1
	m := &fakeMaster{
		known:        true,
		locations:    []blockid.BlockManagerId{peer("b", "h1")},
		status:       master.BlockStatus{MemSize: 10},
		refreshedLoc: []blockid.BlockManagerId{peer("c", "h2")},
	}
	tr := newFakeTransport()
	tr.failFor["b"] = true
	tr.response = transport.ManagedBuffer{Bytes: []byte("hi")}
	f := New(peer("self", "h0"), m, tr, nil, cfg)

	buf, err := f.FetchRemoteBytes(context.Background(), blockid.RDDBlockId{RDDID: 1, Partition: 1})
	if err != nil {
		t.Fatalf("FetchRemoteBytes failed: %v", err)
	}
	if string(buf.Bytes) != "hi" {
		t.Errorf("expected %q, got %q", "hi", buf.Bytes)
	}
}

// TestFetchRemoteBytesRefreshesAfterFiveDistinctLocationsFail reproduces the
// worked example of five stale locations all failing: with the default
// threshold of 5, the total failure count (not any single location's count)
// must trigger exactly one refresh, after which a fresh location succeeds.
func TestFetchRemoteBytesRefreshesAfterFiveDistinctLocationsFail(t *testing.T) {
	stale := []blockid.BlockManagerId{
		peer("b", "h1"), peer("c", "h2"), peer("d", "h3"), peer("e", "h4"), peer("g", "h5"),
	}
	m := &fakeMaster{
		known:        true,
		locations:    stale,
		status:       master.BlockStatus{MemSize: 10},
		refreshedLoc: []blockid.BlockManagerId{peer("z", "h6")},
	}
	tr := newFakeTransport()
	for _, loc := range stale {
		tr.failFor[loc.ExecutorID] = true
	}
	tr.response = transport.ManagedBuffer{Bytes: []byte("hi")}
	f := New(peer("self", "h0"), m, tr, nil, DefaultConfig())

	buf, err := f.FetchRemoteBytes(context.Background(), blockid.RDDBlockId{RDDID: 1, Partition: 1})
	if err != nil {
		t.Fatalf("FetchRemoteBytes failed: %v", err)
	}
	if string(buf.Bytes) != "hi" {
		t.Errorf("expected %q, got %q", "hi", buf.Bytes)
	}
	if tr.fetched["z"] == 0 {
		t.Error("expected the refreshed location to have been tried")
	}
}
