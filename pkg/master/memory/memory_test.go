package memory

import (
	"context"
	"testing"

	"github.com/blockmgr/blockmanager/pkg/blockid"
)

func bmID(exec string) blockid.BlockManagerId {
	return blockid.BlockManagerId{ExecutorID: exec, Host: exec + ".local", Port: 7077}
}

func TestRegisterAndReportLocation(t *testing.T) {
	ctx := context.Background()
	m := New()

	effective, err := m.RegisterBlockManager(ctx, bmID("exec-1"), 1<<20, 0, "exec-1.local:7078")
	if err != nil {
		t.Fatalf("RegisterBlockManager failed: %v", err)
	}
	if effective != bmID("exec-1") {
		t.Errorf("expected effective id %v, got %v", bmID("exec-1"), effective)
	}

	ok, err := m.UpdateBlockInfo(ctx, bmID("exec-1"), blockid.RDDBlockId{RDDID: 1, Partition: 2}, blockid.MemoryOnly, 3, 0)
	if err != nil {
		t.Fatalf("UpdateBlockInfo failed: %v", err)
	}
	if !ok {
		t.Error("expected UpdateBlockInfo to report true")
	}

	locs, status, found, err := m.GetLocationsAndStatus(ctx, blockid.RDDBlockId{RDDID: 1, Partition: 2})
	if err != nil {
		t.Fatalf("GetLocationsAndStatus failed: %v", err)
	}
	if !found {
		t.Fatal("expected block to be found")
	}
	if len(locs) != 1 {
		t.Fatalf("expected 1 location, got %d", len(locs))
	}
	if locs[0].ExecutorID != "exec-1" {
		t.Errorf("expected executor exec-1, got %s", locs[0].ExecutorID)
	}
	if status.MemSize != 3 {
		t.Errorf("expected MemSize 3, got %d", status.MemSize)
	}
}

func TestUpdateBlockInfoUnknownSenderReturnsFalse(t *testing.T) {
	ctx := context.Background()
	m := New()

	ok, err := m.UpdateBlockInfo(ctx, bmID("exec-unknown"), blockid.RDDBlockId{RDDID: 1}, blockid.MemoryOnly, 1, 0)
	if err != nil {
		t.Fatalf("UpdateBlockInfo failed: %v", err)
	}
	if ok {
		t.Error("expected UpdateBlockInfo to report false for an unregistered sender")
	}
}

func TestUpdateBlockInfoInvalidLevelRemovesLocation(t *testing.T) {
	ctx := context.Background()
	m := New()
	if _, err := m.RegisterBlockManager(ctx, bmID("exec-1"), 0, 0, ""); err != nil {
		t.Fatalf("RegisterBlockManager failed: %v", err)
	}

	id := blockid.RDDBlockId{RDDID: 5, Partition: 0}
	if _, err := m.UpdateBlockInfo(ctx, bmID("exec-1"), id, blockid.MemoryOnly, 1, 0); err != nil {
		t.Fatalf("UpdateBlockInfo failed: %v", err)
	}

	if _, err := m.UpdateBlockInfo(ctx, bmID("exec-1"), id, blockid.StorageLevel{}, 0, 0); err != nil {
		t.Fatalf("UpdateBlockInfo failed: %v", err)
	}

	_, _, found, err := m.GetLocationsAndStatus(ctx, id)
	if err != nil {
		t.Fatalf("GetLocationsAndStatus failed: %v", err)
	}
	if found {
		t.Error("expected block to be removed after an invalid-level update")
	}
}

func TestGetPeersExcludesSelf(t *testing.T) {
	ctx := context.Background()
	m := New()
	_, _ = m.RegisterBlockManager(ctx, bmID("exec-1"), 0, 0, "")
	_, _ = m.RegisterBlockManager(ctx, bmID("exec-2"), 0, 0, "")
	_, _ = m.RegisterBlockManager(ctx, bmID("exec-3"), 0, 0, "")

	peers, err := m.GetPeers(ctx, bmID("exec-1"))
	if err != nil {
		t.Fatalf("GetPeers failed: %v", err)
	}
	if len(peers) != 2 {
		t.Fatalf("expected 2 peers, got %d", len(peers))
	}
	for _, p := range peers {
		if p.ExecutorID == "exec-1" {
			t.Error("expected GetPeers to exclude the caller")
		}
	}
}

func TestGetLocationsForUnknownBlockIsEmpty(t *testing.T) {
	ctx := context.Background()
	m := New()
	locs, err := m.GetLocations(ctx, blockid.RDDBlockId{RDDID: 99})
	if err != nil {
		t.Fatalf("GetLocations failed: %v", err)
	}
	if len(locs) != 0 {
		t.Errorf("expected no locations, got %v", locs)
	}
}
