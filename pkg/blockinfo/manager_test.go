package blockinfo

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/blockmgr/blockmanager/pkg/blockid"
)

func rdd(p int) blockid.BlockId { return blockid.RDDBlockId{RDDID: 1, Partition: p} }

func TestLockNewBlockForWriting(t *testing.T) {
	m := NewManager()
	id := rdd(1)

	created, err := m.LockNewBlockForWriting(id, 1, newBlockInfo(blockid.MemoryOnly, true))
	if err != nil {
		t.Fatalf("LockNewBlockForWriting failed: %v", err)
	}
	if !created {
		t.Fatal("expected created=true for a fresh block")
	}

	info, ok := m.Get(id)
	if !ok {
		t.Fatal("expected Get to find id")
	}
	if _, hasWriter := info.Writer(); !hasWriter {
		t.Error("expected a writer to be recorded")
	}

	m.Unlock(id, 1)

	// Second caller sees the block already exists and gets a read lock instead.
	created2, err := m.LockNewBlockForWriting(id, 2, newBlockInfo(blockid.MemoryOnly, true))
	if err != nil {
		t.Fatalf("LockNewBlockForWriting (second) failed: %v", err)
	}
	if created2 {
		t.Error("expected created=false when the block already exists")
	}
	if info.ReaderCount() != 1 {
		t.Errorf("expected reader count 1, got %d", info.ReaderCount())
	}
}

func TestLockForReadingAbsentBlock(t *testing.T) {
	m := NewManager()
	info, err := m.LockForReading(rdd(1), 1, true)
	if err != nil {
		t.Fatalf("LockForReading failed: %v", err)
	}
	if info != nil {
		t.Errorf("expected nil info for an absent block, got %v", info)
	}
}

func TestLockForReadingNonBlocking(t *testing.T) {
	m := NewManager()
	id := rdd(1)
	if _, err := m.LockNewBlockForWriting(id, 1, newBlockInfo(blockid.MemoryOnly, true)); err != nil {
		t.Fatalf("LockNewBlockForWriting failed: %v", err)
	}

	info, err := m.LockForReading(id, 2, false)
	if err != nil {
		t.Fatalf("LockForReading failed: %v", err)
	}
	if info != nil {
		t.Error("expected nil info: writer held, non-blocking read must return nil")
	}
}

func TestLockForReadingBlocksUntilWriterReleases(t *testing.T) {
	m := NewManager()
	id := rdd(1)
	if _, err := m.LockNewBlockForWriting(id, 1, newBlockInfo(blockid.MemoryOnly, true)); err != nil {
		t.Fatalf("LockNewBlockForWriting failed: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	acquired := make(chan struct{})
	go func() {
		defer wg.Done()
		info, err := m.LockForReading(id, 2, true)
		if err != nil {
			t.Errorf("LockForReading failed: %v", err)
		}
		if info == nil {
			t.Error("expected a non-nil info once the writer releases")
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("reader acquired lock before writer released")
	case <-time.After(50 * time.Millisecond):
	}

	m.Unlock(id, 1)

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("reader never acquired lock after writer released")
	}
	wg.Wait()
}

func TestMultipleReaders(t *testing.T) {
	m := NewManager()
	id := rdd(1)
	if _, err := m.LockNewBlockForWriting(id, 1, newBlockInfo(blockid.MemoryOnly, true)); err != nil {
		t.Fatalf("LockNewBlockForWriting failed: %v", err)
	}
	m.Unlock(id, 1)

	info1, err := m.LockForReading(id, 1, true)
	if err != nil {
		t.Fatalf("LockForReading(1) failed: %v", err)
	}
	if info1 == nil {
		t.Fatal("expected non-nil info1")
	}

	info2, err := m.LockForReading(id, 2, true)
	if err != nil {
		t.Fatalf("LockForReading(2) failed: %v", err)
	}
	if info2 == nil {
		t.Fatal("expected non-nil info2")
	}

	if info1.ReaderCount() != 2 {
		t.Errorf("expected reader count 2, got %d", info1.ReaderCount())
	}

	// Writer must block while readers are held.
	wInfo, err := m.LockForWriting(id, 3, false)
	if err != nil {
		t.Fatalf("LockForWriting failed: %v", err)
	}
	if wInfo != nil {
		t.Error("expected nil: writer must not acquire while readers are held")
	}

	m.Unlock(id, 1)
	m.Unlock(id, 2)

	wInfo, err = m.LockForWriting(id, 3, false)
	if err != nil {
		t.Fatalf("LockForWriting failed: %v", err)
	}
	if wInfo == nil {
		t.Fatal("expected writer to acquire once readers release")
	}
}

func TestDowngradeLock(t *testing.T) {
	m := NewManager()
	id := rdd(1)
	if _, err := m.LockNewBlockForWriting(id, 1, newBlockInfo(blockid.MemoryOnly, true)); err != nil {
		t.Fatalf("LockNewBlockForWriting failed: %v", err)
	}

	m.DowngradeLock(id, 1)

	info, ok := m.Get(id)
	if !ok {
		t.Fatal("expected Get to find id")
	}
	if _, hasWriter := info.Writer(); hasWriter {
		t.Error("expected no writer after downgrade")
	}
	if info.ReaderCount() != 1 {
		t.Errorf("expected reader count 1, got %d", info.ReaderCount())
	}

	// A second reader can now also acquire concurrently.
	info2, err := m.LockForReading(id, 2, false)
	if err != nil {
		t.Fatalf("LockForReading failed: %v", err)
	}
	if info2 == nil {
		t.Error("expected a second reader to acquire after downgrade")
	}
}

func TestReleaseAllLocksForTask(t *testing.T) {
	m := NewManager()
	idA, idB := rdd(1), rdd(2)

	if _, err := m.LockNewBlockForWriting(idA, 1, newBlockInfo(blockid.MemoryOnly, true)); err != nil {
		t.Fatalf("LockNewBlockForWriting(idA) failed: %v", err)
	}
	m.Unlock(idA, 1)

	if _, err := m.LockNewBlockForWriting(idB, 1, newBlockInfo(blockid.MemoryOnly, true)); err != nil {
		t.Fatalf("LockNewBlockForWriting(idB) failed: %v", err)
	}

	infoA, err := m.LockForReading(idA, 1, true)
	if err != nil {
		t.Fatalf("LockForReading(idA) failed: %v", err)
	}
	if infoA == nil {
		t.Fatal("expected non-nil infoA")
	}

	released := m.ReleaseAllLocksForTask(1)
	want := []string{idA.Name(), idB.Name()}
	sort.Strings(released)
	sort.Strings(want)
	if len(released) != len(want) {
		t.Fatalf("expected released %v, got %v", want, released)
	}
	for i := range want {
		if released[i] != want[i] {
			t.Fatalf("expected released %v, got %v", want, released)
		}
	}

	if infoA.ReaderCount() != 0 {
		t.Errorf("expected reader count 0 after release, got %d", infoA.ReaderCount())
	}

	wInfo, err := m.LockForWriting(idB, 2, false)
	if err != nil {
		t.Fatalf("LockForWriting failed: %v", err)
	}
	if wInfo == nil {
		t.Error("write lock abandoned by ReleaseAllLocksForTask must be free")
	}
}

func TestRemoveBlock(t *testing.T) {
	m := NewManager()
	id := rdd(1)
	if _, err := m.LockNewBlockForWriting(id, 1, newBlockInfo(blockid.MemoryOnly, true)); err != nil {
		t.Fatalf("LockNewBlockForWriting failed: %v", err)
	}

	m.RemoveBlock(id)

	if _, ok := m.Get(id); ok {
		t.Error("expected Get to report absence after RemoveBlock")
	}

	info, err := m.LockForReading(id, 2, true)
	if err != nil {
		t.Fatalf("LockForReading failed: %v", err)
	}
	if info != nil {
		t.Error("expected nil info for a removed block")
	}
}

func TestAssertBlockIsLockedForWriting(t *testing.T) {
	m := NewManager()
	id := rdd(1)

	if m.AssertBlockIsLockedForWriting(id) != nil {
		t.Error("expected nil before the block exists")
	}

	if _, err := m.LockNewBlockForWriting(id, 1, newBlockInfo(blockid.MemoryOnly, true)); err != nil {
		t.Fatalf("LockNewBlockForWriting failed: %v", err)
	}

	if m.AssertBlockIsLockedForWriting(id) == nil {
		t.Error("expected non-nil while write-locked")
	}

	m.DowngradeLock(id, 1)
	if m.AssertBlockIsLockedForWriting(id) != nil {
		t.Error("expected nil after downgrade to a read lock")
	}
}

func TestNonTaskWriterAdministrativeLock(t *testing.T) {
	m := NewManager()
	id := rdd(1)

	if _, err := m.LockNewBlockForWriting(id, NonTaskWriter, newBlockInfo(blockid.MemoryOnly, false)); err != nil {
		t.Fatalf("LockNewBlockForWriting failed: %v", err)
	}

	info, _ := m.Get(id)
	writer, hasWriter := info.Writer()
	if !hasWriter {
		t.Error("expected a writer to be recorded")
	}
	if writer != NonTaskWriter {
		t.Errorf("expected writer %v, got %v", NonTaskWriter, writer)
	}

	m.Unlock(id, NonTaskWriter)
	info, _ = m.Get(id)
	if _, hasWriter = info.Writer(); hasWriter {
		t.Error("expected no writer after unlock")
	}
}
