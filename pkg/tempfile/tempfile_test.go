package tempfile

import (
	"io"
	"os"
	"runtime"
	"testing"
	"time"
)

func TestNewTempFileCreatesWritableFile(t *testing.T) {
	m := New(t.TempDir())
	defer m.Stop()

	w, openForRead, err := m.NewTempFile()
	if err != nil {
		t.Fatalf("NewTempFile failed: %v", err)
	}
	if _, err := w.Write([]byte("payload")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	r, err := openForRead()
	if err != nil {
		t.Fatalf("openForRead failed: %v", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("expected %q, got %q", "payload", data)
	}
}

func TestDisposeRemovesFileAndIsIdempotent(t *testing.T) {
	m := New(t.TempDir())
	defer m.Stop()

	w, _, err := m.NewTempFile()
	if err != nil {
		t.Fatalf("NewTempFile failed: %v", err)
	}
	path := w.(*os.File).Name()
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	h := m.RegisterForCleanup(path)
	h.Dispose()
	h.Dispose()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected file to be removed, stat error: %v", err)
	}
}

func TestFinalizerReclaimsUnreachableHandle(t *testing.T) {
	m := New(t.TempDir())
	defer m.Stop()

	w, _, err := m.NewTempFile()
	if err != nil {
		t.Fatalf("NewTempFile failed: %v", err)
	}
	path := w.(*os.File).Name()
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	func() {
		h := m.RegisterForCleanup(path)
		_ = h
	}()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return
		}
	}
	t.Fatal("temp file was not reclaimed after finalization")
}

func TestStopIsIdempotent(t *testing.T) {
	m := New(t.TempDir())
	m.Stop()
	m.Stop()
}
