// Package local implements a diskstore.Store backed by a hashed-path local
// directory tree, matching the conventional BlockManager on-disk layout:
// keys are sharded across subDirsPerLocalDir subdirectories by a
// deterministic hash of the key so that no single directory accumulates an
// unbounded number of entries.
package local

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blockmgr/blockmanager/pkg/diskstore"
)

// subDirsPerLocalDir is the number of first-level shard directories, mirroring
// Spark's DiskBlockManager default.
const subDirsPerLocalDir = 64

// Store is a diskstore.Store rooted at a single local directory.
type Store struct {
	mu        sync.RWMutex
	root      string
	closed    bool
	ownsFiles bool // when true, Close() removes root
}

// Config configures a local Store.
type Config struct {
	// Root is the directory all blocks are written under. Created if absent.
	Root string

	// DeleteOnClose removes Root and everything under it when Close is called — intended
	// for scratch/temp deployments, never for a durable data directory.
	DeleteOnClose bool
}

// New returns a Store rooted at cfg.Root, creating it if necessary.
func New(cfg Config) (*Store, error) {
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("local diskstore: create root: %w", err)
	}
	return &Store{root: cfg.Root, ownsFiles: cfg.DeleteOnClose}, nil
}

// pathFor returns the sharded filesystem path for key.
func (s *Store) pathFor(key string) string {
	sum := sha256.Sum256([]byte(key))
	shard := int(sum[0]) % subDirsPerLocalDir
	name := hex.EncodeToString(sum[:])
	return filepath.Join(s.root, fmt.Sprintf("shard-%02d", shard), name)
}

func (s *Store) checkOpen() error {
	if s.closed {
		return diskstore.ErrStoreClosed
	}
	return nil
}

// Put writes data to the sharded path for key, creating parent directories
// as needed.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	path := s.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("local diskstore: mkdir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("local diskstore: write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("local diskstore: rename: %w", err)
	}
	return nil
}

// Get reads the complete value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.pathFor(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, diskstore.ErrBlockNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("local diskstore: read: %w", err)
	}
	return data, nil
}

// GetRange reads a byte range from the value stored under key.
func (s *Store) GetRange(ctx context.Context, key string, offset, length int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.pathFor(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, diskstore.ErrBlockNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("local diskstore: open: %w", err)
	}
	defer f.Close()

	buf := make([]byte, length)
	n, err := f.ReadAt(buf, offset)
	if err != nil && n == 0 {
		return nil, fmt.Errorf("local diskstore: read range: %w", err)
	}
	return buf[:n], nil
}

// Remove deletes key's file. Removing an absent key is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	if err := os.Remove(s.pathFor(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("local diskstore: remove: %w", err)
	}
	return nil
}

// Contains reports whether key's file exists.
func (s *Store) Contains(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return false, err
	}

	_, err := os.Stat(s.pathFor(key))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("local diskstore: stat: %w", err)
	}
	return true, nil
}

// Size returns the byte length of key's file.
func (s *Store) Size(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	info, err := os.Stat(s.pathFor(key))
	if errors.Is(err, os.ErrNotExist) {
		return 0, diskstore.ErrBlockNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("local diskstore: stat: %w", err)
	}
	return info.Size(), nil
}

// Close marks the store closed, optionally removing its root directory.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.ownsFiles {
		return os.RemoveAll(s.root)
	}
	return nil
}

var _ diskstore.Store = (*Store)(nil)
