// Package memstore implements MemoryStore, the bounded in-memory tier that
// holds blocks as typed values or as serialized bytes up to a budget dictated
// by an external memory accountant.
package memstore

import "sync"

// Accountant is the external memory accountant MemoryStore reserves and
// releases bytes against. It tracks two pools independently: unroll memory
// (scratch space while a value iterator is being drained into a buffer) and
// storage memory (bytes actually committed to a stored block).
type Accountant interface {
	// ReserveUnrollMemory attempts to reserve n bytes of unroll memory,
	// returning whether the reservation succeeded.
	ReserveUnrollMemory(n int64) bool

	// ReserveStorageMemory attempts to reserve n bytes of storage memory,
	// returning whether the reservation succeeded.
	ReserveStorageMemory(n int64) bool

	// ReleaseUnrollMemory releases a previously granted unroll reservation.
	ReleaseUnrollMemory(n int64)

	// ReleaseStorageMemory releases a previously granted storage reservation.
	ReleaseStorageMemory(n int64)

	// MemoryUsed reports total bytes currently reserved across both pools.
	MemoryUsed() int64
}

// FixedAccountant is a reference Accountant backed by a single fixed byte
// budget shared between the unroll and storage pools, matching the
// conventional single-pool memory manager used by single-process deployments
// and this package's own tests.
type FixedAccountant struct {
	mu       sync.Mutex
	maxBytes int64
	reserved int64
}

// NewFixedAccountant returns an Accountant with a fixed total budget.
func NewFixedAccountant(maxBytes int64) *FixedAccountant {
	return &FixedAccountant{maxBytes: maxBytes}
}

func (a *FixedAccountant) reserve(n int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.reserved+n > a.maxBytes {
		return false
	}
	a.reserved += n
	return true
}

func (a *FixedAccountant) release(n int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reserved -= n
	if a.reserved < 0 {
		a.reserved = 0
	}
}

func (a *FixedAccountant) ReserveUnrollMemory(n int64) bool  { return a.reserve(n) }
func (a *FixedAccountant) ReserveStorageMemory(n int64) bool { return a.reserve(n) }
func (a *FixedAccountant) ReleaseUnrollMemory(n int64)       { a.release(n) }
func (a *FixedAccountant) ReleaseStorageMemory(n int64)      { a.release(n) }

func (a *FixedAccountant) MemoryUsed() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reserved
}

// MaxBytes returns the configured budget.
func (a *FixedAccountant) MaxBytes() int64 { return a.maxBytes }
