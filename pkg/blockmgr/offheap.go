package blockmgr

import "sync"

// offHeapAllocator models StorageLevel.UseOffHeap placement. Go has no
// direct/heap buffer distinction the way the platform this was modeled on
// does; "off-heap" is represented here as a freshly allocated []byte the
// put path copies non-pool-sourced chunks into before storage, so off-heap
// blocks never alias a caller's backing array. Buffers are taken from the
// sync.Pool but never put back, so every copy is a new allocation.
type offHeapAllocator struct {
	pool sync.Pool
}

func newOffHeapAllocator() *offHeapAllocator {
	return &offHeapAllocator{
		pool: sync.Pool{New: func() any { return make([]byte, 0, 64*1024) }},
	}
}

// copyOffHeap returns a []byte containing a copy of src, sized exactly to
// len(src): a 64 KiB-capacity slice from the pool when src fits, otherwise a
// new slice of len(src). The caller owns the result and nothing is returned
// to the pool; block bytes live as long as the block itself.
func (a *offHeapAllocator) copyOffHeap(src []byte) []byte {
	buf := a.pool.Get().([]byte)
	if cap(buf) < len(src) {
		buf = make([]byte, len(src))
	} else {
		buf = buf[:len(src)]
	}
	copy(buf, src)
	return buf
}
