package tiff

import (
	"fmt"
	"math/bits"
	"sync"
	"sync/atomic"
)

// MemoryLimitExceededError is returned when a buffer would exceed the pool's
// memory limit.
type MemoryLimitExceededError struct {
	Requested int64
	Current   int64
	Limit     int64
}

func (e *MemoryLimitExceededError) Error() string {
	return fmt.Sprintf("tiff: memory limit exceeded: %d bytes requested, %d of %d in use", e.Requested, e.Current, e.Limit)
}

// Size classes run from 4 KB to 4 MB in steps of four. A typical strip
// fits the 16 KB class; 256x256 and 512x512 tiles fit 64 KB to 1 MB.
const (
	minClassShift = 12
	numClasses    = 6
)

// sizeClass returns the class holding size bytes, or -1 when size is
// larger than every class.
func sizeClass(size int) int {
	if size <= 1<<minClassShift {
		return 0
	}
	c := (bits.Len(uint(size-1)) - minClassShift + 1) / 2
	if c >= numClasses {
		return -1
	}
	return c
}

func classSize(c int) int {
	return 1 << (minClassShift + 2*c)
}

// BufferPool recycles the byte buffers that hold compressed and
// decompressed strips and tiles. Every outstanding buffer is charged
// against an optional memory limit until it is returned.
type BufferPool struct {
	classes [numClasses]sync.Pool
	used    atomic.Int64
	limit   atomic.Int64 // 0 means unlimited

	gets, hits, misses atomic.Int64
}

var globalBufferPool = NewBufferPool()

// NewBufferPool creates a buffer pool with no memory limit.
func NewBufferPool() *BufferPool {
	return NewBufferPoolWithLimit(0)
}

// NewBufferPoolWithLimit creates a buffer pool that refuses buffers once
// limit bytes are outstanding. A limit of 0 disables the check.
func NewBufferPoolWithLimit(limit int64) *BufferPool {
	p := &BufferPool{}
	p.limit.Store(limit)
	return p
}

// SetMemoryLimit sets the memory limit and returns the previous one.
func (p *BufferPool) SetMemoryLimit(limit int64) int64 {
	return p.limit.Swap(limit)
}

// MemoryUsed returns the bytes currently handed out.
func (p *BufferPool) MemoryUsed() int64 {
	return p.used.Load()
}

// Stats returns the number of Get calls, pool hits and pool misses.
func (p *BufferPool) Stats() (allocs, hits, misses int64) {
	return p.gets.Load(), p.hits.Load(), p.misses.Load()
}

// reserve charges n bytes against the limit, failing when they do not fit.
func (p *BufferPool) reserve(n int64) bool {
	for {
		used := p.used.Load()
		if limit := p.limit.Load(); limit > 0 && used+n > limit {
			return false
		}
		if p.used.CompareAndSwap(used, used+n) {
			return true
		}
	}
}

// Get returns a buffer of length size. It returns nil when the memory limit
// would be exceeded. The contents are not cleared.
func (p *BufferPool) Get(size int) []byte {
	p.gets.Add(1)
	c := sizeClass(size)
	if c < 0 {
		if !p.reserve(int64(size)) {
			return nil
		}
		p.misses.Add(1)
		return make([]byte, size)
	}

	n := classSize(c)
	if !p.reserve(int64(n)) {
		return nil
	}
	p.hits.Add(1)
	if buf, ok := p.classes[c].Get().([]byte); ok {
		return buf[:size]
	}
	return make([]byte, size, n)
}

// GetWithError is Get returning a *MemoryLimitExceededError instead of nil.
func (p *BufferPool) GetWithError(size int) ([]byte, error) {
	buf := p.Get(size)
	if buf == nil {
		return nil, &MemoryLimitExceededError{
			Requested: int64(size),
			Current:   p.used.Load(),
			Limit:     p.limit.Load(),
		}
	}
	return buf, nil
}

// Put returns a buffer obtained from Get.
func (p *BufferPool) Put(buf []byte) {
	if buf == nil {
		return
	}
	n := cap(buf)
	p.used.Add(-int64(n))
	if c := sizeClass(n); c >= 0 && classSize(c) == n {
		p.classes[c].Put(buf[:n])
	}
}

// GetBuffer returns a buffer from the global pool.
func GetBuffer(size int) []byte {
	return globalBufferPool.Get(size)
}

// PutBuffer returns a buffer to the global pool.
func PutBuffer(buf []byte) {
	globalBufferPool.Put(buf)
}

// SetGlobalMemoryLimit sets the memory limit of the global pool and
// returns the previous one.
func SetGlobalMemoryLimit(limit int64) int64 {
	return globalBufferPool.SetMemoryLimit(limit)
}
