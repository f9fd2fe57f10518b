// File: api/buffer.go
// Package api
// Author: momentics <momentics@gmail.com>
//
// Pooled byte-buffer abstraction used for decoder/encoder scratch space.

package api

// Buffer is a reusable, pool-owned byte region. After Release, a Buffer
// must not be read or written.
type Buffer interface {
	// Bytes returns the full backing slice; callers reslice as needed.
	Bytes() []byte

	// Release returns the buffer to its originating pool.
	Release()
}

// BufferPool hands out Buffers of at least the requested capacity.
type BufferPool interface {
	// Get returns a buffer with capacity >= size.
	Get(size int) Buffer

	// Put returns b to the pool. b must have come from this pool.
	Put(b Buffer)

	// Stats reports pool occupancy for observability.
	Stats() BufferPoolStats
}

// BufferPoolStats is a point-in-time snapshot of pool activity.
type BufferPoolStats struct {
	TotalAlloc int64
	TotalFree  int64
	InUse      int64
}
