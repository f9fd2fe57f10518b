// File: pool/bytepool.go
// Package pool
// Author: momentics <momentics@gmail.com>
//
// BytePool is a lighter-weight sync.Pool wrapper for transient []byte
// allocations (e.g. the encoder's outbound write-chunk staging) that
// don't need the api.Buffer/Release accounting ScratchPool provides.

package pool

import "sync"

// BytePool hands out []byte slices of a fixed size backed by sync.Pool.
type BytePool struct {
	size int
	pool sync.Pool
}

// NewBytePool creates a BytePool whose Get always returns a slice of
// length size.
func NewBytePool(size int) *BytePool {
	bp := &BytePool{size: size}
	bp.pool.New = func() any {
		return make([]byte, bp.size)
	}
	return bp
}

// Get returns a slice of length size; contents are not zeroed.
func (b *BytePool) Get() []byte {
	return b.pool.Get().([]byte)
}

// Put returns buf to the pool. buf must have come from Get.
func (b *BytePool) Put(buf []byte) {
	if cap(buf) < b.size {
		return
	}
	b.pool.Put(buf[:b.size])
}
