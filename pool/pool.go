// File: pool/pool.go
// Package pool
// Author: momentics <momentics@gmail.com>
//
// ScratchPool is a generic, channel-backed pool of fixed-capacity byte
// buffers, used by the decoder and encoder for their codeBufDecode /
// codeBufEncode scratch space (spec.md §3). It is a trimmed descendant
// of the teacher's NUMA-node-keyed base_bufferpool.go: this core has
// exactly one size class per pool (the fixed scratch capacity), so the
// NUMA dimension collapsed away rather than being ported.

package pool

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/wscore/api"
)

type scratchBuffer struct {
	buf  []byte
	pool *ScratchPool
}

func (b *scratchBuffer) Bytes() []byte { return b.buf }

func (b *scratchBuffer) Release() {
	b.pool.put(b)
}

// ScratchPool recycles fixed-capacity []byte buffers.
type ScratchPool struct {
	capacity int
	free     chan *scratchBuffer
	alloc    int64
	inUse    int64
}

// NewScratchPool creates a pool of buffers with the given fixed
// capacity. backlog bounds how many idle buffers are retained; beyond
// that, released buffers are simply dropped for the GC to collect.
func NewScratchPool(capacity, backlog int) *ScratchPool {
	return &ScratchPool{
		capacity: capacity,
		free:     make(chan *scratchBuffer, backlog),
	}
}

// Get returns a buffer with len == capacity. size is accepted for
// api.BufferPool compatibility but must not exceed the pool's fixed
// capacity.
func (p *ScratchPool) Get(size int) api.Buffer {
	if size > p.capacity {
		panic("pool: requested size exceeds scratch capacity")
	}
	select {
	case b := <-p.free:
		atomic.AddInt64(&p.inUse, 1)
		return b
	default:
	}
	atomic.AddInt64(&p.alloc, 1)
	atomic.AddInt64(&p.inUse, 1)
	return &scratchBuffer{buf: make([]byte, p.capacity), pool: p}
}

func (p *ScratchPool) put(b *scratchBuffer) {
	atomic.AddInt64(&p.inUse, -1)
	select {
	case p.free <- b:
	default:
	}
}

// Put implements api.BufferPool.
func (p *ScratchPool) Put(b api.Buffer) {
	if sb, ok := b.(*scratchBuffer); ok && sb.pool == p {
		p.put(sb)
	}
}

// Stats reports pool occupancy.
func (p *ScratchPool) Stats() api.BufferPoolStats {
	return api.BufferPoolStats{
		TotalAlloc: atomic.LoadInt64(&p.alloc),
		InUse:      atomic.LoadInt64(&p.inUse),
	}
}

var _ api.BufferPool = (*ScratchPool)(nil)

var poolsMu sync.Mutex
var poolsBySize = map[int]*ScratchPool{}

// Shared returns a process-wide ScratchPool for the given capacity,
// creating it on first use. Connections that share a capacity (the
// common case: spec.md's single configured scratch size) also share
// the recycling backlog instead of fragmenting allocations per
// connection.
func Shared(capacity int) *ScratchPool {
	poolsMu.Lock()
	defer poolsMu.Unlock()
	if p, ok := poolsBySize[capacity]; ok {
		return p
	}
	p := NewScratchPool(capacity, 256)
	poolsBySize[capacity] = p
	return p
}
