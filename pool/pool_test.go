package pool

import "testing"

func TestScratchPoolGetReturnsFixedCapacity(t *testing.T) {
	p := NewScratchPool(64, 4)
	b := p.Get(64)
	if len(b.Bytes()) != 64 {
		t.Fatalf("len = %d, want 64", len(b.Bytes()))
	}
	stats := p.Stats()
	if stats.TotalAlloc != 1 || stats.InUse != 1 {
		t.Fatalf("stats = %+v, want TotalAlloc=1 InUse=1", stats)
	}
}

func TestScratchPoolGetPanicsOnOversizedRequest(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for a request exceeding pool capacity")
		}
	}()
	p := NewScratchPool(32, 4)
	p.Get(64)
}

func TestScratchPoolRecyclesReleasedBuffers(t *testing.T) {
	p := NewScratchPool(16, 4)
	b := p.Get(16)
	b.Release()

	if stats := p.Stats(); stats.InUse != 0 {
		t.Fatalf("InUse = %d after Release, want 0", stats.InUse)
	}

	b2 := p.Get(16)
	if stats := p.Stats(); stats.TotalAlloc != 1 {
		t.Fatalf("TotalAlloc = %d after a reuse, want 1 (buffer should have been recycled)", stats.TotalAlloc)
	}
	b2.Release()
}

func TestScratchPoolPutIgnoresForeignBuffers(t *testing.T) {
	a := NewScratchPool(8, 4)
	b := NewScratchPool(8, 4)

	buf := a.Get(8)
	// Put on the wrong pool must not corrupt either pool's accounting.
	b.Put(buf)
	if stats := a.Stats(); stats.InUse != 1 {
		t.Fatalf("a.InUse = %d, want 1 (buffer was never released to its own pool)", stats.InUse)
	}
}

func TestSharedReturnsSamePoolForSameCapacity(t *testing.T) {
	p1 := Shared(4096)
	p2 := Shared(4096)
	if p1 != p2 {
		t.Fatal("Shared(4096) returned distinct pools across calls")
	}

	p3 := Shared(8192)
	if p3 == p1 {
		t.Fatal("Shared with a different capacity must not alias an existing pool")
	}
}
