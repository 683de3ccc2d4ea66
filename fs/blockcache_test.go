package fs

import "testing"

func TestBlockCacheGetIsCoherentAcrossCallers(t *testing.T) {
	dev := newMemDevice(4)
	cache := NewBlockCache(dev)

	b1 := cache.Get(0)
	copy(b1.At(0), []byte("hello"))
	cache.Release(b1)

	b2 := cache.Get(0)
	defer cache.Release(b2)
	if string(b2.AtRO(0)[:5]) != "hello" {
		t.Fatalf("second Get of the same block did not observe the first writer's data")
	}
}

func TestBlockCacheEvictsOnlyUnpinnedBuffers(t *testing.T) {
	dev := newMemDevice(cacheSize + 1)
	cache := NewBlockCache(dev)

	pinned := cache.Get(0) // keep refcount > 0 for block 0
	for i := uint32(1); i < cacheSize; i++ {
		cache.Release(cache.Get(i))
	}
	// cache is now full (cacheSize entries); block 0 is pinned, the rest
	// are not. Requesting one more block must evict one of the unpinned
	// ones, never block 0.
	cache.Release(cache.Get(cacheSize))

	g := cache.cell.Access()
	queue := *g.Get()
	g.Done()

	found := false
	for _, buf := range queue {
		if buf.id == 0 {
			found = true
		}
	}
	if !found {
		t.Fatal("pinned block 0 was evicted")
	}
	cache.Release(pinned)
}

func TestBlockCacheExhaustionPanics(t *testing.T) {
	dev := newMemDevice(cacheSize + 1)
	cache := NewBlockCache(dev)

	for i := uint32(0); i < cacheSize; i++ {
		cache.Get(i) // never released: pins every resident buffer
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when every buffer is pinned and the cache is full")
		}
	}()
	cache.Get(cacheSize)
}

func TestBlockCacheOverReleasePanics(t *testing.T) {
	dev := newMemDevice(1)
	cache := NewBlockCache(dev)
	b := cache.Get(0)
	cache.Release(b)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on over-release")
		}
	}()
	cache.Release(b)
}

func TestSyncAllWritesDirtyBuffersToDevice(t *testing.T) {
	dev := newMemDevice(2)
	cache := NewBlockCache(dev)

	b := cache.Get(1)
	copy(b.At(0), []byte("persisted"))
	cache.Release(b)

	if err := cache.SyncAll(); err != nil {
		t.Fatalf("SyncAll: %v", err)
	}

	var raw [BlockSize]byte
	dev.ReadBlock(1, raw[:])
	if string(raw[:9]) != "persisted" {
		t.Fatal("SyncAll did not write the dirty buffer through to the device")
	}
}
