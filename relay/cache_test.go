package relay

import "testing"

func TestRelayCachePutGetRemove(t *testing.T) {
	cache := NewRelayCache(10)

	ref := NewTxRef(makeTx(1))
	cache.Put(ref)

	got, ok := cache.Get(ref.Hash)
	if !ok || got.Hash != ref.Hash {
		t.Fatalf("expected cached entry to round-trip, got %+v, %v", got, ok)
	}

	cache.Remove(ref.Hash)
	if _, ok := cache.Get(ref.Hash); ok {
		t.Errorf("expected entry to be gone after Remove")
	}
}

func TestRelayCacheLenTracksLiveEntries(t *testing.T) {
	cache := NewRelayCache(10)
	if cache.Len() != 0 {
		t.Fatalf("expected empty cache, got len %d", cache.Len())
	}

	cache.Put(NewTxRef(makeTx(1)))
	cache.Put(NewTxRef(makeTx(2)))
	if cache.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", cache.Len())
	}
}

func TestRelayCacheDefaultsSizeWhenNonPositive(t *testing.T) {
	cache := NewRelayCache(0)
	if cache.lru == nil {
		t.Fatalf("expected a usable cache even with size <= 0")
	}
}
