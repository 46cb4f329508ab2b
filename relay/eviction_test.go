package relay

import (
	"testing"

	"obsidian-core/wire"
)

func TestEvictionOnPeerDisconnectPurgesOrphans(t *testing.T) {
	orphans := NewOrphanPool(DefaultMaxOrphans, DefaultOrphanExpiry)
	rejects := NewRecentRejectsFilter()
	cache := NewRelayCache(RelayCacheDefaultSize)
	h := NewEvictionHooks(orphans, rejects, cache)

	op := wire.OutPoint{Hash: wire.Hash{1}, Index: 0}
	ref := NewTxRef(makeTx(1, op))
	orphans.Add(ref, "badpeer", []wire.OutPoint{op})

	n := h.OnPeerDisconnect("badpeer")
	if n != 1 {
		t.Fatalf("expected 1 orphan purged, got %d", n)
	}
	if orphans.Has(ref.Hash) {
		t.Errorf("expected orphan to be erased")
	}
	if !h.SkipThisRound("badpeer") {
		t.Errorf("expected badpeer to be marked skip-this-round after a purge")
	}
}

func TestEvictionOnPeerDisconnectNoOrphansDoesNotMarkSkip(t *testing.T) {
	orphans := NewOrphanPool(DefaultMaxOrphans, DefaultOrphanExpiry)
	rejects := NewRecentRejectsFilter()
	cache := NewRelayCache(RelayCacheDefaultSize)
	h := NewEvictionHooks(orphans, rejects, cache)

	n := h.OnPeerDisconnect("quietpeer")
	if n != 0 {
		t.Fatalf("expected 0 orphans purged, got %d", n)
	}
	if h.SkipThisRound("quietpeer") {
		t.Errorf("expected a peer with nothing purged to not be marked skip")
	}
}

func TestEvictionClearPurged(t *testing.T) {
	orphans := NewOrphanPool(DefaultMaxOrphans, DefaultOrphanExpiry)
	rejects := NewRecentRejectsFilter()
	cache := NewRelayCache(RelayCacheDefaultSize)
	h := NewEvictionHooks(orphans, rejects, cache)

	op := wire.OutPoint{Hash: wire.Hash{2}, Index: 0}
	ref := NewTxRef(makeTx(2, op))
	orphans.Add(ref, "badpeer", []wire.OutPoint{op})
	h.OnPeerDisconnect("badpeer")

	h.ClearPurged()
	if h.SkipThisRound("badpeer") {
		t.Errorf("expected ClearPurged to reset the skip bitmap")
	}
}

func TestEvictionOnBlockConnectedErasesDependentOrphansAndCache(t *testing.T) {
	orphans := NewOrphanPool(DefaultMaxOrphans, DefaultOrphanExpiry)
	rejects := NewRecentRejectsFilter()
	cache := NewRelayCache(RelayCacheDefaultSize)
	h := NewEvictionHooks(orphans, rejects, cache)

	confirmedTx := makeTx(3)
	confirmedRef := NewTxRef(confirmedTx)
	cache.Put(confirmedRef)

	spentOp := wire.OutPoint{Hash: confirmedRef.Hash, Index: 0}
	orphanTx := makeTx(4, spentOp)
	orphanRef := NewTxRef(orphanTx)

	// The orphan here waits on an output of confirmedTx, not one of its
	// inputs; OnBlockConnected only looks at consumed inputs, so it must not
	// be touched by this block.
	orphans.Add(orphanRef, "peer1", []wire.OutPoint{spentOp})

	// A second orphan that spends one of confirmedTx's own inputs (i.e. the
	// same coin confirmedTx just consumed) must be erased.
	consumedOp := confirmedTx.TxIn[0].PreviousOutPoint
	conflictingTx := makeTx(5, consumedOp)
	conflictingRef := NewTxRef(conflictingTx)
	orphans.Add(conflictingRef, "peer2", []wire.OutPoint{consumedOp})

	h.OnBlockConnected(wire.Hash{9, 9}, []*wire.MsgTx{confirmedTx})

	if _, ok := cache.Get(confirmedRef.Hash); ok {
		t.Errorf("expected confirmed tx to be dropped from the relay cache")
	}
	if !orphans.Has(orphanRef.Hash) {
		t.Errorf("expected orphan waiting on confirmedTx's output to be unaffected")
	}
	if orphans.Has(conflictingRef.Hash) {
		t.Errorf("expected orphan depending on a now-spent input to be erased")
	}
}
