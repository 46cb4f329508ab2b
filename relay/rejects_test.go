package relay

import (
	"testing"

	"obsidian-core/wire"
)

func TestRecentRejectsFilterInsertAndContains(t *testing.T) {
	f := NewRecentRejectsFilter()

	txid := wire.Hash{1, 2, 3}
	if f.Contains(txid) {
		t.Fatalf("expected unseen txid to not be contained")
	}

	f.Insert(txid)
	if !f.Contains(txid) {
		t.Errorf("expected inserted txid to be contained")
	}
}

func TestRecentRejectsFilterResetsOnTipChange(t *testing.T) {
	f := NewRecentRejectsFilter()

	txid := wire.Hash{4, 5, 6}
	f.Insert(txid)

	f.ResetIfTipChanged(wire.Hash{7})
	if f.Contains(txid) {
		t.Errorf("expected filter to be cleared once the tip moves")
	}
}

func TestRecentRejectsFilterResetIfTipChangedIsIdempotent(t *testing.T) {
	f := NewRecentRejectsFilter()
	tip := wire.Hash{8}

	f.ResetIfTipChanged(tip)
	txid := wire.Hash{9}
	f.Insert(txid)

	// Same tip again must not clear what was just inserted.
	f.ResetIfTipChanged(tip)
	if !f.Contains(txid) {
		t.Errorf("expected repeated ResetIfTipChanged with the same tip to be a no-op")
	}
}
