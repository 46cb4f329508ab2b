package relay

import (
	"testing"
	"time"

	"obsidian-core/wire"
)

func TestOrphanPoolAddAndHas(t *testing.T) {
	pool := NewOrphanPool(DefaultMaxOrphans, DefaultOrphanExpiry)

	parent := wire.Hash{1}
	missing := []wire.OutPoint{{Hash: parent, Index: 0}}
	tx := makeTx(1, missing...)
	ref := NewTxRef(tx)

	if !pool.Add(ref, "peer1", missing) {
		t.Fatalf("expected Add to succeed")
	}
	if !pool.Has(ref.Hash) {
		t.Errorf("expected orphan to be tracked")
	}
	if pool.Count() != 1 {
		t.Errorf("expected count 1, got %d", pool.Count())
	}
}

func TestOrphanPoolSatisfyOutpoint(t *testing.T) {
	pool := NewOrphanPool(DefaultMaxOrphans, DefaultOrphanExpiry)

	parent := wire.Hash{2}
	op := wire.OutPoint{Hash: parent, Index: 0}
	tx := makeTx(2, op)
	ref := NewTxRef(tx)
	pool.Add(ref, "peer1", []wire.OutPoint{op})

	ready := pool.SatisfyOutpoint(op)
	if len(ready) != 1 {
		t.Fatalf("expected 1 orphan to become ready, got %d", len(ready))
	}
	if ready[0].Ref.Hash != ref.Hash {
		t.Errorf("unexpected orphan returned")
	}

	// A fully-satisfied orphan is removed as part of SatisfyOutpoint itself.
	if pool.Has(ref.Hash) {
		t.Errorf("expected fully-satisfied orphan to already be removed")
	}
}

func TestOrphanPoolSatisfyOutpointRequiresAllParents(t *testing.T) {
	pool := NewOrphanPool(DefaultMaxOrphans, DefaultOrphanExpiry)

	opA := wire.OutPoint{Hash: wire.Hash{3}, Index: 0}
	opB := wire.OutPoint{Hash: wire.Hash{4}, Index: 0}
	tx := makeTx(3, opA, opB)
	ref := NewTxRef(tx)
	pool.Add(ref, "peer1", []wire.OutPoint{opA, opB})

	ready := pool.SatisfyOutpoint(opA)
	if len(ready) != 0 {
		t.Fatalf("expected no orphans ready with one of two parents satisfied, got %d", len(ready))
	}

	ready = pool.SatisfyOutpoint(opB)
	if len(ready) != 1 {
		t.Fatalf("expected orphan ready once both parents satisfied, got %d", len(ready))
	}
}

func TestOrphanPoolChildrenOfIsNonMutating(t *testing.T) {
	pool := NewOrphanPool(DefaultMaxOrphans, DefaultOrphanExpiry)

	op := wire.OutPoint{Hash: wire.Hash{5}, Index: 0}
	tx := makeTx(5, op)
	ref := NewTxRef(tx)
	pool.Add(ref, "peer1", []wire.OutPoint{op})

	children := pool.ChildrenOf(op)
	if len(children) != 1 || children[0] != ref.Hash {
		t.Fatalf("expected ChildrenOf to return the orphan, got %v", children)
	}
	if !pool.Has(ref.Hash) {
		t.Errorf("ChildrenOf must not remove the orphan")
	}
}

func TestOrphanPoolEraseForPeer(t *testing.T) {
	pool := NewOrphanPool(DefaultMaxOrphans, DefaultOrphanExpiry)

	op1 := wire.OutPoint{Hash: wire.Hash{6}, Index: 0}
	op2 := wire.OutPoint{Hash: wire.Hash{7}, Index: 0}
	ref1 := NewTxRef(makeTx(6, op1))
	ref2 := NewTxRef(makeTx(7, op2))

	pool.Add(ref1, "badpeer", []wire.OutPoint{op1})
	pool.Add(ref2, "goodpeer", []wire.OutPoint{op2})

	erased := pool.EraseForPeer("badpeer")
	if erased != 1 {
		t.Fatalf("expected 1 orphan erased, got %d", erased)
	}
	if pool.Has(ref1.Hash) {
		t.Errorf("expected badpeer's orphan to be erased")
	}
	if !pool.Has(ref2.Hash) {
		t.Errorf("expected goodpeer's orphan to survive")
	}
}

func TestOrphanPoolRemoveExpired(t *testing.T) {
	pool := NewOrphanPool(DefaultMaxOrphans, time.Minute)

	op := wire.OutPoint{Hash: wire.Hash{8}, Index: 0}
	ref := NewTxRef(makeTx(8, op))
	pool.Add(ref, "peer1", []wire.OutPoint{op})

	expired := pool.RemoveExpired(time.Now().Add(2 * time.Minute))
	if len(expired) != 1 || expired[0] != ref.Hash {
		t.Fatalf("expected the orphan to be reported expired, got %v", expired)
	}
	if pool.Has(ref.Hash) {
		t.Errorf("expected expired orphan to be removed")
	}
}

func TestOrphanPoolEvictsWhenFull(t *testing.T) {
	pool := NewOrphanPool(2, DefaultOrphanExpiry)

	for i := byte(1); i <= 3; i++ {
		op := wire.OutPoint{Hash: wire.Hash{i}, Index: 0}
		ref := NewTxRef(makeTx(i, op))
		pool.Add(ref, "peer1", []wire.OutPoint{op})
	}

	if pool.Count() > 2 {
		t.Errorf("expected pool to stay at its cap of 2, got %d", pool.Count())
	}
}
