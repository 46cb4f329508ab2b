package relay

import (
	"errors"
	"testing"

	"obsidian-core/blockchain"
	"obsidian-core/wire"
)

func newTestIngress() (*IngressPipeline, *fakeMempool, *fakeChain, *fakeNet, *OrphanPool, *RecentRejectsFilter) {
	mempool := newFakeMempool()
	chain := newFakeChain()
	net := newFakeNet()
	orphans := NewOrphanPool(DefaultMaxOrphans, DefaultOrphanExpiry)
	rejects := NewRecentRejectsFilter()

	p := NewIngressPipeline(mempool, chain, net, orphans, rejects, nil, false, false, nil)
	return p, mempool, chain, net, orphans, rejects
}

func TestIngressOnTxAcceptedBroadcasts(t *testing.T) {
	p, _, _, net, _, _ := newTestIngress()

	tx := makeTx(1)
	res := p.OnTx(peerCtx("peer1"), true, tx)

	if res.Outcome != blockchain.AcceptOutcomeAccepted || !res.Broadcast {
		t.Fatalf("expected accepted+broadcast, got %+v", res)
	}
	if len(net.broadcasts) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(net.broadcasts))
	}
	if net.broadcasts[0].exclude != "peer1" {
		t.Errorf("expected broadcast to exclude originating peer, got %q", net.broadcasts[0].exclude)
	}
}

func TestIngressOnTxNonRelayingPeerDropped(t *testing.T) {
	p, mempool, _, net, _, _ := newTestIngress()

	tx := makeTx(2)
	res := p.OnTx(peerCtx("peer1"), false, tx)

	if res != (IngressResult{}) {
		t.Fatalf("expected zero-value result for dropped tx, got %+v", res)
	}
	if mempool.Exists(tx.TxHash()) {
		t.Errorf("expected tx to never reach the mempool")
	}
	if len(net.broadcasts) != 0 {
		t.Errorf("expected no broadcast for a dropped tx")
	}
}

func TestIngressOnTxMissingInputsParksOrphanAndRequestsParent(t *testing.T) {
	p, mempool, _, net, orphans, _ := newTestIngress()

	parent := wire.Hash{42}
	op := wire.OutPoint{Hash: parent, Index: 0}
	tx := makeTx(3, op)
	mempool.setResult(tx, &blockchain.AcceptResult{Outcome: blockchain.AcceptOutcomeMissingInputs})

	res := p.OnTx(peerCtx("peer1"), true, tx)

	if res.Outcome != blockchain.AcceptOutcomeMissingInputs || !res.Parked {
		t.Fatalf("expected parked/missing-inputs result, got %+v", res)
	}
	if !orphans.Has(tx.TxHash()) {
		t.Errorf("expected tx to be parked in the orphan pool")
	}
	if len(net.invs) != 1 || net.invs[0].hashes[0] != parent {
		t.Fatalf("expected an inv requesting the missing parent, got %+v", net.invs)
	}
}

func TestIngressOnTxMissingInputsSkipsRequestForKnownRejectedParent(t *testing.T) {
	p, mempool, _, net, _, rejects := newTestIngress()

	parent := wire.Hash{43}
	op := wire.OutPoint{Hash: parent, Index: 0}
	tx := makeTx(4, op)
	mempool.setResult(tx, &blockchain.AcceptResult{Outcome: blockchain.AcceptOutcomeMissingInputs})
	rejects.Insert(parent)

	res := p.OnTx(peerCtx("peer1"), true, tx)

	if res.RejectCode != RejectInternal {
		t.Fatalf("expected internal reject when parent is known-bad, got %+v", res)
	}
	if len(net.invs) != 0 {
		t.Errorf("expected no inv requested for a parent that's already known-rejected")
	}
}

func TestIngressOnTxInvalidHighDoSScoreRejectsAndScores(t *testing.T) {
	p, _, _, net, _, rejects := newTestIngress()

	tx := makeTx(5)
	mempool := p.mempool.(*fakeMempool)
	mempool.setResult(tx, &blockchain.AcceptResult{
		Outcome:  blockchain.AcceptOutcomeInvalid,
		Err:      errors.New("bad signature"),
		DoSScore: 100,
	})

	res := p.OnTx(peerCtx("peer1"), true, tx)

	if res.RejectCode != RejectInvalid {
		t.Fatalf("expected invalid reject code, got %q", res.RejectCode)
	}
	if len(net.rejects) != 1 || net.rejects[0].ccode != RejectInvalid {
		t.Fatalf("expected a reject message sent, got %+v", net.rejects)
	}
	if len(net.misbehaves) != 1 || net.misbehaves[0].score != 100 {
		t.Fatalf("expected peer to be scored for the violation, got %+v", net.misbehaves)
	}
	if !rejects.Contains(tx.TxHash()) {
		t.Errorf("expected a non-malleable invalid tx to be added to the rejects filter")
	}
}

func TestIngressOnTxWhitelistedForceRelayBypassesFeeRejection(t *testing.T) {
	mempool := newFakeMempool()
	chain := newFakeChain()
	net := newFakeNet()
	orphans := NewOrphanPool(DefaultMaxOrphans, DefaultOrphanExpiry)
	rejects := NewRecentRejectsFilter()
	p := NewIngressPipeline(mempool, chain, net, orphans, rejects, nil, false, true, nil)

	tx := makeTx(6)
	mempool.setResult(tx, &blockchain.AcceptResult{
		Outcome:  blockchain.AcceptOutcomeInvalid,
		Err:      errors.New("fee too high"),
		DoSScore: 0,
	})

	peer := peerCtx("peer2")
	peer.Whitelisted = true
	res := p.OnTx(peer, true, tx)
	if !res.Broadcast {
		t.Fatalf("expected whitelisted force-relay to broadcast a zero-DoS-score rejection, got %+v", res)
	}
	if len(net.misbehaves) != 0 {
		t.Errorf("expected no scoring for a zero-DoS-score (policy-only) rejection, got %+v", net.misbehaves)
	}
}

func TestIngressResolveOrphansChains(t *testing.T) {
	p, mempool, chain, net, orphans, _ := newTestIngress()

	parentTx := makeTx(10)
	parentRef := NewTxRef(parentTx)

	childOp := wire.OutPoint{Hash: parentRef.Hash, Index: 0}
	childTx := makeTx(11, childOp)
	childRef := NewTxRef(childTx)

	mempool.setResult(childTx, &blockchain.AcceptResult{Outcome: blockchain.AcceptOutcomeMissingInputs})
	p.OnTx(peerCtx("peerChild"), true, childTx)
	if !orphans.Has(childRef.Hash) {
		t.Fatalf("expected child to be parked as an orphan before parent arrives")
	}

	chain.addCoin(childOp)
	mempool.setResult(childTx, &blockchain.AcceptResult{Outcome: blockchain.AcceptOutcomeAccepted})

	p.OnTx(peerCtx("peerParent"), true, parentTx)

	if orphans.Has(childRef.Hash) {
		t.Errorf("expected child orphan to be resolved once its parent was accepted")
	}
	foundChildBroadcast := false
	for _, b := range net.broadcasts {
		if len(b.hashes) == 1 && b.hashes[0] == childRef.Hash {
			foundChildBroadcast = true
		}
	}
	if !foundChildBroadcast {
		t.Errorf("expected the newly-resolved child to be broadcast, got %+v", net.broadcasts)
	}
}

func TestIngressResolveOrphansLeavesSiblingFromMisbehavingPeerParked(t *testing.T) {
	p, mempool, chain, _, orphans, _ := newTestIngress()

	parentTx := makeTx(20)
	parentRef := NewTxRef(parentTx)

	op0 := wire.OutPoint{Hash: parentRef.Hash, Index: 0}
	op1 := wire.OutPoint{Hash: parentRef.Hash, Index: 1}

	badChild := makeTx(21, op0)
	badChildRef := NewTxRef(badChild)
	siblingChild := makeTx(22, op1)
	siblingRef := NewTxRef(siblingChild)

	orphans.Add(badChildRef, "badpeer", []wire.OutPoint{op0})
	orphans.Add(siblingRef, "badpeer", []wire.OutPoint{op1})

	chain.addCoin(op0)
	chain.addCoin(op1)

	mempool.setResult(badChild, &blockchain.AcceptResult{
		Outcome:  blockchain.AcceptOutcomeInvalid,
		Err:      errors.New("bad signature"),
		DoSScore: 100,
	})

	p.OnTx(peerCtx("peerParent"), true, parentTx)

	if orphans.Has(badChildRef.Hash) {
		t.Errorf("expected the invalid orphan to be erased")
	}
	if !orphans.Has(siblingRef.Hash) {
		t.Errorf("expected the sibling orphan from the now-misbehaving peer to stay parked, not be erased")
	}
	for _, txid := range mempool.accepts {
		if txid == siblingRef.Hash {
			t.Errorf("expected the sibling orphan to never reach AcceptToMemoryPool this round")
		}
	}
}

func TestIngressResolveOrphansConsultsEvictionPurgedPeers(t *testing.T) {
	mempool := newFakeMempool()
	chain := newFakeChain()
	net := newFakeNet()
	orphans := NewOrphanPool(DefaultMaxOrphans, DefaultOrphanExpiry)
	rejects := NewRecentRejectsFilter()
	cache := NewRelayCache(RelayCacheDefaultSize)
	eviction := NewEvictionHooks(orphans, rejects, cache)
	p := NewIngressPipeline(mempool, chain, net, orphans, rejects, eviction, false, false, nil)

	// An earlier disconnect purged this peer's orphans and marked it
	// skip-this-round; the bit persists until ClearPurged runs.
	decoyOp := wire.OutPoint{Hash: wire.Hash{77}, Index: 0}
	decoyTx := makeTx(33, decoyOp)
	orphans.Add(NewTxRef(decoyTx), "purgedpeer", []wire.OutPoint{decoyOp})
	eviction.OnPeerDisconnect("purgedpeer")

	parentTx := makeTx(30)
	parentRef := NewTxRef(parentTx)
	op := wire.OutPoint{Hash: parentRef.Hash, Index: 0}

	purgedChild := makeTx(31, op)
	purgedRef := NewTxRef(purgedChild)
	orphans.Add(purgedRef, "purgedpeer", []wire.OutPoint{op})

	chain.addCoin(op)
	mempool.setResult(purgedChild, &blockchain.AcceptResult{Outcome: blockchain.AcceptOutcomeAccepted})

	p.OnTx(peerCtx("peerParent"), true, parentTx)

	if !orphans.Has(purgedRef.Hash) {
		t.Errorf("expected orphan belonging to an already-purged peer to stay parked, not be admitted")
	}
	for _, txid := range mempool.accepts {
		if txid == purgedRef.Hash {
			t.Errorf("expected eviction hooks to prevent the purged peer's orphan from reaching AcceptToMemoryPool")
		}
	}
}

func TestIngressOnMissingInputsRecordsKnownInventoryForEveryInput(t *testing.T) {
	p, _, chain, net, _, _ := newTestIngress()

	available := wire.OutPoint{Hash: wire.Hash{55}, Index: 0}
	missingParent := wire.OutPoint{Hash: wire.Hash{56}, Index: 0}
	chain.addCoin(available)

	tx := makeTx(40, available, missingParent)
	mempool := p.mempool.(*fakeMempool)
	mempool.setResult(tx, &blockchain.AcceptResult{Outcome: blockchain.AcceptOutcomeMissingInputs})

	p.OnTx(peerCtx("peer1"), true, tx)

	seen := make(map[wire.Hash]bool)
	for _, c := range net.knownInv {
		seen[c.txid] = true
	}
	if !seen[available.Hash] {
		t.Errorf("expected known-inventory recorded for an already-available input, got %+v", net.knownInv)
	}
	if !seen[missingParent.Hash] {
		t.Errorf("expected known-inventory recorded for a missing input, got %+v", net.knownInv)
	}
}
