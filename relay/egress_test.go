package relay

import (
	"testing"
	"time"

	"obsidian-core/blockchain"
	"obsidian-core/wire"
)

func TestEgressBuildInventorySendsWholeMempoolAboveFloor(t *testing.T) {
	mempool := newFakeMempool()
	cache := NewRelayCache(RelayCacheDefaultSize)
	net := newFakeNet()
	e := NewEgressPipeline(mempool, cache, net, 100, 1000)

	cheapTx := makeTx(1)
	mempool.pool[cheapTx.TxHash()] = &blockchain.TxDesc{Tx: cheapTx, FeePerKB: 500}

	pricedTx := makeTx(2)
	mempool.pool[pricedTx.TxHash()] = &blockchain.TxDesc{Tx: pricedTx, FeePerKB: 5000}

	haveSent, _ := e.BuildInventory(peerCtx("peer1"), true, nil)

	found := map[wire.Hash]bool{}
	for _, h := range haveSent {
		found[h] = true
	}
	if found[cheapTx.TxHash()] {
		t.Errorf("expected below-floor tx to be filtered out")
	}
	if !found[pricedTx.TxHash()] {
		t.Errorf("expected above-floor tx to be announced")
	}
}

func TestEgressBuildInventoryRespectsPeerFeeFilter(t *testing.T) {
	mempool := newFakeMempool()
	cache := NewRelayCache(RelayCacheDefaultSize)
	net := newFakeNet()
	e := NewEgressPipeline(mempool, cache, net, 100, 0)

	tx := makeTx(3)
	mempool.pool[tx.TxHash()] = &blockchain.TxDesc{Tx: tx, FeePerKB: 2000}

	peer := peerCtx("peer1")
	peer.FeeFilter = 3000

	haveSent, _ := e.BuildInventory(peer, true, nil)
	for _, h := range haveSent {
		if h == tx.TxHash() {
			t.Fatalf("expected tx below peer's feefilter to be excluded")
		}
	}
}

func TestEgressServeFetchPrefersCacheThenMempool(t *testing.T) {
	mempool := newFakeMempool()
	cache := NewRelayCache(RelayCacheDefaultSize)
	net := newFakeNet()
	e := NewEgressPipeline(mempool, cache, net, 100, 0)

	cachedTx := makeTx(4)
	cache.Put(NewTxRef(cachedTx))

	mempoolTx := makeTx(5)
	mempool.pool[mempoolTx.TxHash()] = &blockchain.TxDesc{Tx: mempoolTx, Added: time.Now().Add(-time.Minute)}

	missingTx := makeTx(6)

	found, notFound := e.ServeFetch([]wire.Hash{cachedTx.TxHash(), mempoolTx.TxHash(), missingTx.TxHash()}, time.Now())

	if len(found) != 2 {
		t.Fatalf("expected 2 transactions found, got %d", len(found))
	}
	if len(notFound) != 1 || notFound[0] != missingTx.TxHash() {
		t.Fatalf("expected the unknown tx to be reported notfound, got %+v", notFound)
	}
}

func TestEgressServeFetchRespectsLastMempoolReqTime(t *testing.T) {
	mempool := newFakeMempool()
	cache := NewRelayCache(RelayCacheDefaultSize)
	net := newFakeNet()
	e := NewEgressPipeline(mempool, cache, net, 100, 0)

	tx := makeTx(7)
	addedAt := time.Now()
	mempool.pool[tx.TxHash()] = &blockchain.TxDesc{Tx: tx, Added: addedAt}

	// A tx added after the peer's last mempool request is withheld, since
	// the peer may have already been sent an inv for it via another path.
	found, notFound := e.ServeFetch([]wire.Hash{tx.TxHash()}, addedAt.Add(-time.Minute))
	if len(found) != 0 {
		t.Fatalf("expected tx added after lastMempoolReqTime to be withheld, got %+v", found)
	}
	if len(notFound) != 1 {
		t.Fatalf("expected tx to be reported notfound instead")
	}
}
