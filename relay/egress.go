package relay

import (
	"sort"
	"time"

	"obsidian-core/blockchain"
	"obsidian-core/wire"
)

// MaxInvSize is the wire maximum number of entries in a single INV batch.
const MaxInvSize = 50000

// EgressPipeline answers what a peer should be told about and what it can
// fetch: building INV batches from the mempool and a per-peer pending set,
// and serving TX/NOTFOUND in response to GETDATA.
type EgressPipeline struct {
	mempool Mempool
	cache   *RelayCache
	net     NetOut

	inventoryBroadcastMax int
	minRelayTxFeeRate     int64
}

// NewEgressPipeline wires the pipeline to its collaborators.
func NewEgressPipeline(mempool Mempool, cache *RelayCache, net NetOut, inventoryBroadcastMax int, minRelayTxFeeRate int64) *EgressPipeline {
	return &EgressPipeline{
		mempool:               mempool,
		cache:                 cache,
		net:                   net,
		inventoryBroadcastMax: inventoryBroadcastMax,
		minRelayTxFeeRate:     minRelayTxFeeRate,
	}
}

// BuildInventory advertises transactions to peer. When sendWholeMempool is
// true every mempool entry surviving the fee floor and bloom filter is
// announced and dropped from the pending set built from toSend (toSend
// itself is not modified). The pending set is then drained, deepest-in-chain
// first, up to inventoryBroadcastMax entries; pending entries that are no
// longer in the mempool or fail the filters are dropped without counting,
// and anything not reached is returned as remaining for the next round.
func (e *EgressPipeline) BuildInventory(peer *PeerCtx, sendWholeMempool bool, toSend []wire.Hash) (haveSent, remaining []wire.Hash) {
	floor := e.minRelayTxFeeRate
	if peer.FeeFilter > floor {
		floor = peer.FeeFilter
	}

	var batch []wire.Hash
	flush := func() {
		if len(batch) == 0 {
			return
		}
		e.net.SendInv(peer.Addr, "tx", batch)
		batch = nil
	}
	announce := func(txid wire.Hash) {
		batch = append(batch, txid)
		if len(batch) >= MaxInvSize {
			flush()
		}
	}

	pending := make(map[wire.Hash]struct{}, len(toSend))
	for _, txid := range toSend {
		pending[txid] = struct{}{}
	}

	if sendWholeMempool {
		for _, desc := range e.mempool.InfoAll() {
			txid := desc.Tx.TxHash()
			if desc.FeePerKB < floor || !matchesBloom(peer, desc.Tx) {
				continue
			}
			haveSent = append(haveSent, txid)
			announce(txid)
			delete(pending, txid)
		}
	}

	remainingList := make([]wire.Hash, 0, len(pending))
	for txid := range pending {
		remainingList = append(remainingList, txid)
	}
	sortByDepthAndScore(remainingList, e.mempool)

	relayed := 0
	for relayed < e.inventoryBroadcastMax && len(remainingList) > 0 {
		txid := remainingList[0]
		remainingList = remainingList[1:]

		desc, ok := e.mempool.Info(txid)
		if !ok || desc.FeePerKB < floor || !matchesBloom(peer, desc.Tx) {
			continue
		}

		haveSent = append(haveSent, txid)
		e.cache.Put(NewTxRef(desc.Tx))
		announce(txid)
		relayed++
	}

	flush()
	return haveSent, remainingList
}

// ServeFetch answers a GETDATA for requested txids: relay cache first (it
// survives mempool eviction), falling back to the mempool when the entry
// was added no later than lastMempoolReqTime, which keeps admission timing
// from leaking to a peer that hasn't recently asked for the whole pool.
func (e *EgressPipeline) ServeFetch(requested []wire.Hash, lastMempoolReqTime time.Time) (found []*wire.MsgTx, notFound []wire.Hash) {
	for _, txid := range requested {
		if ref, ok := e.cache.Get(txid); ok {
			found = append(found, ref.Tx)
			continue
		}
		if desc, ok := e.mempool.Info(txid); ok && !desc.Added.After(lastMempoolReqTime) {
			found = append(found, desc.Tx)
			continue
		}
		notFound = append(notFound, txid)
	}
	return found, notFound
}

func matchesBloom(peer *PeerCtx, tx *wire.MsgTx) bool {
	if peer.BloomFilter == nil {
		return true
	}
	return peer.BloomFilter.MatchesTx(tx)
}

// sortByDepthAndScore orders txids deepest-in-chain first (oldest admission
// time), breaking ties by higher fee rate, matching the mempool's own
// comparator so parents are always offered before children.
func sortByDepthAndScore(txids []wire.Hash, mempool Mempool) {
	descs := make(map[wire.Hash]*blockchain.TxDesc, len(txids))
	for _, txid := range txids {
		if desc, ok := mempool.Info(txid); ok {
			descs[txid] = desc
		}
	}
	sort.Slice(txids, func(i, j int) bool {
		a, aok := descs[txids[i]]
		b, bok := descs[txids[j]]
		if !aok || !bok {
			return aok
		}
		return blockchain.CompareDepthAndScore(a, b)
	})
}
