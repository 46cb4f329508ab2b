package relay

import (
	"time"

	"obsidian-core/blockchain"
	"obsidian-core/wire"
)

// IngressResult summarizes what happened to a transaction handed to OnTx,
// mainly for tests and for the caller's own metrics; the actual side effects
// (mempool admission, orphan parking, peer scoring, outbound messages) have
// already happened by the time this is returned.
type IngressResult struct {
	Outcome      blockchain.AcceptOutcome
	NewTxid      bool
	Broadcast    bool
	Parked       bool
	RejectCode   string
	RejectReason string
}

// IngressPipeline is the admission gate a peer-supplied transaction passes
// through before it reaches the mempool: existence checks, validation,
// orphan parking, recursive orphan resolution on acceptance, and DoS
// scoring/reject reporting for everything that doesn't make it in.
type IngressPipeline struct {
	mempool   Mempool
	chain     ChainView
	net       NetOut
	orphans   *OrphanPool
	rejects   *RecentRejectsFilter
	existence *ExistenceOracle
	eviction  *EvictionHooks

	whitelistRelay      bool
	whitelistForceRelay bool
	compactExtraPool    CompactExtraPool
}

// CompactExtraPool is the external collaborator that receives transactions
// too small/young to have made it into the mempool outright but worth
// holding for compact-block reconstruction. Optional: a nil pool is a no-op.
type CompactExtraPool interface {
	Add(tx *wire.MsgTx)
}

// NewIngressPipeline wires the pipeline to its collaborators. eviction may be
// nil, in which case purged peers are not specially consulted when resolving
// orphans (only this-round misbehavior still gates them).
func NewIngressPipeline(mempool Mempool, chain ChainView, net NetOut, orphans *OrphanPool, rejects *RecentRejectsFilter, eviction *EvictionHooks, whitelistRelay, whitelistForceRelay bool, extraPool CompactExtraPool) *IngressPipeline {
	return &IngressPipeline{
		mempool:             mempool,
		chain:               chain,
		net:                 net,
		orphans:             orphans,
		rejects:             rejects,
		existence:           NewExistenceOracle(mempool, orphans, rejects),
		eviction:            eviction,
		whitelistRelay:      whitelistRelay,
		whitelistForceRelay: whitelistForceRelay,
		compactExtraPool:    extraPool,
	}
}

// OnTx runs a peer-supplied transaction through the full admission gate.
// relayTx is the connection's relay flag; callers that don't track a
// relay_tx flag per connection should pass true.
func (p *IngressPipeline) OnTx(peer *PeerCtx, relayTx bool, tx *wire.MsgTx) IngressResult {
	p.rejects.ResetIfTipChanged(p.chain.TipHash())

	if !relayTx && !(peer.Whitelisted && p.whitelistRelay) {
		log.WithField("peer", peer.Addr).Debug("dropping tx from non-relaying peer")
		return IngressResult{}
	}

	ref := NewTxRef(tx)

	if p.existence.Query(ref.Hash).Known() {
		return p.handleAlreadyKnownOrInvalid(peer, ref, nil)
	}

	res := p.mempool.AcceptToMemoryPool(tx)

	switch res.Outcome {
	case blockchain.AcceptOutcomeAccepted:
		return p.onAccepted(peer, ref)
	case blockchain.AcceptOutcomeMissingInputs:
		return p.onMissingInputs(peer, ref)
	default:
		return p.handleAlreadyKnownOrInvalid(peer, ref, res)
	}
}

func (p *IngressPipeline) onAccepted(peer *PeerCtx, ref *TxRef) IngressResult {
	p.broadcast(ref, peer.Addr)
	p.resolveOrphans(ref.Hash)
	return IngressResult{Outcome: blockchain.AcceptOutcomeAccepted, NewTxid: true, Broadcast: true}
}

func (p *IngressPipeline) onMissingInputs(peer *PeerCtx, ref *TxRef) IngressResult {
	missing := missingOutpoints(ref.Tx, p.chain)

	// Every input this tx names — not just the ones currently missing — is
	// recorded against the peer's known-inventory shadow set, so later
	// inv/getdata bookkeeping for that peer doesn't treat it as unseen.
	for _, in := range ref.Tx.TxIn {
		p.net.AddTxInventoryKnown(peer.Addr, in.PreviousOutPoint.Hash)
	}

	for _, op := range missing {
		if p.rejects.Contains(op.Hash) {
			p.rejects.Insert(ref.Hash)
			return IngressResult{Outcome: blockchain.AcceptOutcomeMissingInputs, RejectCode: RejectInternal}
		}
	}

	for _, op := range missing {
		if !p.existence.Query(op.Hash).Known() {
			p.net.SendInv(peer.Addr, "tx", []wire.Hash{op.Hash})
		}
	}

	p.orphans.Add(ref, peer.Addr, missing)
	return IngressResult{Outcome: blockchain.AcceptOutcomeMissingInputs, Parked: true}
}

// handleAlreadyKnownOrInvalid covers both the "already known" de-dup branch
// and a fresh Invalid validation outcome; the spec's own open question notes
// that an already-known valid transaction still reaches the whitelist
// force-relay gateway below, and this preserves that behavior rather than
// "fixing" it.
func (p *IngressPipeline) handleAlreadyKnownOrInvalid(peer *PeerCtx, ref *TxRef, res *blockchain.AcceptResult) IngressResult {
	var dosScore int
	invalid := res != nil && res.Outcome == blockchain.AcceptOutcomeInvalid
	if invalid {
		dosScore = res.DoSScore
	}

	nonMalleable := isNonMalleable(ref.Tx)

	if invalid {
		if nonMalleable {
			p.rejects.Insert(ref.Hash)
			if estimateRecursiveSize(ref.Tx) < CompactExtraPoolCutoff {
				p.addToExtraPool(ref.Tx)
			}
		} else if estimateRecursiveSize(ref.Tx) < CompactExtraPoolCutoff {
			// Malleable (shielded) transactions never populate the rejects
			// filter, but are still worth keeping for compact reconstruction.
			p.addToExtraPool(ref.Tx)
		}
	}

	broadcastAnyway := peer.Whitelisted && p.whitelistForceRelay && (!invalid || dosScore == 0)
	if broadcastAnyway {
		p.broadcast(ref, peer.Addr)
	}

	code, reason := "", ""
	if invalid {
		code, reason = classifyReject(res)
		if code != "" && code != RejectInternal {
			p.net.SendReject(peer.Addr, "tx", code, reason, ref.Hash[:])
		}
		if dosScore > 0 {
			p.net.Misbehave(peer.Addr, dosScore)
		}
	}

	return IngressResult{
		Outcome:      outcomeOrInvalid(res),
		Broadcast:    broadcastAnyway,
		RejectCode:   code,
		RejectReason: reason,
	}
}

func outcomeOrInvalid(res *blockchain.AcceptResult) blockchain.AcceptOutcome {
	if res == nil {
		return blockchain.AcceptOutcomeAccepted
	}
	return res.Outcome
}

// resolveOrphans drains every orphan that becomes satisfiable, transitively,
// once txid's outputs become spendable. Orphans whose originating peer has
// already been scored this round — or was purged by an eviction hook — are
// left parked rather than touched: ChildrenOf is a read-only lookup, and
// only transactions actually judged this round (accepted or invalid) are
// removed from the pool.
func (p *IngressPipeline) resolveOrphans(txid wire.Hash) {
	misbehaving := make(map[string]struct{})
	handled := make(map[wire.Hash]struct{})

	queue := make([]wire.OutPoint, 0, 2)
	for i := uint32(0); i < maxSeedOutputs; i++ {
		queue = append(queue, wire.OutPoint{Hash: txid, Index: i})
	}

	var toErase []wire.Hash

	for len(queue) > 0 {
		op := queue[0]
		queue = queue[1:]

		for _, childTxid := range p.orphans.ChildrenOf(op) {
			if _, done := handled[childTxid]; done {
				continue
			}

			entry, ok := p.orphans.Get(childTxid)
			if !ok {
				continue
			}

			if _, skip := misbehaving[entry.Peer]; skip {
				continue
			}
			if p.eviction != nil && p.eviction.SkipThisRound(entry.Peer) {
				continue
			}

			if len(missingOutpoints(entry.Ref.Tx, p.chain)) > 0 {
				// Still waiting on something else; leave it parked until one
				// of its other parents is resolved.
				continue
			}

			handled[childTxid] = struct{}{}

			res := p.mempool.AcceptToMemoryPool(entry.Ref.Tx)
			switch res.Outcome {
			case blockchain.AcceptOutcomeAccepted:
				p.broadcast(entry.Ref, entry.Peer)
				for i := uint32(0); i < maxSeedOutputs; i++ {
					queue = append(queue, wire.OutPoint{Hash: entry.Ref.Hash, Index: i})
				}
				toErase = append(toErase, entry.Ref.Hash)
			case blockchain.AcceptOutcomeInvalid:
				toErase = append(toErase, entry.Ref.Hash)
				if res.DoSScore > 0 {
					misbehaving[entry.Peer] = struct{}{}
					p.net.Misbehave(entry.Peer, res.DoSScore)
				}
				if isNonMalleable(entry.Ref.Tx) {
					p.rejects.Insert(entry.Ref.Hash)
				}
			default:
				// The chain view says the inputs are available but the
				// mempool disagrees (e.g. a conflicting spend raced it in
				// between); leave it parked rather than erasing it.
				delete(handled, childTxid)
			}
		}
	}

	for _, txid := range toErase {
		p.orphans.Remove(txid)
	}
}

// SweepExpiredOrphans removes every orphan older than the pool's configured
// expiry, returning how many were dropped. Intended to be called from a
// periodic maintenance loop.
func (p *IngressPipeline) SweepExpiredOrphans(now time.Time) int {
	return len(p.orphans.RemoveExpired(now))
}

// maxSeedOutputs bounds how many output indices of a newly-accepted
// transaction get seeded into the orphan-resolution queue. Orphans almost
// always spend a low output index of their parent. An orphan that spends
// output index maxSeedOutputs or higher is not found through that parent:
// it is resolved only when another of its parents is admitted, and
// otherwise stays parked until it expires or is evicted.
const maxSeedOutputs = 8

func (p *IngressPipeline) broadcast(ref *TxRef, excludeAddr string) {
	p.net.BroadcastInv(excludeAddr, "tx", []wire.Hash{ref.Hash})
}

func (p *IngressPipeline) addToExtraPool(tx *wire.MsgTx) {
	if p.compactExtraPool != nil {
		p.compactExtraPool.Add(tx)
	}
}

// missingOutpoints returns every input outpoint of tx that chain cannot
// currently supply a coin for. Unlike the validator, which stops at the
// first missing input, this walks all of them so the orphan pool's
// secondary index tracks the full dependency set.
func missingOutpoints(tx *wire.MsgTx, chain ChainView) []wire.OutPoint {
	var missing []wire.OutPoint
	for _, in := range tx.TxIn {
		if !chain.HaveCoinInCache(in.PreviousOutPoint) {
			missing = append(missing, in.PreviousOutPoint)
		}
	}
	return missing
}

// isNonMalleable reports whether tx's bytes cannot be altered by a third
// party without changing its hash. Shielded components carry proof bytes
// that could in principle be re-wrapped later, the same way stripped
// witness data can be on a segwit-style chain, so they are excluded.
func isNonMalleable(tx *wire.MsgTx) bool {
	return !tx.IsShielded()
}
