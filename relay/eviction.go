package relay

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/cespare/xxhash/v2"

	"obsidian-core/wire"
)

// purgedSlots is the width of the recently-purged-peer bitmap. It's a
// lossy, low-cost hint, not an index, so collisions just mean an
// occasional unnecessary skip rather than a correctness problem.
const purgedSlots = 1024

// EvictionHooks purges orphans that became irrelevant: because the peer
// that sent them disconnected, or because a new block consumed the
// outpoints they depended on.
type EvictionHooks struct {
	orphans *OrphanPool
	rejects *RecentRejectsFilter
	cache   *RelayCache

	purged *bitset.BitSet
}

// NewEvictionHooks wires the hooks to their collaborators.
func NewEvictionHooks(orphans *OrphanPool, rejects *RecentRejectsFilter, cache *RelayCache) *EvictionHooks {
	return &EvictionHooks{
		orphans: orphans,
		rejects: rejects,
		cache:   cache,
		purged:  bitset.New(purgedSlots),
	}
}

// OnPeerDisconnect erases every orphan attributable to peer, returning how
// many were removed. When at least one was removed it also flags the peer's
// slot so orphan-resolution passes skip it until the bitmap is next cleared.
func (h *EvictionHooks) OnPeerDisconnect(peer string) int {
	n := h.orphans.EraseForPeer(peer)
	if n > 0 {
		h.purged.Set(peerSlot(peer))
	}
	return n
}

// SkipThisRound reports whether peer was recently purged and should be
// treated as already-misbehaving for the remainder of this round.
func (h *EvictionHooks) SkipThisRound(peer string) bool {
	return h.purged.Test(peerSlot(peer))
}

// ClearPurged resets the purged-peer bitmap. Called periodically (from the
// same maintenance tick that decays peer scores), not after every single
// orphan-resolution round, so a purge stays sticky long enough to matter
// without accumulating forever.
func (h *EvictionHooks) ClearPurged() {
	h.purged.ClearAll()
}

// OnBlockConnected erases every orphan that depends on any outpoint
// consumed by a transaction in the newly-connected block: they are now
// either satisfied by a confirmed parent, conflicting with it, or
// permanently unresolvable against the new tip. It also resets the
// rejects filter (the tip has moved) and drops the block's own
// transactions from the relay cache, since they no longer need serving out
// of the mempool's shadow.
func (h *EvictionHooks) OnBlockConnected(tip wire.Hash, confirmed []*wire.MsgTx) {
	h.rejects.ResetIfTipChanged(tip)

	for _, tx := range confirmed {
		h.cache.Remove(tx.TxHash())

		for _, in := range tx.TxIn {
			for _, txid := range h.orphans.ChildrenOf(in.PreviousOutPoint) {
				h.orphans.Remove(txid)
			}
		}
	}
}

func peerSlot(peer string) uint {
	return uint(xxhash.Sum64String(peer) % purgedSlots)
}
