package relay

import "obsidian-core/wire"

// ExistenceAnswer summarizes everywhere this node currently knows about a
// txid, so a caller can decide in one shot whether it's worth fetching or
// re-validating.
type ExistenceAnswer struct {
	InMempool        bool
	InOrphanPool     bool
	RecentlyRejected bool
}

// Known reports whether the node has any record of the txid at all.
func (a ExistenceAnswer) Known() bool {
	return a.InMempool || a.InOrphanPool || a.RecentlyRejected
}

// ExistenceOracle answers "have we already seen this txid" across every
// place a transaction can currently live: the mempool, the orphan pool, or
// the recent-rejects filter. Ingress consults it before doing any real
// validation work, so a transaction already accepted, parked, or refused a
// moment ago by another peer's relay of the same data doesn't pay full
// validation cost twice.
type ExistenceOracle struct {
	mempool Mempool
	orphans *OrphanPool
	rejects *RecentRejectsFilter
}

// NewExistenceOracle builds an oracle over the given collaborators.
func NewExistenceOracle(mempool Mempool, orphans *OrphanPool, rejects *RecentRejectsFilter) *ExistenceOracle {
	return &ExistenceOracle{mempool: mempool, orphans: orphans, rejects: rejects}
}

// Query answers existence for txid across all three stores.
func (o *ExistenceOracle) Query(txid wire.Hash) ExistenceAnswer {
	return ExistenceAnswer{
		InMempool:        o.mempool.Exists(txid),
		InOrphanPool:     o.orphans.Has(txid),
		RecentlyRejected: o.rejects.Contains(txid),
	}
}
