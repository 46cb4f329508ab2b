package relay

import (
	"hash"
	"sync"

	"github.com/cespare/xxhash/v2"
	bloomfilter "github.com/holiman/bloomfilter/v2"
	"obsidian-core/wire"
)

const (
	// RecentRejectsMaxElements bounds how many rejected txids the filter is
	// sized for before its false-positive rate starts climbing above spec.
	RecentRejectsMaxElements = 120000

	// RecentRejectsFalsePositiveRate is the target false-positive rate at
	// RecentRejectsMaxElements elements.
	RecentRejectsFalsePositiveRate = 1e-6
)

// RecentRejectsFilter remembers txids this node has recently refused to
// admit to the mempool, so the same invalid transaction re-announced a
// moment later by another peer doesn't get fully re-validated. It is reset
// whenever the active chain tip moves, since a rejection reasoned about
// against a stale UTXO view says nothing about validity against the new one.
type RecentRejectsFilter struct {
	mu     sync.Mutex
	filter *bloomfilter.Filter
	tip    wire.Hash
}

// NewRecentRejectsFilter builds a filter sized for RecentRejectsMaxElements
// entries at RecentRejectsFalsePositiveRate.
func NewRecentRejectsFilter() *RecentRejectsFilter {
	return &RecentRejectsFilter{filter: newOptimalFilter()}
}

func newOptimalFilter() *bloomfilter.Filter {
	f, err := bloomfilter.NewOptimal(RecentRejectsMaxElements, RecentRejectsFalsePositiveRate)
	if err != nil {
		// Only non-finite/non-positive parameters make NewOptimal fail, and
		// ours are fixed constants.
		panic(err)
	}
	return f
}

// Insert records txid as rejected.
func (r *RecentRejectsFilter) Insert(txid wire.Hash) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filter.Add(txidHash64(txid))
}

// Contains reports whether txid was (probably) recently rejected. False
// positives are possible by construction; false negatives are not.
func (r *RecentRejectsFilter) Contains(txid wire.Hash) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter.Contains(txidHash64(txid))
}

// ResetIfTipChanged clears the filter the first time it observes a new
// active chain tip.
func (r *RecentRejectsFilter) ResetIfTipChanged(tip wire.Hash) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tip == tip {
		return
	}
	r.tip = tip
	r.filter = newOptimalFilter()
}

func txidHash64(txid wire.Hash) hash.Hash64 {
	h := xxhash.New()
	h.Write(txid[:])
	return h
}
