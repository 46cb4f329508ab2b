package relay

import (
	"math/rand"
	"sync"
	"time"

	"obsidian-core/wire"
)

// OrphanPool default bounds, used when a caller passes zero. They equal
// blockchain.MaxOrphanTxs and blockchain.OrphanTxExpiry; the entry bound is
// two orders of magnitude below blockchain.MaxMempoolSize, since orphans are
// unvalidated and cheaper to hold than confirmed-fee mempool entries.
const (
	DefaultMaxOrphans  = 100
	DefaultOrphanExpiry = 20 * time.Minute
)

// OrphanEntry is a transaction parked because one or more of its inputs
// reference outputs the node doesn't have yet (typically an unconfirmed
// parent it hasn't seen).
type OrphanEntry struct {
	Ref            *TxRef
	Peer           string
	Added          time.Time
	MissingParents map[wire.OutPoint]struct{}
}

// OrphanPool holds not-yet-connectable transactions, indexed both by the
// outpoints they're waiting on (so accepting a transaction can cheaply find
// everything that depends on it) and by the peer that sent them (so a
// peer's orphans can be dropped in one pass on disconnect).
//
// Overflow eviction picks a uniformly random victim rather than the oldest
// entry: weighting eviction by age lets an attacker grind a predictable
// victim out of the pool by timing cheap orphan submissions, which defeats
// the point of holding orphans at all.
type OrphanPool struct {
	mu         sync.Mutex
	maxOrphans int
	expiry     time.Duration

	orphans map[wire.Hash]*OrphanEntry
	byPrev  map[wire.OutPoint]map[wire.Hash]struct{}
	byPeer  map[string]map[wire.Hash]struct{}
}

// NewOrphanPool builds an empty pool. maxOrphans <= 0 uses DefaultMaxOrphans,
// expiry <= 0 uses DefaultOrphanExpiry.
func NewOrphanPool(maxOrphans int, expiry time.Duration) *OrphanPool {
	if maxOrphans <= 0 {
		maxOrphans = DefaultMaxOrphans
	}
	if expiry <= 0 {
		expiry = DefaultOrphanExpiry
	}
	return &OrphanPool{
		maxOrphans: maxOrphans,
		expiry:     expiry,
		orphans:    make(map[wire.Hash]*OrphanEntry),
		byPrev:     make(map[wire.OutPoint]map[wire.Hash]struct{}),
		byPeer:     make(map[string]map[wire.Hash]struct{}),
	}
}

// Add parks ref as an orphan waiting on missing. Returns false if ref's
// txid is already in the pool (caller should treat this as a no-op, not an
// error).
func (p *OrphanPool) Add(ref *TxRef, peer string, missing []wire.OutPoint) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.orphans[ref.Hash]; exists {
		return false
	}

	if len(p.orphans) >= p.maxOrphans {
		p.evictOneLocked()
	}

	missingSet := make(map[wire.OutPoint]struct{}, len(missing))
	for _, op := range missing {
		missingSet[op] = struct{}{}
		if p.byPrev[op] == nil {
			p.byPrev[op] = make(map[wire.Hash]struct{})
		}
		p.byPrev[op][ref.Hash] = struct{}{}
	}

	p.orphans[ref.Hash] = &OrphanEntry{
		Ref:            ref,
		Peer:           peer,
		Added:          time.Now(),
		MissingParents: missingSet,
	}

	if p.byPeer[peer] == nil {
		p.byPeer[peer] = make(map[wire.Hash]struct{})
	}
	p.byPeer[peer][ref.Hash] = struct{}{}

	return true
}

// Has reports whether txid is currently parked.
func (p *OrphanPool) Has(txid wire.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.orphans[txid]
	return ok
}

// Get returns the entry for txid, if parked.
func (p *OrphanPool) Get(txid wire.Hash) (*OrphanEntry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.orphans[txid]
	return entry, ok
}

// Count returns the number of parked orphans.
func (p *OrphanPool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.orphans)
}

// Remove drops txid unconditionally (e.g. it was just promoted out, or its
// parent was invalidated).
func (p *OrphanPool) Remove(txid wire.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(txid)
}

// EraseForPeer drops every orphan that arrived from peer, returning how many
// were removed. Called when a peer disconnects: its orphans can no longer
// be traced back to a source worth penalizing, and holding them serves no
// purpose.
func (p *OrphanPool) EraseForPeer(peer string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.byPeer[peer]
	if !ok {
		return 0
	}
	txids := make([]wire.Hash, 0, len(set))
	for txid := range set {
		txids = append(txids, txid)
	}
	for _, txid := range txids {
		p.removeLocked(txid)
	}
	return len(txids)
}

// RemoveExpired drops every orphan older than the pool's expiry, returning
// their txids.
func (p *OrphanPool) RemoveExpired(now time.Time) []wire.Hash {
	p.mu.Lock()
	defer p.mu.Unlock()

	var expired []wire.Hash
	for txid, entry := range p.orphans {
		if now.Sub(entry.Added) > p.expiry {
			expired = append(expired, txid)
		}
	}
	for _, txid := range expired {
		p.removeLocked(txid)
	}
	return expired
}

// SatisfyOutpoint marks op as now available — typically because the
// transaction that creates it was just accepted into the mempool — and
// returns every orphan that is now fully satisfied, removing them from the
// pool in the same step. The caller is responsible for re-attempting
// admission of the returned entries and re-parking or rejecting them as
// appropriate.
func (p *OrphanPool) SatisfyOutpoint(op wire.OutPoint) []*OrphanEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.byPrev[op]
	if !ok {
		return nil
	}

	var ready []*OrphanEntry
	for txid := range set {
		entry, ok := p.orphans[txid]
		if !ok {
			continue
		}
		delete(entry.MissingParents, op)
		if len(entry.MissingParents) == 0 {
			ready = append(ready, entry)
		}
	}
	for _, entry := range ready {
		p.removeLocked(entry.Ref.Hash)
	}
	return ready
}

// ChildrenOf returns the txids of every orphan that lists op among its
// missing parents, without removing or otherwise mutating anything. Used
// when an outpoint's fate is decided unconditionally by a new block rather
// than by one of its dependents being newly satisfied.
func (p *OrphanPool) ChildrenOf(op wire.OutPoint) []wire.Hash {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.byPrev[op]
	if !ok {
		return nil
	}
	txids := make([]wire.Hash, 0, len(set))
	for txid := range set {
		txids = append(txids, txid)
	}
	return txids
}

func (p *OrphanPool) removeLocked(txid wire.Hash) {
	entry, ok := p.orphans[txid]
	if !ok {
		return
	}

	for op := range entry.MissingParents {
		if set, ok := p.byPrev[op]; ok {
			delete(set, txid)
			if len(set) == 0 {
				delete(p.byPrev, op)
			}
		}
	}

	if set, ok := p.byPeer[entry.Peer]; ok {
		delete(set, txid)
		if len(set) == 0 {
			delete(p.byPeer, entry.Peer)
		}
	}

	delete(p.orphans, txid)
}

// evictOneLocked drops a uniformly random orphan. Go's map iteration order
// is already randomized per-run, so picking the n-th entry of one walk
// after rolling n is effectively a second, independent randomization layer
// on top of that — cheap insurance against an attacker who has found some
// way to bias iteration order.
func (p *OrphanPool) evictOneLocked() {
	if len(p.orphans) == 0 {
		return
	}
	skip := rand.Intn(len(p.orphans))
	i := 0
	for txid := range p.orphans {
		if i == skip {
			p.removeLocked(txid)
			return
		}
		i++
	}
}
