package relay

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"obsidian-core/wire"
)

// RelayCacheTTL is how long an accepted transaction stays fetchable by hash
// after it was last advertised, even if it has since left the mempool.
const RelayCacheTTL = 15 * time.Minute

// RelayCacheDefaultSize bounds how many entries the cache holds regardless
// of TTL, as a memory backstop under a burst of short-lived transactions.
const RelayCacheDefaultSize = 50000

// RelayCache lets recently-relayed transactions still be served to a peer's
// getdata a few minutes after they left the mempool (confirmed, evicted, or
// replaced), without holding every transaction the node has ever seen.
type RelayCache struct {
	lru *expirable.LRU[wire.Hash, *TxRef]
}

// NewRelayCache builds a cache with the given entry cap and the standard
// 15-minute TTL.
func NewRelayCache(size int) *RelayCache {
	if size <= 0 {
		size = RelayCacheDefaultSize
	}
	return &RelayCache{lru: expirable.NewLRU[wire.Hash, *TxRef](size, nil, RelayCacheTTL)}
}

// Put records ref as relayed, resetting its TTL if already present.
func (c *RelayCache) Put(ref *TxRef) {
	c.lru.Add(ref.Hash, ref)
}

// Get returns the cached reference for txid, if still live.
func (c *RelayCache) Get(txid wire.Hash) (*TxRef, bool) {
	return c.lru.Get(txid)
}

// Remove evicts txid immediately, e.g. once it has confirmed in a block.
func (c *RelayCache) Remove(txid wire.Hash) {
	c.lru.Remove(txid)
}

// Len returns the number of live entries.
func (c *RelayCache) Len() int {
	return c.lru.Len()
}
