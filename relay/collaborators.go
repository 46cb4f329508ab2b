// Package relay implements the transaction ingress and relay core: the
// admission gate a node runs incoming transactions through before they ever
// touch the mempool, plus the inventory/fetch machinery that decides what
// gets advertised back out to peers.
//
// The core treats the mempool, the chain's UTXO view, and the network layer
// as external collaborators, reached only through the narrow interfaces
// below. That keeps the pipelines testable with fakes and keeps this
// package from growing a dependency on any one wire transport.
package relay

import (
	"obsidian-core/blockchain"
	"obsidian-core/wire"
)

// TxRef is an immutable, content-addressed handle on a transaction. Once
// constructed its Hash never needs recomputing; callers pass it around
// instead of re-hashing wire.MsgTx at every step of the pipeline.
type TxRef struct {
	Tx   *wire.MsgTx
	Hash wire.Hash
}

// NewTxRef wraps tx, computing its hash once.
func NewTxRef(tx *wire.MsgTx) *TxRef {
	return &TxRef{Tx: tx, Hash: tx.TxHash()}
}

// PeerCtx carries the per-connection state the relay core needs about the
// peer a transaction arrived from, or that inventory is being built for.
type PeerCtx struct {
	Addr        string
	Whitelisted bool
	FeeFilter   int64 // sat/kB floor requested via feefilter, 0 if none
	BloomFilter *wire.BloomFilter
}

// Mempool is the subset of blockchain.Mempool/BlockChain this package
// depends on. It is satisfied by *blockchain.BlockChain.
type Mempool interface {
	Exists(txid wire.Hash) bool
	AcceptToMemoryPool(tx *wire.MsgTx) *blockchain.AcceptResult
	Info(txid wire.Hash) (*blockchain.TxDesc, bool)
	InfoAll() []*blockchain.TxDesc
}

// ChainView is the subset of chain-state this package needs to decide
// whether a transaction's inputs are currently spendable.
type ChainView interface {
	TipHash() wire.Hash
	HaveCoinInCache(op wire.OutPoint) bool
}

// NetOut is how the relay core talks back to the wire. Implementations
// adapt *network.SyncManager's gob-encoded P2P transport.
type NetOut interface {
	// SendInv advertises hashes to a single, specific peer.
	SendInv(peer string, invType string, hashes []wire.Hash) error
	// BroadcastInv advertises hashes to every connected peer except
	// excludeAddr (typically the peer the transaction arrived from).
	BroadcastInv(excludeAddr string, invType string, hashes []wire.Hash)
	SendNotFound(peer string, invType string, hashes []wire.Hash) error
	SendTx(peer string, tx *wire.MsgTx) error
	SendReject(peer string, message, ccode, reason string, data []byte) error
	Misbehave(peer string, score int)
	// AddTxInventoryKnown records txid as already known to peer, covering
	// every input a parked transaction names (not just the ones still
	// missing), so the shadow set this peer's future inv/getdata traffic is
	// checked against stays complete.
	AddTxInventoryKnown(peer string, txid wire.Hash)
}
