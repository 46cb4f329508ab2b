package relay

import (
	"sync"

	"obsidian-core/blockchain"
	"obsidian-core/wire"
)

// fakeMempool is a minimal in-memory stand-in for *blockchain.BlockChain's
// mempool-facing methods, letting the pipelines be exercised without a real
// chain/UTXO set behind them.
type fakeMempool struct {
	mu      sync.Mutex
	pool    map[wire.Hash]*blockchain.TxDesc
	results map[wire.Hash]*blockchain.AcceptResult
	accepts []wire.Hash
}

func newFakeMempool() *fakeMempool {
	return &fakeMempool{
		pool:    make(map[wire.Hash]*blockchain.TxDesc),
		results: make(map[wire.Hash]*blockchain.AcceptResult),
	}
}

func (m *fakeMempool) Exists(txid wire.Hash) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pool[txid]
	return ok
}

func (m *fakeMempool) AcceptToMemoryPool(tx *wire.MsgTx) *blockchain.AcceptResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	txid := tx.TxHash()
	m.accepts = append(m.accepts, txid)

	if res, ok := m.results[txid]; ok {
		if res.Outcome == blockchain.AcceptOutcomeAccepted {
			m.pool[txid] = &blockchain.TxDesc{Tx: tx, FeePerKB: res.Fee}
		}
		return res
	}

	m.pool[txid] = &blockchain.TxDesc{Tx: tx}
	return &blockchain.AcceptResult{Outcome: blockchain.AcceptOutcomeAccepted}
}

func (m *fakeMempool) Info(txid wire.Hash) (*blockchain.TxDesc, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	desc, ok := m.pool[txid]
	return desc, ok
}

func (m *fakeMempool) InfoAll() []*blockchain.TxDesc {
	m.mu.Lock()
	defer m.mu.Unlock()
	descs := make([]*blockchain.TxDesc, 0, len(m.pool))
	for _, d := range m.pool {
		descs = append(descs, d)
	}
	return descs
}

func (m *fakeMempool) setResult(tx *wire.MsgTx, res *blockchain.AcceptResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[tx.TxHash()] = res
}

// fakeChain is a minimal ChainView: a set of spendable outpoints plus a tip.
type fakeChain struct {
	mu      sync.Mutex
	tip     wire.Hash
	coins   map[wire.OutPoint]bool
}

func newFakeChain() *fakeChain {
	return &fakeChain{coins: make(map[wire.OutPoint]bool)}
}

func (c *fakeChain) TipHash() wire.Hash {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tip
}

func (c *fakeChain) setTip(h wire.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tip = h
}

func (c *fakeChain) HaveCoinInCache(op wire.OutPoint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.coins[op]
}

func (c *fakeChain) addCoin(op wire.OutPoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.coins[op] = true
}

// fakeNet records every outbound call the pipelines make, so tests can
// assert on what would have gone out over the wire.
type fakeNet struct {
	mu         sync.Mutex
	invs       []invCall
	broadcasts []broadcastCall
	notFounds  []invCall
	rejects    []rejectCall
	misbehaves []misbehaveCall
	knownInv   []knownInvCall
}

type knownInvCall struct {
	peer string
	txid wire.Hash
}

type invCall struct {
	peer    string
	invType string
	hashes  []wire.Hash
}

type broadcastCall struct {
	exclude string
	invType string
	hashes  []wire.Hash
}

type rejectCall struct {
	peer, message, ccode, reason string
}

type misbehaveCall struct {
	peer  string
	score int
}

func newFakeNet() *fakeNet { return &fakeNet{} }

func (n *fakeNet) SendInv(peer string, invType string, hashes []wire.Hash) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.invs = append(n.invs, invCall{peer, invType, hashes})
	return nil
}

func (n *fakeNet) BroadcastInv(excludeAddr string, invType string, hashes []wire.Hash) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.broadcasts = append(n.broadcasts, broadcastCall{excludeAddr, invType, hashes})
}

func (n *fakeNet) SendNotFound(peer string, invType string, hashes []wire.Hash) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notFounds = append(n.notFounds, invCall{peer, invType, hashes})
	return nil
}

func (n *fakeNet) SendTx(peer string, tx *wire.MsgTx) error { return nil }

func (n *fakeNet) SendReject(peer string, message, ccode, reason string, data []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rejects = append(n.rejects, rejectCall{peer, message, ccode, reason})
	return nil
}

func (n *fakeNet) Misbehave(peer string, score int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.misbehaves = append(n.misbehaves, misbehaveCall{peer, score})
}

func (n *fakeNet) AddTxInventoryKnown(peer string, txid wire.Hash) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.knownInv = append(n.knownInv, knownInvCall{peer, txid})
}

// makeTx builds a minimal transparent transaction spending the given
// outpoints, with a single output, distinguished by nonce so distinct calls
// produce distinct hashes.
func makeTx(nonce byte, spends ...wire.OutPoint) *wire.MsgTx {
	tx := &wire.MsgTx{
		Version:  wire.TxVersion,
		LockTime: uint32(nonce),
		TxOut:    []*wire.TxOut{{Value: 1000, PkScript: []byte{nonce}}},
	}
	for _, op := range spends {
		tx.TxIn = append(tx.TxIn, &wire.TxIn{PreviousOutPoint: op})
	}
	if len(spends) == 0 {
		tx.TxIn = append(tx.TxIn, &wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: uint32(nonce)}})
	}
	return tx
}

func peerCtx(addr string) *PeerCtx {
	return &PeerCtx{Addr: addr}
}
