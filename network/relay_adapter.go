package network

import (
	"obsidian-core/relay"
	"obsidian-core/wire"
)

// relayNetOut adapts *SyncManager's gob-encoded P2P transport to the
// relay.NetOut interface the ingress/egress pipelines talk through.
type relayNetOut struct {
	sm *SyncManager
}

func (r relayNetOut) SendInv(peerAddr string, invType string, hashes []wire.Hash) error {
	r.sm.mu.RLock()
	peer, ok := r.sm.peers[peerAddr]
	r.sm.mu.RUnlock()
	if !ok || !peer.IsConnected() {
		return nil
	}
	return peer.SendMessage(MsgTypeInv, &InvMessage{Type: invType, Hashes: hashes})
}

func (r relayNetOut) BroadcastInv(excludeAddr string, invType string, hashes []wire.Hash) {
	inv := &InvMessage{Type: invType, Hashes: hashes}

	r.sm.mu.RLock()
	defer r.sm.mu.RUnlock()

	for addr, peer := range r.sm.peers {
		if addr != excludeAddr && peer.IsConnected() {
			go peer.SendMessage(MsgTypeInv, inv)
		}
	}
}

func (r relayNetOut) SendNotFound(peerAddr string, invType string, hashes []wire.Hash) error {
	r.sm.mu.RLock()
	peer, ok := r.sm.peers[peerAddr]
	r.sm.mu.RUnlock()
	if !ok || !peer.IsConnected() {
		return nil
	}
	return peer.SendMessage(MsgTypeNotFound, &NotFoundMessage{Type: invType, Hashes: hashes})
}

func (r relayNetOut) SendTx(peerAddr string, tx *wire.MsgTx) error {
	r.sm.mu.RLock()
	peer, ok := r.sm.peers[peerAddr]
	r.sm.mu.RUnlock()
	if !ok || !peer.IsConnected() {
		return nil
	}
	return peer.SendMessage(MsgTypeTx, tx)
}

func (r relayNetOut) SendReject(peerAddr string, message, ccode, reason string, data []byte) error {
	r.sm.mu.RLock()
	peer, ok := r.sm.peers[peerAddr]
	r.sm.mu.RUnlock()
	if !ok {
		return nil
	}
	return r.sm.sendReject(peer, message, ccode, reason, data)
}

func (r relayNetOut) AddTxInventoryKnown(peerAddr string, txid wire.Hash) {
	r.sm.mu.RLock()
	peer, ok := r.sm.peers[peerAddr]
	r.sm.mu.RUnlock()
	if !ok {
		return
	}
	peer.AddKnownInventory(txid)
}

func (r relayNetOut) Misbehave(peerAddr string, score int) {
	r.sm.mu.RLock()
	peer, ok := r.sm.peers[peerAddr]
	r.sm.mu.RUnlock()
	if !ok {
		return
	}
	peer.AdjustScore(-score)
	if peer.GetScore() <= BanThreshold {
		peer.Ban(BanDuration)
	}
}

// peerCtx builds the relay.PeerCtx the core needs for addr, reading the
// feefilter/whitelist/bloom-filter state this package tracks per connection.
func (sm *SyncManager) peerCtx(peer *Peer) *relay.PeerCtx {
	peer.mu.RLock()
	feeFilter := peer.feeFilter
	peer.mu.RUnlock()

	sm.mu.RLock()
	whitelisted := sm.whitelist[peer.addr]
	bloom := sm.peerFilters[peer.addr]
	sm.mu.RUnlock()

	return &relay.PeerCtx{
		Addr:        peer.addr,
		Whitelisted: whitelisted,
		FeeFilter:   feeFilter,
		BloomFilter: bloom,
	}
}

// SetWhitelisted marks addr as whitelisted for relay-policy purposes
// (whitelistrelay / whitelistforcerelay).
func (sm *SyncManager) SetWhitelisted(addr string, whitelisted bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if whitelisted {
		sm.whitelist[addr] = true
	} else {
		delete(sm.whitelist, addr)
	}
}
