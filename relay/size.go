package relay

import "obsidian-core/wire"

// CompactExtraPoolCutoff is the recursive serialized-size threshold below
// which a transaction that didn't make it into the mempool is still worth
// handing to the compact-block extra pool for reconstruction purposes.
const CompactExtraPoolCutoff = 100000

// estimateRecursiveSize approximates a transaction's wire size, including
// its inputs' signature scripts. It intentionally mirrors the mempool's own
// simplified estimator rather than introducing a second, more precise
// serializer just for this cutoff check.
func estimateRecursiveSize(tx *wire.MsgTx) int {
	size := 10
	for _, in := range tx.TxIn {
		size += 36 + 1 + len(in.SignatureScript) + 4
	}
	for _, out := range tx.TxOut {
		size += 8 + 1 + len(out.PkScript)
	}
	return size
}
