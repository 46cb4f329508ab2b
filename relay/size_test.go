package relay

import "testing"

func TestEstimateRecursiveSizeGrowsWithOutputScript(t *testing.T) {
	small := makeTx(1)
	withScript := makeTx(2)
	withScript.TxOut[0].PkScript = make([]byte, 200)

	if estimateRecursiveSize(withScript) <= estimateRecursiveSize(small) {
		t.Errorf("expected a larger pkScript to increase the estimated size")
	}
}

func TestEstimateRecursiveSizeBelowCompactCutoffForOrdinaryTx(t *testing.T) {
	tx := makeTx(3)
	if estimateRecursiveSize(tx) >= CompactExtraPoolCutoff {
		t.Errorf("expected an ordinary single-in/single-out tx to be well under the compact-pool cutoff")
	}
}
