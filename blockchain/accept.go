package blockchain

import (
	"obsidian-core/wire"
	"strings"
)

// AcceptOutcome classifies the three-way result of submitting a transaction
// to the mempool: it was admitted, it references outputs we don't have yet,
// or it is simply invalid.
type AcceptOutcome int

const (
	AcceptOutcomeAccepted AcceptOutcome = iota
	AcceptOutcomeMissingInputs
	AcceptOutcomeInvalid
)

// AcceptResult is the outcome of AcceptToMemoryPool.
type AcceptResult struct {
	Outcome  AcceptOutcome
	Err      error
	DoSScore int
	Fee      int64
}

// AcceptToMemoryPool validates tx against the current UTXO set and, if it
// passes, admits it to the mempool (replacing any mempool transaction it
// double-spends). It distinguishes "missing parent outputs" from other
// validation failures so a caller can decide whether the transaction is
// worth holding as an orphan.
func (b *BlockChain) AcceptToMemoryPool(tx *wire.MsgTx) *AcceptResult {
	if err := b.ValidateTransaction(tx, b.utxoSet); err != nil {
		if strings.Contains(err.Error(), "input not found") {
			return &AcceptResult{Outcome: AcceptOutcomeMissingInputs, Err: err}
		}
		return &AcceptResult{Outcome: AcceptOutcomeInvalid, Err: err, DoSScore: dosScoreForValidationError(err)}
	}

	fee, err := b.CalculateTransactionFee(tx, b.utxoSet)
	if err != nil {
		return &AcceptResult{Outcome: AcceptOutcomeInvalid, Err: err, DoSScore: dosScoreForValidationError(err)}
	}

	// A newly-valid transaction may conflict with one already sitting in the
	// pool (same outpoints spent differently); the new one has already been
	// proven valid against the current UTXO set, so it wins.
	b.mempool.RemoveDoubleSpends(tx)

	if err := b.mempool.AddTransaction(tx, b.height, fee); err != nil {
		return &AcceptResult{Outcome: AcceptOutcomeInvalid, Err: err}
	}

	return &AcceptResult{Outcome: AcceptOutcomeAccepted, Fee: fee}
}

// dosScoreForValidationError maps a validation failure onto a misbehavior
// score. Cryptographic and structural violations (a peer could not have
// produced these honestly) score high; policy-only rejections (fee shape)
// score zero so a node running a different fee policy is never banned for it.
func dosScoreForValidationError(err error) int {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "signature"):
		return 100
	case strings.Contains(msg, "negative output value"), strings.Contains(msg, "negative fee"):
		return 100
	case strings.Contains(msg, "input value less than output value"):
		return 100
	case strings.Contains(msg, "fee too high"):
		return 0
	default:
		return 10
	}
}
