package relay

import "obsidian-core/blockchain"

// Reject codes mirror the strings the wire's RejectMessage.CCode already
// carries (network.RejectMessage), so a REJECT built here needs no
// translation at the transport boundary.
const (
	RejectMalformed       = "malformed"
	RejectInvalid         = "invalid"
	RejectDuplicate       = "duplicate"
	RejectNonstandard     = "nonstandard"
	RejectInsufficientFee = "insufficientfee"
	RejectDust            = "dust"

	// RejectInternal never reaches the wire; it marks an outcome this node
	// only needs for its own bookkeeping.
	RejectInternal = "internal"
)

// MaxRejectMessageLength bounds the human-readable reason string sent in a
// REJECT message.
const MaxRejectMessageLength = 111

// classifyReject turns a mempool AcceptResult into the (code, reason) pair a
// REJECT message carries. A zero code means nothing should be sent.
func classifyReject(res *blockchain.AcceptResult) (code string, reason string) {
	if res == nil || res.Outcome == blockchain.AcceptOutcomeAccepted {
		return "", ""
	}
	if res.Outcome == blockchain.AcceptOutcomeMissingInputs {
		return RejectInternal, "missing inputs"
	}

	reason = truncateReason(res.Err)
	switch {
	case res.DoSScore >= 100:
		return RejectInvalid, reason
	case res.DoSScore == 0:
		return RejectInsufficientFee, reason
	default:
		return RejectNonstandard, reason
	}
}

func truncateReason(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > MaxRejectMessageLength {
		msg = msg[:MaxRejectMessageLength]
	}
	return msg
}
