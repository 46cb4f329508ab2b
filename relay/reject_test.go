package relay

import (
	"errors"
	"strings"
	"testing"

	"obsidian-core/blockchain"
)

func TestClassifyRejectAccepted(t *testing.T) {
	code, reason := classifyReject(&blockchain.AcceptResult{Outcome: blockchain.AcceptOutcomeAccepted})
	if code != "" || reason != "" {
		t.Fatalf("expected no reject for an accepted result, got %q %q", code, reason)
	}
}

func TestClassifyRejectMissingInputsIsInternal(t *testing.T) {
	code, _ := classifyReject(&blockchain.AcceptResult{Outcome: blockchain.AcceptOutcomeMissingInputs})
	if code != RejectInternal {
		t.Fatalf("expected RejectInternal for missing inputs, got %q", code)
	}
}

func TestClassifyRejectHighDoSScoreIsInvalid(t *testing.T) {
	code, _ := classifyReject(&blockchain.AcceptResult{
		Outcome:  blockchain.AcceptOutcomeInvalid,
		Err:      errors.New("bad signature"),
		DoSScore: 100,
	})
	if code != RejectInvalid {
		t.Fatalf("expected RejectInvalid, got %q", code)
	}
}

func TestClassifyRejectZeroDoSScoreIsInsufficientFee(t *testing.T) {
	code, _ := classifyReject(&blockchain.AcceptResult{
		Outcome:  blockchain.AcceptOutcomeInvalid,
		Err:      errors.New("fee too high"),
		DoSScore: 0,
	})
	if code != RejectInsufficientFee {
		t.Fatalf("expected RejectInsufficientFee, got %q", code)
	}
}

func TestClassifyRejectMidDoSScoreIsNonstandard(t *testing.T) {
	code, _ := classifyReject(&blockchain.AcceptResult{
		Outcome:  blockchain.AcceptOutcomeInvalid,
		Err:      errors.New("some policy violation"),
		DoSScore: 10,
	})
	if code != RejectNonstandard {
		t.Fatalf("expected RejectNonstandard, got %q", code)
	}
}

func TestTruncateReasonRespectsMaxLength(t *testing.T) {
	long := strings.Repeat("x", MaxRejectMessageLength+50)
	reason := truncateReason(errors.New(long))
	if len(reason) != MaxRejectMessageLength {
		t.Fatalf("expected reason truncated to %d bytes, got %d", MaxRejectMessageLength, len(reason))
	}
}

func TestTruncateReasonNilErr(t *testing.T) {
	if r := truncateReason(nil); r != "" {
		t.Fatalf("expected empty reason for nil error, got %q", r)
	}
}
