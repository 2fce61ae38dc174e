package models

import "testing"

func TestIsValidDisputeTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		// Happy path
		{DisputeStatusOpen, DisputeStatusSellerResponse, true},
		{DisputeStatusOpen, DisputeStatusAdminReview, true},
		{DisputeStatusOpen, DisputeStatusResolved, true},
		{DisputeStatusSellerResponse, DisputeStatusAdminReview, true},
		{DisputeStatusSellerResponse, DisputeStatusResolved, true},
		{DisputeStatusAdminReview, DisputeStatusResolved, true},

		// Buyer withdrawal from any non-terminal state
		{DisputeStatusOpen, DisputeStatusClosed, true},
		{DisputeStatusSellerResponse, DisputeStatusClosed, true},
		{DisputeStatusAdminReview, DisputeStatusClosed, true},

		// Terminal states never move
		{DisputeStatusResolved, DisputeStatusOpen, false},
		{DisputeStatusResolved, DisputeStatusClosed, false},
		{DisputeStatusClosed, DisputeStatusOpen, false},
		{DisputeStatusClosed, DisputeStatusResolved, false},

		// No backwards movement
		{DisputeStatusSellerResponse, DisputeStatusOpen, false},
		{DisputeStatusAdminReview, DisputeStatusOpen, false},
		{DisputeStatusAdminReview, DisputeStatusSellerResponse, false},

		{"nonexistent", DisputeStatusOpen, false},
		{DisputeStatusOpen, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidDisputeTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidDisputeTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestTerminalDisputeStatusesHaveNoTransitions(t *testing.T) {
	terminal := []string{DisputeStatusResolved, DisputeStatusClosed}
	for _, status := range terminal {
		if !IsTerminalDisputeStatus(status) {
			t.Errorf("IsTerminalDisputeStatus(%q) = false, want true", status)
		}
		transitions := ValidDisputeTransitions[status]
		if len(transitions) != 0 {
			t.Errorf("terminal status %q should have no transitions, got %v", status, transitions)
		}
	}
}

func TestIsValidDisputeReason(t *testing.T) {
	valid := []string{
		DisputeReasonNotReceived, DisputeReasonNotAsDescribed,
		DisputeReasonCredentialInvalid, DisputeReasonUnresolvedReplacement,
		DisputeReasonOther,
	}
	for _, r := range valid {
		if !IsValidDisputeReason(r) {
			t.Errorf("IsValidDisputeReason(%q) = false, want true", r)
		}
	}
	if IsValidDisputeReason("buyer_remorse") {
		t.Error("IsValidDisputeReason accepted unknown reason")
	}
}

func TestIsValidResolution(t *testing.T) {
	for _, r := range []string{ResolutionBuyerWin, ResolutionSellerWin, ResolutionSplit} {
		if !IsValidResolution(r) {
			t.Errorf("IsValidResolution(%q) = false, want true", r)
		}
	}
	if IsValidResolution("draw") {
		t.Error("IsValidResolution accepted unknown resolution")
	}
}
