package models

import "testing"

func TestSplitSellerShare(t *testing.T) {
	tests := []struct {
		name       string
		amount     int64
		bps        int
		wantSeller int64
		wantBuyer  int64
	}{
		{"even split", 10000, 5000, 5000, 5000},
		{"remainder cent goes to buyer", 101, 5000, 50, 51},
		{"full seller", 10000, 10000, 10000, 0},
		{"full buyer", 10000, 0, 0, 10000},
		{"bps clamped high", 500, 12000, 500, 0},
		{"bps clamped low", 500, -1, 0, 500},
		{"zero amount", 0, 5000, 0, 0},
		{"one cent", 1, 5000, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seller, buyer := SplitSellerShare(tt.amount, tt.bps)
			if seller != tt.wantSeller || buyer != tt.wantBuyer {
				t.Errorf("SplitSellerShare(%d, %d) = (%d, %d), want (%d, %d)",
					tt.amount, tt.bps, seller, buyer, tt.wantSeller, tt.wantBuyer)
			}
			if seller+buyer != tt.amount {
				t.Errorf("split of %d leaks money: %d + %d = %d",
					tt.amount, seller, buyer, seller+buyer)
			}
		})
	}
}

func TestEscrowTerminalStates(t *testing.T) {
	for _, status := range []string{EscrowStatusReleased, EscrowStatusRefunded} {
		e := EscrowTransaction{Status: status}
		if !e.IsTerminal() {
			t.Errorf("IsTerminal() = false for %q, want true", status)
		}
	}
	e := EscrowTransaction{Status: EscrowStatusFrozen}
	if e.IsTerminal() {
		t.Error("IsTerminal() = true for frozen, want false")
	}
}
