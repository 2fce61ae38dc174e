package models

import (
	"time"

	"github.com/google/uuid"
)

// Escrow transaction statuses. released and refunded are terminal.
const (
	EscrowStatusFrozen   = "frozen"
	EscrowStatusReleased = "released"
	EscrowStatusRefunded = "refunded"
)

// EscrowTransaction holds a seller's proceeds for exactly one order until a
// trust condition is satisfied (release timer elapsed or dispute resolved).
type EscrowTransaction struct {
	ID            uuid.UUID  `json:"id"`
	OrderID       uuid.UUID  `json:"order_id"`
	SellerID      uuid.UUID  `json:"seller_id"`
	AmountCents   int64      `json:"amount_cents"`
	Status        string     `json:"status"`
	ReleasedCents int64      `json:"released_cents"` // credited to the seller on resolution
	RefundedCents int64      `json:"refunded_cents"` // returned to the buyer on resolution
	CreatedAt     time.Time  `json:"created_at"`
	ReleaseAt     time.Time  `json:"release_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

func (e *EscrowTransaction) IsTerminal() bool {
	return e.Status == EscrowStatusReleased || e.Status == EscrowStatusRefunded
}

// SplitSellerShare divides an escrow amount between seller and buyer by the
// seller's share in basis points. The two parts always sum to amount; the
// remainder cent, if any, goes to the buyer.
func SplitSellerShare(amountCents int64, sellerBPS int) (sellerCents, buyerCents int64) {
	if sellerBPS < 0 {
		sellerBPS = 0
	}
	if sellerBPS > 10000 {
		sellerBPS = 10000
	}
	sellerCents = amountCents * int64(sellerBPS) / 10000
	buyerCents = amountCents - sellerCents
	return sellerCents, buyerCents
}
