package models

import (
	"time"

	"github.com/google/uuid"
)

// Key replacement statuses
const (
	ReplacementStatusApproved  = "approved"
	ReplacementStatusRejected  = "rejected"
	ReplacementStatusEscalated = "escalated"
)

// KeyReplacement records one re-issuance attempt for a delivered order. The
// number of rows per order is bounded by the seller's maxReplacementsPerOrder;
// past the bound a dispute is opened instead.
type KeyReplacement struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"order_id"`
	SellerID  uuid.UUID `json:"seller_id"`
	Reason    string    `json:"reason"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
