package models

import (
	"time"

	"github.com/google/uuid"
)

// Dispute statuses
const (
	DisputeStatusOpen           = "open"
	DisputeStatusSellerResponse = "seller_response"
	DisputeStatusAdminReview    = "admin_review"
	DisputeStatusResolved       = "resolved"
	DisputeStatusClosed         = "closed"
)

// Dispute reasons
const (
	DisputeReasonNotReceived           = "not_received"
	DisputeReasonNotAsDescribed        = "not_as_described"
	DisputeReasonCredentialInvalid     = "credential_invalid"
	DisputeReasonUnresolvedReplacement = "unresolved_replacement"
	DisputeReasonOther                 = "other"
)

// Dispute resolutions
const (
	ResolutionBuyerWin  = "buyer_win"
	ResolutionSellerWin = "seller_win"
	ResolutionSplit     = "split"
)

// Valid dispute transitions: from -> []to. resolved and closed are terminal.
// Any non-terminal dispute can be force-moved to admin_review or withdrawn by
// the buyer (closed).
var ValidDisputeTransitions = map[string][]string{
	DisputeStatusOpen:           {DisputeStatusSellerResponse, DisputeStatusAdminReview, DisputeStatusResolved, DisputeStatusClosed},
	DisputeStatusSellerResponse: {DisputeStatusAdminReview, DisputeStatusResolved, DisputeStatusClosed},
	DisputeStatusAdminReview:    {DisputeStatusResolved, DisputeStatusClosed},
	DisputeStatusResolved:       {},
	DisputeStatusClosed:         {},
}

func IsValidDisputeTransition(from, to string) bool {
	allowed, ok := ValidDisputeTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

func IsValidDisputeReason(reason string) bool {
	switch reason {
	case DisputeReasonNotReceived, DisputeReasonNotAsDescribed,
		DisputeReasonCredentialInvalid, DisputeReasonUnresolvedReplacement,
		DisputeReasonOther:
		return true
	}
	return false
}

func IsValidResolution(resolution string) bool {
	switch resolution {
	case ResolutionBuyerWin, ResolutionSellerWin, ResolutionSplit:
		return true
	}
	return false
}

func IsTerminalDisputeStatus(status string) bool {
	return status == DisputeStatusResolved || status == DisputeStatusClosed
}

type Dispute struct {
	ID         uuid.UUID  `json:"id"`
	OrderID    uuid.UUID  `json:"order_id"`
	BuyerID    uuid.UUID  `json:"buyer_id"`
	SellerID   uuid.UUID  `json:"seller_id"`
	Reason     string     `json:"reason"`
	Status     string     `json:"status"`
	Resolution *string    `json:"resolution,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy *uuid.UUID `json:"resolved_by,omitempty"`
}

// DisputeMessage is one entry in a dispute's append-only message sequence.
type DisputeMessage struct {
	ID          uuid.UUID `json:"id"`
	DisputeID   uuid.UUID `json:"dispute_id"`
	SenderID    uuid.UUID `json:"sender_id"`
	SenderRole  string    `json:"sender_role"` // buyer / seller / admin
	SenderName  string    `json:"sender_name"`
	Content     string    `json:"content"`
	Attachments []string  `json:"attachments,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
