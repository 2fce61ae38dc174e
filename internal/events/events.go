package events

import "context"

// Event types
const (
	EventOrderPaid            = "order_paid"
	EventOrderDelivered       = "order_delivered"
	EventEscrowReleased       = "escrow_released"
	EventEscrowRefunded       = "escrow_refunded"
	EventDisputeOpened        = "dispute_opened"
	EventDisputeMessage       = "dispute_message"
	EventDisputeResolved      = "dispute_resolved"
	EventReplacementIssued    = "replacement_issued"
	EventReplacementEscalated = "replacement_escalated"
	EventProductOutOfStock    = "product_out_of_stock"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, handler func(Event), streams ...string) error
}
