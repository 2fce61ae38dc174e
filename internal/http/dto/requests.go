package dto

// PaymentWebhookRequest is the loose JSON posted by the payment provider. The
// handler validates and converts it into a typed event before anything else
// touches it.
type PaymentWebhookRequest struct {
	EventType   string `json:"event_type"` // payment_confirmed
	OrderID     string `json:"order_id"`
	AmountCents int64  `json:"amount_cents"`
	ProviderRef string `json:"provider_ref,omitempty"`
}

type IssueTokenRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"` // buyer / seller / admin
}

type CreateOrderRequest struct {
	ProductID  string  `json:"product_id"`
	VariantTag *string `json:"variant_tag,omitempty"`
}

type OpenDisputeRequest struct {
	OrderID     string `json:"order_id"`
	Reason      string `json:"reason"`
	Description string `json:"description,omitempty"`
	SenderName  string `json:"sender_name,omitempty"`
}

type DisputeMessageRequest struct {
	Content     string   `json:"content"`
	SenderName  string   `json:"sender_name,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
}

type ResolveDisputeRequest struct {
	Resolution string `json:"resolution"` // buyer_win / seller_win / split
	Note       string `json:"note,omitempty"`
}

type RequestReplacementRequest struct {
	Reason string `json:"reason"`
}

type AddCredentialsRequest struct {
	Values     []string `json:"values"`
	VariantTag *string  `json:"variant_tag,omitempty"`
}

type CreateProductRequest struct {
	Title        string  `json:"title"`
	Description  *string `json:"description,omitempty"`
	PriceCents   int64   `json:"price_cents"`
	DeliveryMode string  `json:"delivery_mode"` // auto / manual
	Instructions *string `json:"instructions,omitempty"`
}

type CreateSellerRequest struct {
	UserID      string `json:"user_id"` // id in the external identity service
	DisplayName string `json:"display_name"`
}

type UpdateTrustPolicyRequest struct {
	EscrowDays              *int `json:"escrow_days,omitempty"`
	MaxReplacementsPerOrder *int `json:"max_replacements_per_order,omitempty"`
}

type SetSellerFlagRequest struct {
	Value bool `json:"value"`
}
