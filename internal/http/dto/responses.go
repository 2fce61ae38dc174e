package dto

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

// DeliveryResponse exposes a delivered order's payload to its buyer.
type DeliveryResponse struct {
	OrderID string `json:"order_id"`
	Payload string `json:"payload"`
}
