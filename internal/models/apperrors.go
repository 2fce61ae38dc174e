package models

import "errors"

// Error taxonomy for the fulfillment core. Services wrap these with context via
// fmt.Errorf("%w: ..."); handlers map them to HTTP status codes.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidState   = errors.New("invalid state")
	ErrOutOfStock     = errors.New("out of stock")
	ErrManualDelivery = errors.New("manual delivery required")
	ErrLimitExceeded  = errors.New("limit exceeded")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrConflict       = errors.New("conflict")
)
