package models

import (
	"time"

	"github.com/google/uuid"
)

// Delivery modes
const (
	DeliveryModeAuto   = "auto"
	DeliveryModeManual = "manual"
)

// Product statuses
const (
	ProductStatusActive     = "active"
	ProductStatusOutOfStock = "out_of_stock"
	ProductStatusHidden     = "hidden"
)

type Product struct {
	ID           uuid.UUID `json:"id"`
	SellerID     uuid.UUID `json:"seller_id"`
	Title        string    `json:"title"`
	Description  *string   `json:"description,omitempty"`
	PriceCents   int64     `json:"price_cents"`
	DeliveryMode string    `json:"delivery_mode"` // auto / manual
	Instructions *string   `json:"instructions,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Credential is a single-use secret in a product's pool. Once IsUsed flips to
// true, UsedByOrderID never changes again.
type Credential struct {
	ID            uuid.UUID  `json:"id"`
	ProductID     uuid.UUID  `json:"product_id"`
	Value         string     `json:"-"`
	VariantTag    *string    `json:"variant_tag,omitempty"`
	IsUsed        bool       `json:"is_used"`
	UsedByOrderID *uuid.UUID `json:"used_by_order_id,omitempty"`
	UsedAt        *time.Time `json:"used_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type PoolStats struct {
	Total     int            `json:"total"`
	Used      int            `json:"used"`
	Available int            `json:"available"`
	ByVariant map[string]int `json:"by_variant,omitempty"` // available per variant tag
}
