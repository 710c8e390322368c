package orders

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// StartInput is the cart a customer checks out.
type StartInput struct {
	ProductIDs []uuid.UUID
	CouponCode string
}

// Started is a pending order plus the URL the buyer approves payment at.
type Started struct {
	models.Order
	ApproveURL string `json:"approveUrl,omitempty"`
}

// OrderFull is an order with its purchased products and downloads.
type OrderFull struct {
	models.Order
	Items []models.Product     `json:"items"`
	Files []models.ProductFile `json:"files"`
}

// CreateInput is the admin shape for recording an order directly.
type CreateInput struct {
	Status        enums.OrderStatus
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	CouponCode    *string
	TransactionID *string
	ProductIDs    []uuid.UUID
}

// UpdateInput only touches fields that are set. Totals are frozen.
type UpdateInput struct {
	Status        *enums.OrderStatus
	CouponCode    *string
	TransactionID *string
}
