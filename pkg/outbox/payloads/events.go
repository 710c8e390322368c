package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderCompletedEvent is emitted once an order's payment is captured, or
// when a free order is created.
type OrderCompletedEvent struct {
	OrderID       uuid.UUID       `json:"orderId"`
	UserID        uuid.UUID       `json:"userId"`
	TransactionID *string         `json:"transactionId,omitempty"`
	CouponCode    *string         `json:"couponCode,omitempty"`
	ProductIDs    []uuid.UUID     `json:"productIds"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	Free          bool            `json:"free"`
	CompletedAt   time.Time       `json:"completedAt"`
}
