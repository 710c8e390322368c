package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Order is a purchase. Totals are frozen when the order is started.
type Order struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID        uuid.UUID         `gorm:"column:user_id;type:uuid;not null" json:"userId"`
	Status        enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'" json:"status"`
	Subtotal      decimal.Decimal   `gorm:"column:subtotal;type:numeric(10,2);not null" json:"subtotal"`
	Discount      decimal.Decimal   `gorm:"column:discount;type:numeric(10,2);not null" json:"discount"`
	Total         decimal.Decimal   `gorm:"column:total;type:numeric(10,2);not null" json:"total"`
	CouponCode    *string           `gorm:"column:coupon_code" json:"couponCode,omitempty"`
	TransactionID *string           `gorm:"column:transaction_id" json:"transactionId,omitempty"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// IsComplete reports whether payment has been captured.
func (o Order) IsComplete() bool {
	return o.Status == enums.OrderStatusComplete
}

// OrderLineItem is one purchased product on an order.
type OrderLineItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null" json:"orderId"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null" json:"productId"`
	Quantity  int       `gorm:"column:quantity;not null;default:1" json:"quantity"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (li *OrderLineItem) BeforeCreate(*gorm.DB) error {
	assignID(&li.ID)
	return nil
}
