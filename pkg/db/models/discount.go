package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Discount is a percentage reduction. Amount is a fraction in [0,1].
// CouponCode and Permission optionally gate when it applies.
type Discount struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name       string             `gorm:"column:name;not null" json:"name"`
	Type       enums.DiscountType `gorm:"column:type;type:discount_type;not null" json:"type"`
	Amount     decimal.Decimal    `gorm:"column:amount;type:numeric(5,4);not null" json:"amount"`
	CouponCode *string            `gorm:"column:coupon_code" json:"couponCode,omitempty"`
	Permission *string            `gorm:"column:permission" json:"permission,omitempty"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (d *Discount) BeforeCreate(*gorm.DB) error {
	assignID(&d.ID)
	return nil
}
