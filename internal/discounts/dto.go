package discounts

import (
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// SearchFilter narrows discount searches; empty fields are ignored.
type SearchFilter struct {
	Type       enums.DiscountType
	CouponCode string
	Name       string
}

type CreateInput struct {
	Name       string             `json:"name" validate:"required,max=200"`
	Type       enums.DiscountType `json:"type" validate:"required,oneof=product cart"`
	Amount     decimal.Decimal    `json:"amount"`
	CouponCode *string            `json:"couponCode,omitempty" validate:"omitempty,max=64"`
	Permission *string            `json:"permission,omitempty" validate:"omitempty,max=64"`
}

// UpdateInput is a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Name       *string             `json:"name,omitempty" validate:"omitempty,max=200"`
	Type       *enums.DiscountType `json:"type,omitempty" validate:"omitempty,oneof=product cart"`
	Amount     *decimal.Decimal    `json:"amount,omitempty"`
	CouponCode *string             `json:"couponCode,omitempty" validate:"omitempty,max=64"`
	Permission *string             `json:"permission,omitempty" validate:"omitempty,max=64"`
}
