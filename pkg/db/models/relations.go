package models

import (
	"time"

	"github.com/google/uuid"
)

type ProductTag struct {
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	TagID     uuid.UUID `gorm:"column:tag_id;type:uuid;primaryKey"`
}

type RelatedProduct struct {
	ProductID        uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	RelatedProductID uuid.UUID `gorm:"column:related_product_id;type:uuid;primaryKey"`
}

type SubProduct struct {
	ProductID    uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	SubProductID uuid.UUID `gorm:"column:sub_product_id;type:uuid;primaryKey"`
}

// WishlistItem links a user to a saved product.
type WishlistItem struct {
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (WishlistItem) TableName() string { return "wishlists" }
