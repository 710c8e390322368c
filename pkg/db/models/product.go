package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Product is a catalog listing. Prices are stored as numeric(10,2).
type Product struct {
	ID                 uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name               string            `gorm:"column:name;not null" json:"name"`
	SKU                string            `gorm:"column:sku;not null;uniqueIndex" json:"sku"`
	URL                string            `gorm:"column:url;not null;uniqueIndex" json:"url"`
	Description        string            `gorm:"column:description;not null;default:''" json:"description"`
	DescriptionShort   string            `gorm:"column:description_short;not null;default:''" json:"descriptionShort"`
	ProductType        enums.ProductType `gorm:"column:product_type;type:product_type;not null" json:"productType"`
	SubscriptionOnly   bool              `gorm:"column:subscription_only;not null;default:false" json:"subscriptionOnly"`
	ReleaseDate        *time.Time        `gorm:"column:release_date" json:"releaseDate,omitempty"`
	BrokeredAt         *string           `gorm:"column:brokered_at" json:"brokeredAt,omitempty"`
	BrokerageProductID *string           `gorm:"column:brokerage_product_id" json:"brokerageProductId,omitempty"`
	Price              decimal.Decimal   `gorm:"column:price;type:numeric(10,2);not null" json:"price"`
	Enabled            bool              `gorm:"column:enabled;not null" json:"enabled"`
	MetaTitle          *string           `gorm:"column:meta_title" json:"metaTitle,omitempty"`
	MetaDescription    *string           `gorm:"column:meta_description" json:"metaDescription,omitempty"`
	MetaKeywords       *string           `gorm:"column:meta_keywords" json:"metaKeywords,omitempty"`
	ThumbnailID        *uuid.UUID        `gorm:"column:thumbnail_id;type:uuid" json:"thumbnailId,omitempty"`
	MainImageID        *uuid.UUID        `gorm:"column:main_image_id;type:uuid" json:"mainImageId,omitempty"`
	LegacyID           *int64            `gorm:"column:legacy_id;uniqueIndex" json:"-"`
	CreatedAt          time.Time         `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt          time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// ProductMedia is an image attached to a product, ordered by Order.
type ProductMedia struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null" json:"productId"`
	URL       string    `gorm:"column:url;not null" json:"url"`
	Caption   string    `gorm:"column:caption;not null;default:''" json:"caption"`
	Order     int       `gorm:"column:sort_order;not null;default:0" json:"order"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`

	PublicURL string `gorm:"-" json:"publicUrl,omitempty"`
}

func (ProductMedia) TableName() string { return "product_media" }

func (m *ProductMedia) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

// ProductFile is a downloadable object; URL is the storage key relative to the
// files prefix ("folder/file.zip").
type ProductFile struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null" json:"productId"`
	URL       string    `gorm:"column:url;not null" json:"url"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (f *ProductFile) BeforeCreate(*gorm.DB) error {
	assignID(&f.ID)
	return nil
}

type Tag struct {
	ID   uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name string    `gorm:"column:name;not null;uniqueIndex" json:"name"`
}

func (t *Tag) BeforeCreate(*gorm.DB) error {
	assignID(&t.ID)
	return nil
}
