package products

import (
	"io"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SearchFilter holds exact-match product filters. Zero values are ignored.
type SearchFilter struct {
	IDs         []uuid.UUID
	SKU         string
	URL         string
	ProductType enums.ProductType
	Enabled     *bool
	TagID       *uuid.UUID
	Name        string
}

// ProductFull is a product with its tag names and thumbnail URL.
type ProductFull struct {
	models.Product
	Tags         []string `json:"tags"`
	ThumbnailURL *string  `json:"thumbnailUrl"`
}

type CreateInput struct {
	Name               string
	SKU                string
	URL                string
	Description        string
	DescriptionShort   string
	ProductType        enums.ProductType
	SubscriptionOnly   bool
	ReleaseDate        *time.Time
	BrokeredAt         *string
	BrokerageProductID *string
	Price              decimal.Decimal
	Enabled            *bool
	MetaTitle          *string
	MetaDescription    *string
	MetaKeywords       *string
}

// UpdateInput carries optional changes; nil fields are left alone.
type UpdateInput struct {
	Name               *string
	SKU                *string
	URL                *string
	Description        *string
	DescriptionShort   *string
	ProductType        *enums.ProductType
	SubscriptionOnly   *bool
	ReleaseDate        *time.Time
	BrokeredAt         *string
	BrokerageProductID *string
	Price              *decimal.Decimal
	Enabled            *bool
	MetaTitle          *string
	MetaDescription    *string
	MetaKeywords       *string
	ThumbnailID        *uuid.UUID
	MainImageID        *uuid.UUID
}

type MediaUpdateInput struct {
	Caption *string
	Order   *int
}

// Upload is a file received from a multipart form.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}
