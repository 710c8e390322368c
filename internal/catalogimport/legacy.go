// Package catalogimport loads the legacy store's JSON exports into the
// storefront schema.
package catalogimport

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type LegacyImage struct {
	File     string `json:"file"`
	Label    string `json:"label"`
	Position string `json:"position"`
}

type LegacyLink struct {
	LinkURL string `json:"link_url"`
}

type LegacyCategory struct {
	Name string `json:"name"`
}

type LegacyRelation struct {
	LinkedProductID string `json:"linked_product_id"`
}

// LegacyProduct is one row of products.json. Only the fields the importer
// reads are declared.
type LegacyProduct struct {
	EntityID           string           `json:"entity_id"`
	TypeID             string           `json:"type_id"`
	SKU                string           `json:"sku"`
	Status             string           `json:"status"`
	BackstagePassOnly  string           `json:"backstage_pass_only"`
	ExclusiveAt        *string          `json:"exclusive_at"`
	Name               string           `json:"name"`
	URLKey             string           `json:"url_key"`
	MetaTitle          *string          `json:"meta_title"`
	MetaDescription    *string          `json:"meta_description"`
	MetaKeyword        *string          `json:"meta_keyword"`
	Image              string           `json:"image"`
	Thumbnail          string           `json:"thumbnail"`
	ImageLabel         *string          `json:"image_label"`
	ThumbnailLabel     *string          `json:"thumbnail_label"`
	NewsFromDate       string           `json:"news_from_date"`
	Description        string           `json:"description"`
	ShortDescription   string           `json:"short_description"`
	Price              string           `json:"price"`
	BrokerageProductID *string          `json:"brokerage_product_id"`
	Images             []LegacyImage    `json:"images"`
	DownloadableLinks  []LegacyLink     `json:"downloadable_links"`
	Categories         []LegacyCategory `json:"categories"`
	RelatedProducts    []LegacyRelation `json:"related_products"`
}

type LegacyOrder struct {
	EntityID       string   `json:"entity_id"`
	Status         string   `json:"status"`
	CouponCode     string   `json:"coupon_code"`
	DiscountAmount string   `json:"discount_amount"`
	GrandTotal     string   `json:"grand_total"`
	Subtotal       string   `json:"subtotal"`
	CreatedAt      string   `json:"created_at"`
	Items          []string `json:"items"`
}

type LegacyWishlistItem struct {
	ProductID string `json:"product_id"`
}

// LegacyCustomer is one row of customers.json with its orders and wishlist.
type LegacyCustomer struct {
	EntityID  string               `json:"entity_id"`
	Email     string               `json:"email"`
	Firstname string               `json:"firstname"`
	Lastname  string               `json:"lastname"`
	CreatedAt string               `json:"created_at"`
	Orders    []LegacyOrder        `json:"orders"`
	Wishlist  []LegacyWishlistItem `json:"wishlist"`
}

// LoadJSON decodes an export file holding a JSON array of T.
func LoadJSON[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []T
	if err := json.NewDecoder(f).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return out, nil
}

func parseLegacyID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// baseName keeps the part after the last slash. Legacy media paths look
// like "/a/f/afdiana.png".
func baseName(path string) string {
	path = strings.TrimSpace(path)
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

func hasImage(path string) bool {
	path = strings.TrimSpace(path)
	return path != "" && path != "no_selection"
}

func nonEmpty(v *string) *string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	s := strings.TrimSpace(*v)
	return &s
}
