package catalogimport

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/security"
)

var cheapArgon = security.Params{Memory: 8, Time: 1, Parallelism: 1, SaltLen: 8, KeyLen: 16}

func strPtr(v string) *string { return &v }

func newImporter(t *testing.T) (*Importer, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	require.NoError(t, conn.Create(&models.Role{Name: "customer"}).Error)
	im, err := New(conn, Options{
		Password: cheapArgon,
		Bundles: []BundleRule{
			{Bundle: "Starter Bundle", Matches: []SubProductMatch{{SKU: "SKU-BRUSH"}}},
		},
	}, logger.New(logger.Options{ServiceName: "import-test", Output: io.Discard}))
	require.NoError(t, err)
	return im, conn
}

func legacyCatalog() []LegacyProduct {
	return []LegacyProduct{
		{
			EntityID:          "10",
			TypeID:            "downloadable",
			SKU:               "SKU-BRUSH1",
			Status:            "1",
			BackstagePassOnly: "1",
			ExclusiveAt:       strPtr("144"),
			Name:              "Brush Pack",
			URLKey:            "brush-pack",
			Description:       "<p>Hello <strong>world</strong></p>",
			Price:             "12.499",
			NewsFromDate:      "2019-04-01 00:00:00",
			Thumbnail:         "/b/r/thumb.png",
			Image:             "/b/r/main.png",
			Images: []LegacyImage{
				{File: "/b/r/main.png", Label: "Main", Position: "1"},
				{File: "/b/r/alt.png", Label: "Alt", Position: "2"},
			},
			DownloadableLinks: []LegacyLink{{LinkURL: "brushes/pack.zip"}, {LinkURL: ""}},
			Categories:        []LegacyCategory{{Name: "Brushes"}},
			RelatedProducts:   []LegacyRelation{{LinkedProductID: "11"}, {LinkedProductID: "999"}},
		},
		{
			EntityID: "11",
			TypeID:   "grouped",
			SKU:      "SKU-BRUSH2",
			Status:   "0",
			Name:     "Brush Pack Two",
			URLKey:   "brush-pack",
			Price:    "5",
			Image:    "no_selection",
		},
		{
			EntityID: "12",
			TypeID:   "grouped",
			SKU:      "SKU-STARTER",
			Status:   "1",
			Name:     "Starter Bundle",
			URLKey:   "starter",
			Price:    "0",
		},
	}
}

func TestImportProducts(t *testing.T) {
	im, conn := newImporter(t)
	ctx := context.Background()

	summary, err := im.ImportProducts(ctx, legacyCatalog())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Products)
	assert.Equal(t, 3, summary.Media)
	assert.Equal(t, 1, summary.Files)
	assert.Equal(t, 1, summary.Related)
	assert.Equal(t, 2, summary.SubProducts)

	var brush models.Product
	require.NoError(t, conn.Where("sku = ?", "SKU-BRUSH1").Take(&brush).Error)
	assert.Equal(t, enums.ProductTypeDigital, brush.ProductType)
	assert.Equal(t, "Hello **world**", brush.Description)
	assert.Equal(t, "12.49", brush.Price.StringFixed(2))
	assert.True(t, brush.Enabled)
	assert.True(t, brush.SubscriptionOnly)
	require.NotNil(t, brush.BrokeredAt)
	assert.Equal(t, "HiveWire", *brush.BrokeredAt)
	require.NotNil(t, brush.ReleaseDate)
	require.NotNil(t, brush.ThumbnailID)
	require.NotNil(t, brush.MainImageID)
	require.NotNil(t, brush.LegacyID)
	assert.Equal(t, int64(10), *brush.LegacyID)

	var main models.ProductMedia
	require.NoError(t, conn.Where("id = ?", *brush.MainImageID).Take(&main).Error)
	assert.Equal(t, "main.png", main.URL)

	var second models.Product
	require.NoError(t, conn.Where("sku = ?", "SKU-BRUSH2").Take(&second).Error)
	assert.Equal(t, "brush-pack-SKU-BRUSH2", second.URL)
	assert.Equal(t, enums.ProductTypeGrouped, second.ProductType)
	assert.False(t, second.Enabled)
	assert.Nil(t, second.MainImageID)

	var tagLinks int64
	require.NoError(t, conn.Table("product_tags").Where("product_id = ?", brush.ID).Count(&tagLinks).Error)
	assert.Equal(t, int64(1), tagLinks)
}

func TestImportProductsSkipsExistingSKUs(t *testing.T) {
	im, _ := newImporter(t)
	ctx := context.Background()

	_, err := im.ImportProducts(ctx, legacyCatalog())
	require.NoError(t, err)

	again, err := im.ImportProducts(ctx, legacyCatalog())
	require.NoError(t, err)
	assert.Equal(t, 0, again.Products)
	assert.Equal(t, 3, again.Skipped)
}

func TestImportCustomers(t *testing.T) {
	im, conn := newImporter(t)
	ctx := context.Background()
	_, err := im.ImportProducts(ctx, legacyCatalog())
	require.NoError(t, err)

	customers := []LegacyCustomer{
		{
			EntityID:  "501",
			Email:     " Buyer@Example.com ",
			Firstname: "Ada",
			Lastname:  "Buyer",
			Orders: []LegacyOrder{{
				EntityID:       "9001",
				Subtotal:       "17.49",
				DiscountAmount: "-2.00",
				GrandTotal:     "15.49",
				CouponCode:     "SPRING",
				CreatedAt:      "2020-01-02 03:04:05",
				Items:          []string{"SKU-BRUSH1", "SKU-BRUSH2", "SKU-GONE"},
			}},
			Wishlist: []LegacyWishlistItem{{ProductID: "12"}, {ProductID: "12"}, {ProductID: "404"}},
		},
		{EntityID: "502", Email: "buyer@example.com"},
	}

	summary, err := im.ImportCustomers(ctx, customers)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Customers)
	assert.Equal(t, 1, summary.Orders)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.WishlistItems)

	var user models.User
	require.NoError(t, conn.Where("email = ?", "buyer@example.com").Take(&user).Error)
	assert.True(t, user.MustUpdatePassword)
	assert.NotEmpty(t, user.PasswordHash)

	var roles int64
	require.NoError(t, conn.Table("user_roles").Where("user_id = ?", user.ID).Count(&roles).Error)
	assert.Equal(t, int64(1), roles)

	var order models.Order
	require.NoError(t, conn.Where("user_id = ?", user.ID).Take(&order).Error)
	assert.Equal(t, enums.OrderStatusComplete, order.Status)
	assert.Equal(t, "2.00", order.Discount.StringFixed(2))
	assert.Equal(t, "15.49", order.Total.StringFixed(2))
	assert.Equal(t, 2020, order.CreatedAt.Year())

	var items int64
	require.NoError(t, conn.Table("order_line_items").Where("order_id = ?", order.ID).Count(&items).Error)
	assert.Equal(t, int64(2), items)

	var wished int64
	require.NoError(t, conn.Table("wishlists").Where("user_id = ?", user.ID).Count(&wished).Error)
	assert.Equal(t, int64(1), wished)
}

func TestImportCustomersCollectsFailures(t *testing.T) {
	conn := dbtest.Open(t)
	im, err := New(conn, Options{Password: cheapArgon}, logger.New(logger.Options{Output: io.Discard}))
	require.NoError(t, err)

	_, err = im.ImportCustomers(context.Background(), []LegacyCustomer{
		{EntityID: "1", Email: "one@example.com"},
		{EntityID: "2", Email: "two@example.com"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "one@example.com")
	assert.Contains(t, err.Error(), "two@example.com")
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"entity_id":"1","sku":"A","images":[{"file":"/a/b/c.png"}]}]`), 0o600))

	rows, err := LoadJSON[LegacyProduct](path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "A", rows[0].SKU)
	assert.Equal(t, "c.png", baseName(rows[0].Images[0].File))

	_, err = LoadJSON[LegacyProduct](filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
