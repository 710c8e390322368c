package cart

import (
	"encoding/json"

	"github.com/angelmondragon/storefront-backend/internal/discounts"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/shopspring/decimal"
)

const moneyPlaces = 2

// Totals is a priced cart. Total is always Subtotal minus Discount.
type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

func (t Totals) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Subtotal string `json:"subtotal"`
		Discount string `json:"discount"`
		Total    string `json:"total"`
	}{
		Subtotal: t.Subtotal.StringFixed(moneyPlaces),
		Discount: t.Discount.StringFixed(moneyPlaces),
		Total:    t.Total.StringFixed(moneyPlaces),
	})
}

// SalePrice folds price through every calculator in order and truncates the
// result to cents.
func SalePrice(product models.Product, calcs []discounts.Calculator) decimal.Decimal {
	price := product.Price
	for _, calc := range calcs {
		price = calc.ProductSalePrice(product, price)
	}
	return price.Truncate(moneyPlaces)
}

// Calculate prices products with calcs. Each product is truncated after its
// own chain, before summing; the cart discount never exceeds the subtotal.
func Calculate(products []models.Product, calcs []discounts.Calculator) Totals {
	subtotal := decimal.Zero
	for _, p := range products {
		subtotal = subtotal.Add(SalePrice(p, calcs))
	}

	discount := decimal.Zero
	for _, calc := range calcs {
		discount = calc.CartDiscount(products, subtotal, discount)
	}
	discount = decimal.Min(discount, subtotal)
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	discount = discount.Truncate(moneyPlaces)

	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Total:    subtotal.Sub(discount),
	}
}
