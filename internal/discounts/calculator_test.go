package discounts

import (
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type permSet map[string]bool

func (p permSet) Has(name string) bool { return p[name] }

func strPtr(s string) *string { return &s }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestProductDiscountReducesPrice(t *testing.T) {
	calc := ForDiscount(models.Discount{Type: enums.DiscountTypeProduct, Amount: dec("0.10")})
	got := calc.ProductSalePrice(models.Product{}, dec("19.99"))
	assert.True(t, got.Truncate(2).Equal(dec("17.99")), "got %s", got)

	// product discounts leave the cart discount alone
	assert.True(t, calc.CartDiscount(nil, dec("100"), dec("3")).Equal(dec("3")))
}

func TestCartDiscountAccumulates(t *testing.T) {
	calc := ForDiscount(models.Discount{Type: enums.DiscountTypeCart, Amount: dec("0.25")})
	got := calc.CartDiscount(nil, dec("40.00"), dec("1.00"))
	assert.True(t, got.Equal(dec("11.00")), "got %s", got)
	assert.True(t, calc.ProductSalePrice(models.Product{}, dec("5")).Equal(dec("5")))
}

func TestForDiscountClampsAmount(t *testing.T) {
	over := ForDiscount(models.Discount{Type: enums.DiscountTypeProduct, Amount: dec("1.5")})
	assert.True(t, over.ProductSalePrice(models.Product{}, dec("10")).IsZero())

	under := ForDiscount(models.Discount{Type: enums.DiscountTypeProduct, Amount: dec("-0.2")})
	assert.True(t, under.ProductSalePrice(models.Product{}, dec("10")).Equal(dec("10")))

	assert.Nil(t, ForDiscount(models.Discount{Type: "bogus"}))
}

func TestAppliesGatesOnPermissionAndCoupon(t *testing.T) {
	gated := models.Discount{Type: enums.DiscountTypeProduct, Amount: dec("0.5"), Permission: strPtr("discount.legacy")}
	assert.False(t, Applies(gated, permSet{}, ""))
	assert.False(t, Applies(gated, nil, ""))
	assert.True(t, Applies(gated, permSet{"discount.legacy": true}, ""))

	coupon := models.Discount{Type: enums.DiscountTypeCart, Amount: dec("0.1"), CouponCode: strPtr("SPRING")}
	assert.False(t, Applies(coupon, permSet{}, ""))
	assert.False(t, Applies(coupon, permSet{}, "WINTER"))
	assert.True(t, Applies(coupon, permSet{}, " spring "))

	open := models.Discount{Type: enums.DiscountTypeCart, Amount: dec("0.1")}
	assert.True(t, Applies(open, nil, "anything"))
}

func TestCalculatorsKeepsOrderAndFilters(t *testing.T) {
	all := []models.Discount{
		{Name: "a", Type: enums.DiscountTypeProduct, Amount: dec("0.1")},
		{Name: "b", Type: enums.DiscountTypeProduct, Amount: dec("0.5"), Permission: strPtr("discount.legacy")},
		{Name: "c", Type: enums.DiscountTypeCart, Amount: dec("0.2")},
	}
	calcs := Calculators(all, permSet{}, "")
	assert.Len(t, calcs, 2)
	assert.Equal(t, flatPercentage{kind: enums.DiscountTypeProduct, amount: dec("0.1")}, calcs[0])
	assert.Equal(t, flatPercentage{kind: enums.DiscountTypeCart, amount: dec("0.2")}, calcs[1])
}
