package discounts

import (
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// Calculator is one discount applied in the cart pipeline. Calculators are
// pure; the pipeline folds prices and discounts through them in order.
type Calculator interface {
	// ProductSalePrice returns the product's price after this discount,
	// given the price produced by the calculators before it.
	ProductSalePrice(product models.Product, current decimal.Decimal) decimal.Decimal
	// CartDiscount returns the running cart discount after this discount.
	CartDiscount(products []models.Product, subtotal, current decimal.Decimal) decimal.Decimal
}

// PermissionChecker is satisfied by permissions.Set.
type PermissionChecker interface {
	Has(name string) bool
}

// Applies reports whether the discount is usable by a caller holding perms
// for a cart carrying couponCode.
func Applies(d models.Discount, perms PermissionChecker, couponCode string) bool {
	if d.Permission != nil && *d.Permission != "" {
		if perms == nil || !perms.Has(*d.Permission) {
			return false
		}
	}
	if d.CouponCode != nil && *d.CouponCode != "" {
		return strings.EqualFold(strings.TrimSpace(*d.CouponCode), strings.TrimSpace(couponCode))
	}
	return true
}

// Calculators builds calculators for the discounts that apply, preserving
// input order.
func Calculators(all []models.Discount, perms PermissionChecker, couponCode string) []Calculator {
	out := make([]Calculator, 0, len(all))
	for _, d := range all {
		if !Applies(d, perms, couponCode) {
			continue
		}
		if calc := ForDiscount(d); calc != nil {
			out = append(out, calc)
		}
	}
	return out
}

// ForDiscount returns the calculator for a discount, or nil for unknown types.
func ForDiscount(d models.Discount) Calculator {
	switch d.Type {
	case enums.DiscountTypeProduct, enums.DiscountTypeCart:
		return flatPercentage{kind: d.Type, amount: clampFraction(d.Amount)}
	default:
		return nil
	}
}

// flatPercentage takes a fixed fraction off either each product price or the
// cart subtotal.
type flatPercentage struct {
	kind   enums.DiscountType
	amount decimal.Decimal
}

func (f flatPercentage) ProductSalePrice(_ models.Product, current decimal.Decimal) decimal.Decimal {
	if f.kind != enums.DiscountTypeProduct {
		return current
	}
	return current.Mul(decimal.NewFromInt(1).Sub(f.amount))
}

func (f flatPercentage) CartDiscount(_ []models.Product, subtotal, current decimal.Decimal) decimal.Decimal {
	if f.kind != enums.DiscountTypeCart {
		return current
	}
	return current.Add(subtotal.Mul(f.amount))
}

func clampFraction(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	if one := decimal.NewFromInt(1); v.GreaterThan(one) {
		return one
	}
	return v
}
