package catalogimport

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/permissions"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/security"
)

// ImportCustomers creates a user per customer with a random placeholder
// password they must replace, grants the customer role, and carries over
// their orders as complete purchases plus their wishlist. Customers whose
// email already exists are skipped.
func (im *Importer) ImportCustomers(ctx context.Context, legacy []LegacyCustomer) (Summary, error) {
	var (
		summary Summary
		errs    error
	)

	catalog, err := im.catalogIndex(ctx, legacy)
	if err != nil {
		return summary, err
	}

	for _, lc := range legacy {
		email := users.NormalizeEmail(lc.Email)
		if email == "" {
			summary.Skipped++
			continue
		}
		if _, err := im.users.FindByEmail(ctx, email); err == nil {
			im.logg.Warn(im.logg.WithField(ctx, "email", email), "duplicate customer email skipped")
			summary.Skipped++
			continue
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			errs = multierr.Append(errs, recordError{kind: "customer", key: email, err: err})
			continue
		}

		counts, err := im.writeCustomer(ctx, lc, catalog)
		if err != nil {
			errs = multierr.Append(errs, recordError{kind: "customer", key: email, err: err})
			continue
		}
		summary.Customers++
		summary.Orders += counts.orders
		summary.WishlistItems += counts.wishlist
	}
	return summary, errs
}

type catalogIndex struct {
	bySKU      map[string]uuid.UUID
	byLegacyID map[int64]uuid.UUID
}

func (im *Importer) catalogIndex(ctx context.Context, legacy []LegacyCustomer) (catalogIndex, error) {
	idx := catalogIndex{bySKU: map[string]uuid.UUID{}, byLegacyID: map[int64]uuid.UUID{}}
	var (
		skus      []string
		legacyIDs []int64
	)
	for _, lc := range legacy {
		for _, o := range lc.Orders {
			for _, sku := range o.Items {
				skus = append(skus, strings.TrimSpace(sku))
			}
		}
		for _, w := range lc.Wishlist {
			if id, ok := parseLegacyID(w.ProductID); ok {
				legacyIDs = append(legacyIDs, id)
			}
		}
	}
	bySKU, err := im.products.FindBySKUs(ctx, dedupeStrings(skus))
	if err != nil {
		return idx, err
	}
	for _, p := range bySKU {
		idx.bySKU[p.SKU] = p.ID
	}
	byLegacy, err := im.products.FindByLegacyIDs(ctx, legacyIDs)
	if err != nil {
		return idx, err
	}
	for _, p := range byLegacy {
		if p.LegacyID != nil {
			idx.byLegacyID[*p.LegacyID] = p.ID
		}
	}
	return idx, nil
}

type customerCounts struct {
	orders   int
	wishlist int
}

func (im *Importer) writeCustomer(ctx context.Context, lc LegacyCustomer, catalog catalogIndex) (customerCounts, error) {
	var counts customerCounts
	_, hash, err := security.Placeholder(placeholderPasswordLen, im.opts.Password)
	if err != nil {
		return counts, err
	}

	err = im.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dto := users.CreateUserDTO{
			Email:              lc.Email,
			FirstName:          lc.Firstname,
			LastName:           lc.Lastname,
			PasswordHash:       hash,
			MustUpdatePassword: true,
		}
		if id, ok := parseLegacyID(lc.EntityID); ok {
			dto.LegacyID = &id
		}
		user, err := im.users.WithTx(tx).Create(ctx, dto)
		if err != nil {
			return err
		}
		if err := im.roles.WithTx(tx).AssignRole(ctx, user.ID, permissions.RoleCustomer); err != nil {
			return err
		}

		orderRepo := im.orders.WithTx(tx)
		for _, lo := range lc.Orders {
			order, productIDs := im.mapOrder(ctx, user.ID, lo, catalog)
			if err := orderRepo.Create(ctx, order, productIDs); err != nil {
				return recordError{kind: "order", key: lo.EntityID, err: err}
			}
			counts.orders++
		}

		wishlistRepo := im.wishlist.WithTx(tx)
		wished := map[uuid.UUID]bool{}
		for _, item := range lc.Wishlist {
			legacyID, ok := parseLegacyID(item.ProductID)
			if !ok {
				continue
			}
			productID, ok := catalog.byLegacyID[legacyID]
			if !ok || wished[productID] {
				continue
			}
			wished[productID] = true
			if err := wishlistRepo.Add(ctx, user.ID, productID); err != nil {
				return err
			}
			counts.wishlist++
		}
		return nil
	})
	if err != nil {
		return customerCounts{}, err
	}
	return counts, nil
}

// mapOrder builds a complete order. Legacy discounts are stored negative
// and are flipped and capped at the subtotal so total = subtotal - discount.
func (im *Importer) mapOrder(ctx context.Context, userID uuid.UUID, lo LegacyOrder, catalog catalogIndex) (*models.Order, []uuid.UUID) {
	subtotal := parseMoney(lo.Subtotal)
	discount := parseMoney(lo.DiscountAmount).Abs()
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	order := &models.Order{
		UserID:   userID,
		Status:   enums.OrderStatusComplete,
		Subtotal: subtotal,
		Discount: discount,
		Total:    subtotal.Sub(discount),
	}
	if code := strings.TrimSpace(lo.CouponCode); code != "" {
		order.CouponCode = &code
	}
	if created, err := time.Parse(legacyDateLayout, strings.TrimSpace(lo.CreatedAt)); err == nil {
		order.CreatedAt = created
	}

	var (
		productIDs []uuid.UUID
		missing    []string
		seen       = map[uuid.UUID]bool{}
	)
	for _, sku := range lo.Items {
		id, ok := catalog.bySKU[strings.TrimSpace(sku)]
		if !ok {
			missing = append(missing, sku)
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		productIDs = append(productIDs, id)
	}
	if len(missing) > 0 {
		im.logg.Warn(im.logg.WithFields(ctx, map[string]any{
			"legacyOrder": lo.EntityID,
			"missingSkus": missing,
		}), "order references unknown products")
	}
	return order, productIDs
}

func parseMoney(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero
	}
	return d.Truncate(2)
}

func dedupeStrings(values []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
