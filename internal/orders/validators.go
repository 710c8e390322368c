package orders

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// FreeOrder is what free order validators inspect. Totals are computed
// without a coupon code.
type FreeOrder struct {
	UserID   uuid.UUID
	Products []models.Product
	Totals   cart.Totals
}

// FreeOrderValidator rejects a free order by returning an error, usually one
// built with Reject. Validators run in order and the first error wins.
type FreeOrderValidator func(ctx context.Context, order FreeOrder) error

// Reject builds the error a validator returns to refuse a free order. The
// message reaches the caller.
func Reject(message string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, message).
		WithDetails(map[string]string{"reason": message})
}

// RequireProducts refuses an order with nothing in it.
func RequireProducts(_ context.Context, order FreeOrder) error {
	if len(order.Products) == 0 {
		return Reject("No products in the order")
	}
	return nil
}

// RequireZeroTotal refuses an order that would cost money.
func RequireZeroTotal(_ context.Context, order FreeOrder) error {
	if order.Totals.Total.IsPositive() {
		return Reject("Order total must be zero for free orders")
	}
	return nil
}

// DefaultFreeOrderValidators is the chain used when none is configured.
func DefaultFreeOrderValidators() []FreeOrderValidator {
	return []FreeOrderValidator{RequireProducts, RequireZeroTotal}
}
