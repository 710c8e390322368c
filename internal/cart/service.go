package cart

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/storefront-backend/internal/discounts"
	"github.com/angelmondragon/storefront-backend/internal/permissions"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/google/uuid"
)

// Request is a cart: product ids plus an optional coupon code.
type Request struct {
	ProductIDs []uuid.UUID
	CouponCode string
}

// Quote is a priced cart with the products that were found.
type Quote struct {
	Products []models.Product
	Totals   Totals
}

type productLoader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type discountLoader interface {
	All(ctx context.Context) ([]models.Discount, error)
}

type Service interface {
	// CalculateTotal prices the cart for userID. Unknown product ids are
	// dropped; an empty cart is 0/0/0.
	CalculateTotal(ctx context.Context, userID uuid.UUID, req Request) (Totals, error)
	Quote(ctx context.Context, userID uuid.UUID, req Request) (*Quote, error)
}

type service struct {
	products  productLoader
	discounts discountLoader
	perms     permissions.Resolver
}

func NewService(products productLoader, discounts discountLoader, perms permissions.Resolver) (Service, error) {
	if products == nil {
		return nil, errors.New("product loader required")
	}
	if discounts == nil {
		return nil, errors.New("discount loader required")
	}
	if perms == nil {
		return nil, errors.New("permission resolver required")
	}
	return &service{products: products, discounts: discounts, perms: perms}, nil
}

func (s *service) CalculateTotal(ctx context.Context, userID uuid.UUID, req Request) (Totals, error) {
	q, err := s.Quote(ctx, userID, req)
	if err != nil {
		return Totals{}, err
	}
	return q.Totals, nil
}

func (s *service) Quote(ctx context.Context, userID uuid.UUID, req Request) (*Quote, error) {
	var products []models.Product
	if len(req.ProductIDs) > 0 {
		found, err := s.products.FindByIDs(ctx, req.ProductIDs)
		if err != nil {
			return nil, err
		}
		products = found
	}

	all, err := s.discounts.All(ctx)
	if err != nil {
		return nil, err
	}
	perms, err := s.perms.Resolve(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve permissions")
	}

	calcs := discounts.Calculators(all, perms, strings.TrimSpace(req.CouponCode))
	return &Quote{Products: products, Totals: Calculate(products, calcs)}, nil
}
