package discounts

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type store interface {
	All(ctx context.Context) ([]models.Discount, error)
	Search(ctx context.Context, filter SearchFilter, page pagination.Params) ([]models.Discount, int64, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Discount, error)
	Create(ctx context.Context, d *models.Discount) error
	Update(ctx context.Context, id uuid.UUID, changes map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service exposes discount administration and the bulk load used by the cart.
type Service interface {
	All(ctx context.Context) ([]models.Discount, error)
	Search(ctx context.Context, filter SearchFilter, page pagination.Params) (pagination.Page[models.Discount], error)
	Get(ctx context.Context, id uuid.UUID) (*models.Discount, error)
	Create(ctx context.Context, input CreateInput) (*models.Discount, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Discount, error)
	Remove(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo store
}

func NewService(repo store) (Service, error) {
	if repo == nil {
		return nil, errors.New("discount repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) All(ctx context.Context) ([]models.Discount, error) {
	out, err := s.repo.All(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load discounts")
	}
	return out, nil
}

func (s *service) Search(ctx context.Context, filter SearchFilter, page pagination.Params) (pagination.Page[models.Discount], error) {
	page = page.Normalize()
	items, total, err := s.repo.Search(ctx, filter, page)
	if err != nil {
		return pagination.Page[models.Discount]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search discounts")
	}
	return pagination.NewPage(items, page, total), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Discount, error) {
	d, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupErr(err, "load discount")
	}
	return d, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Discount, error) {
	if err := validateAmount(input.Amount); err != nil {
		return nil, err
	}
	d := &models.Discount{
		Name:       strings.TrimSpace(input.Name),
		Type:       input.Type,
		Amount:     input.Amount,
		CouponCode: normalizeOptional(input.CouponCode),
		Permission: normalizeOptional(input.Permission),
	}
	if !d.Type.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid discount type %q", d.Type)
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create discount")
	}
	return d, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Discount, error) {
	changes := map[string]any{}
	if input.Name != nil {
		changes["name"] = strings.TrimSpace(*input.Name)
	}
	if input.Type != nil {
		if !input.Type.IsValid() {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid discount type %q", *input.Type)
		}
		changes["type"] = *input.Type
	}
	if input.Amount != nil {
		if err := validateAmount(*input.Amount); err != nil {
			return nil, err
		}
		changes["amount"] = *input.Amount
	}
	if input.CouponCode != nil {
		changes["coupon_code"] = normalizeOptional(input.CouponCode)
	}
	if input.Permission != nil {
		changes["permission"] = normalizeOptional(input.Permission)
	}
	if len(changes) > 0 {
		if err := s.repo.Update(ctx, id, changes); err != nil {
			return nil, mapLookupErr(err, "update discount")
		}
	}
	return s.Get(ctx, id)
}

func (s *service) Remove(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapLookupErr(err, "delete discount")
	}
	return nil
}

func validateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() || amount.GreaterThan(decimal.NewFromInt(1)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be a fraction between 0 and 1").
			WithDetails(map[string]any{"amount": amount.String()})
	}
	return nil
}

// normalizeOptional turns blank strings into NULL.
func normalizeOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func mapLookupErr(err error, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "discount not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
