package discounts

import (
	"context"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists discounts.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// All loads every discount in creation order; the cart pipeline folds them in
// this order.
func (r *Repository) All(ctx context.Context) ([]models.Discount, error) {
	var out []models.Discount
	err := r.db.WithContext(ctx).Order("created_at ASC").Order("id ASC").Find(&out).Error
	return out, err
}

func (r *Repository) Search(ctx context.Context, filter SearchFilter, page pagination.Params) ([]models.Discount, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Discount{})
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.CouponCode != "" {
		query = query.Where("LOWER(coupon_code) = LOWER(?)", filter.CouponCode)
	}
	if filter.Name != "" {
		query = query.Where("name = ?", filter.Name)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []models.Discount
	err := query.Order("created_at ASC").Order("id ASC").
		Offset(page.Offset).Limit(page.PerPage).
		Find(&out).Error
	return out, total, err
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Discount, error) {
	var d models.Discount
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Repository) Create(ctx context.Context, d *models.Discount) error {
	return r.db.WithContext(ctx).Create(d).Error
}

// Update applies a column map and reports gorm.ErrRecordNotFound when no row
// matched.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, changes map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.Discount{}).Where("id = ?", id).Updates(changes)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Discount{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
