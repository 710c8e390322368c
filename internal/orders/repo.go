package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Repository persists orders and their line items.
type Repository struct {
	db    *gorm.DB
	Items *repo.Relation[models.Product]
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
		Items: repo.NewRelation[models.Product](db, repo.RelationSpec{
			Table:        "order_line_items",
			OwnerColumn:  "order_id",
			TargetColumn: "product_id",
			TargetTable:  "products",
		}),
	}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx, Items: r.Items.WithTx(tx)}
}

// Create writes the order and one line item per product. Callers wanting
// atomicity run it on a transaction-bound repository.
func (r *Repository) Create(ctx context.Context, order *models.Order, productIDs []uuid.UUID) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return err
	}
	if len(productIDs) == 0 {
		return nil
	}
	items := make([]models.OrderLineItem, 0, len(productIDs))
	for _, id := range productIDs {
		items = append(items, models.OrderLineItem{OrderID: order.ID, ProductID: id, Quantity: 1})
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindForUser scopes the lookup to the owner so one user cannot read
// another's order by guessing ids.
func (r *Repository) FindForUser(ctx context.Context, userID, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Take(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repository) FindByTransactionID(ctx context.Context, transactionID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).Take(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// SearchComplete lists a user's complete orders, newest first.
func (r *Repository) SearchComplete(ctx context.Context, userID uuid.UUID, page pagination.Params) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("user_id = ? AND status = ?", userID, enums.OrderStatusComplete)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Order
	err := query.Order("created_at DESC").Order("id DESC").
		Offset(page.Offset).Limit(page.PerPage).
		Find(&rows).Error
	return rows, total, err
}

// Update applies changes to the user's order. Zero rows matched is reported
// as gorm.ErrRecordNotFound.
func (r *Repository) Update(ctx context.Context, userID, id uuid.UUID, changes map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(changes)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkComplete flips a pending order to complete. It reports false when the
// order was no longer pending.
func (r *Repository) MarkComplete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, enums.OrderStatusPending).
		Update("status", enums.OrderStatusComplete)
	return res.RowsAffected > 0, res.Error
}

func (r *Repository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if _, err := r.FindForUser(ctx, userID, id); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Where("order_id = ?", id).Delete(&models.OrderLineItem{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Order{}).Error
}

// PurgePendingBefore removes pending orders created before cutoff together
// with their line items. Complete orders are never touched.
func (r *Repository) PurgePendingBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var purged int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stale := tx.Model(&models.Order{}).Select("id").
			Where("status = ? AND created_at < ?", enums.OrderStatusPending, cutoff)
		if err := tx.Where("order_id IN (?)", stale).Delete(&models.OrderLineItem{}).Error; err != nil {
			return err
		}
		res := tx.Where("status = ? AND created_at < ?", enums.OrderStatusPending, cutoff).Delete(&models.Order{})
		purged = res.RowsAffected
		return res.Error
	})
	return purged, err
}

// fileScope narrows the download queries to one order or to one user.
type fileScope struct {
	column string
	value  uuid.UUID
}

func byOrder(id uuid.UUID) fileScope { return fileScope{column: "o.id", value: id} }
func byUser(id uuid.UUID) fileScope  { return fileScope{column: "o.user_id", value: id} }

// DirectFiles returns files attached to products bought in complete orders.
func (r *Repository) DirectFiles(ctx context.Context, scope fileScope) ([]models.ProductFile, error) {
	var files []models.ProductFile
	err := r.db.WithContext(ctx).
		Table("product_files pf").
		Select("pf.*").
		Joins("JOIN order_line_items li ON li.product_id = pf.product_id").
		Joins("JOIN orders o ON o.id = li.order_id").
		Where(fmt.Sprintf("%s = ?", scope.column), scope.value).
		Where("o.status = ?", enums.OrderStatusComplete).
		Order("pf.url").
		Find(&files).Error
	return files, err
}

// SubProductFiles returns files of the sub-products of bundles bought in
// complete orders. Only one level of nesting is followed.
func (r *Repository) SubProductFiles(ctx context.Context, scope fileScope) ([]models.ProductFile, error) {
	var files []models.ProductFile
	err := r.db.WithContext(ctx).
		Table("product_files pf").
		Select("pf.*").
		Joins("JOIN sub_products sp ON sp.sub_product_id = pf.product_id").
		Joins("JOIN order_line_items li ON li.product_id = sp.product_id").
		Joins("JOIN orders o ON o.id = li.order_id").
		Where(fmt.Sprintf("%s = ?", scope.column), scope.value).
		Where("o.status = ?", enums.OrderStatusComplete).
		Order("pf.url").
		Find(&files).Error
	return files, err
}
