package wishlist

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository links users to the products they saved.
type Repository struct {
	items *repo.Relation[models.Product]
}

// NewRepository constructs a wishlist repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		items: repo.NewRelation[models.Product](db, repo.RelationSpec{
			Table:        "wishlists",
			OwnerColumn:  "user_id",
			TargetColumn: "product_id",
			TargetTable:  "products",
		}),
	}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{items: r.items.WithTx(tx)}
}

func (r *Repository) Products(ctx context.Context, userID uuid.UUID) ([]models.Product, error) {
	return r.items.Get(ctx, userID)
}

// Add ignores duplicates.
func (r *Repository) Add(ctx context.Context, userID, productID uuid.UUID) error {
	return r.items.Add(ctx, userID, productID)
}

func (r *Repository) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	return r.items.Remove(ctx, userID, productID)
}
