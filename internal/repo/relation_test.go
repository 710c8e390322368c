package repo

import (
	"context"
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func mustProduct(t *testing.T, db *gorm.DB, sku string) models.Product {
	t.Helper()
	p := models.Product{
		Name:        sku,
		SKU:         sku,
		URL:         sku,
		ProductType: enums.ProductTypeDigital,
		Price:       decimal.RequireFromString("1.00"),
		Enabled:     true,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func TestRelationLifecycle(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	rel := NewRelation[models.Product](db, RelationSpec{
		Table:        "related_products",
		OwnerColumn:  "product_id",
		TargetColumn: "related_product_id",
		TargetTable:  "products",
	})

	owner := mustProduct(t, db, "owner")
	a := mustProduct(t, db, "a")
	b := mustProduct(t, db, "b")

	require.NoError(t, rel.Add(ctx, owner.ID, a.ID))
	require.NoError(t, rel.Add(ctx, owner.ID, a.ID))
	require.NoError(t, rel.Add(ctx, owner.ID, b.ID))

	got, err := rel.Get(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	ids, err := rel.TargetIDs(ctx, owner.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, ids)

	require.NoError(t, rel.Remove(ctx, owner.ID, a.ID))
	require.NoError(t, rel.Remove(ctx, owner.ID, a.ID))
	got, err = rel.Get(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, b.ID, got[0].ID)

	assert.ErrorIs(t, rel.Add(ctx, uuid.Nil, a.ID), gorm.ErrInvalidValue)

	empty, err := rel.TargetIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRelationWithTxRollsBack(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	rel := NewRelation[models.Tag](db, RelationSpec{
		Table: "product_tags", OwnerColumn: "product_id", TargetColumn: "tag_id", TargetTable: "tags",
	})
	owner := mustProduct(t, db, "owner")
	tag := models.Tag{Name: "props"}
	require.NoError(t, db.Create(&tag).Error)

	tx := db.Begin()
	require.NoError(t, rel.WithTx(tx).Add(ctx, owner.ID, tag.ID))
	tx.Rollback()

	got, err := rel.Get(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}
