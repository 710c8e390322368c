package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

func TestPurgePendingBeforeKeepsCompleteAndRecentOrders(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "a", "10.00")
	repo := NewRepository(f.conn)
	ctx := context.Background()
	now := time.Now().UTC()

	seed := func(status enums.OrderStatus, created time.Time) uuid.UUID {
		o := &models.Order{
			UserID:    f.user.ID,
			Status:    status,
			Subtotal:  decimal.RequireFromString("10.00"),
			Discount:  decimal.Zero,
			Total:     decimal.RequireFromString("10.00"),
			CreatedAt: created,
		}
		require.NoError(t, repo.Create(ctx, o, []uuid.UUID{p.ID}))
		return o.ID
	}
	stale := seed(enums.OrderStatusPending, now.Add(-10*24*time.Hour))
	fresh := seed(enums.OrderStatusPending, now.Add(-time.Hour))
	paid := seed(enums.OrderStatusComplete, now.Add(-10*24*time.Hour))

	purged, err := repo.PurgePendingBefore(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = repo.FindByID(ctx, stale)
	assert.Error(t, err)
	for _, id := range []uuid.UUID{fresh, paid} {
		_, err := repo.FindByID(ctx, id)
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(2), f.countRows(t, "order_line_items"))
}
