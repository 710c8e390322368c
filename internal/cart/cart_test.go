package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/storefront-backend/internal/discounts"
	"github.com/angelmondragon/storefront-backend/internal/permissions"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func strPtr(s string) *string { return &s }

func product(price string) models.Product {
	return models.Product{ID: uuid.New(), Price: dec(price), Enabled: true}
}

func assertTotals(t *testing.T, got Totals, subtotal, discount, total string) {
	t.Helper()
	assert.True(t, got.Subtotal.Equal(dec(subtotal)), "subtotal %s", got.Subtotal)
	assert.True(t, got.Discount.Equal(dec(discount)), "discount %s", got.Discount)
	assert.True(t, got.Total.Equal(dec(total)), "total %s", got.Total)
}

func TestCalculateWithoutDiscounts(t *testing.T) {
	got := Calculate([]models.Product{product("10.00"), product("5.00")}, nil)
	assertTotals(t, got, "15.00", "0", "15.00")
}

func TestCalculateProductDiscountIsInlined(t *testing.T) {
	calcs := discounts.Calculators([]models.Discount{
		{Type: enums.DiscountTypeProduct, Amount: dec("0.20"), Permission: strPtr("discount.view")},
	}, permissions.NewSet("discount.view"), "")

	got := Calculate([]models.Product{product("10.00"), product("5.00")}, calcs)
	assertTotals(t, got, "12.00", "0", "12.00")
}

func TestCalculateSkipsUnpermittedDiscounts(t *testing.T) {
	calcs := discounts.Calculators([]models.Discount{
		{Type: enums.DiscountTypeProduct, Amount: dec("0.50"), Permission: strPtr("discount.legacy")},
	}, permissions.NewSet("discount.view"), "")

	got := Calculate([]models.Product{product("10.00")}, calcs)
	assertTotals(t, got, "10.00", "0", "10.00")
}

func TestCalculateTruncatesEachProductBeforeSumming(t *testing.T) {
	calcs := []discounts.Calculator{discounts.ForDiscount(models.Discount{Type: enums.DiscountTypeProduct, Amount: dec("0.10")})}

	assert.True(t, SalePrice(product("1.99"), calcs).Equal(dec("1.79")))

	half := []discounts.Calculator{discounts.ForDiscount(models.Discount{Type: enums.DiscountTypeProduct, Amount: dec("0.5")})}
	// 0.025 truncates to 0.02 per product; truncating the sum would give 0.07
	got := Calculate([]models.Product{product("0.05"), product("0.05"), product("0.05")}, half)
	assertTotals(t, got, "0.06", "0", "0.06")
}

func TestCalculateClampsCartDiscountToSubtotal(t *testing.T) {
	calcs := []discounts.Calculator{
		discounts.ForDiscount(models.Discount{Type: enums.DiscountTypeCart, Amount: dec("0.75")}),
		discounts.ForDiscount(models.Discount{Type: enums.DiscountTypeCart, Amount: dec("0.75")}),
	}
	got := Calculate([]models.Product{product("8.00")}, calcs)
	assertTotals(t, got, "8.00", "8.00", "0")
}

func TestCalculateTruncatesCartDiscount(t *testing.T) {
	calcs := []discounts.Calculator{discounts.ForDiscount(models.Discount{Type: enums.DiscountTypeCart, Amount: dec("0.333")})}
	got := Calculate([]models.Product{product("10.00")}, calcs)
	assertTotals(t, got, "10.00", "3.33", "6.67")
}

func TestCalculateCouponGate(t *testing.T) {
	all := []models.Discount{{Type: enums.DiscountTypeCart, Amount: dec("0.10"), CouponCode: strPtr("SPRING")}}
	products := []models.Product{product("20.00")}

	assertTotals(t, Calculate(products, discounts.Calculators(all, permissions.NewSet(), "")), "20.00", "0", "20.00")
	assertTotals(t, Calculate(products, discounts.Calculators(all, permissions.NewSet(), " spring ")), "20.00", "2.00", "18.00")
}

func TestCalculateInvariantHoldsAcrossCarts(t *testing.T) {
	calcs := []discounts.Calculator{
		discounts.ForDiscount(models.Discount{Type: enums.DiscountTypeProduct, Amount: dec("0.15")}),
		discounts.ForDiscount(models.Discount{Type: enums.DiscountTypeCart, Amount: dec("0.40")}),
		discounts.ForDiscount(models.Discount{Type: enums.DiscountTypeCart, Amount: dec("0.70")}),
	}
	prices := []string{"0.01", "0.99", "3.33", "19.99", "123.45"}
	for i := range prices {
		var products []models.Product
		for _, p := range prices[:i+1] {
			products = append(products, product(p))
		}
		got := Calculate(products, calcs)
		assert.True(t, got.Discount.LessThanOrEqual(got.Subtotal))
		assert.True(t, got.Total.Equal(got.Subtotal.Sub(got.Discount)))
		assert.False(t, got.Total.IsNegative())
	}
}

func TestCalculateEmptyCart(t *testing.T) {
	assertTotals(t, Calculate(nil, nil), "0", "0", "0")
}

func TestTotalsMarshalJSON(t *testing.T) {
	raw, err := Totals{Subtotal: dec("15"), Discount: dec("0"), Total: dec("15")}.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"subtotal":"15.00","discount":"0.00","total":"15.00"}`, string(raw))
}

type stubProducts struct {
	byID map[uuid.UUID]models.Product
	err  error
	hits int
}

func (s *stubProducts) FindByIDs(_ context.Context, ids []uuid.UUID) ([]models.Product, error) {
	s.hits++
	if s.err != nil {
		return nil, s.err
	}
	var out []models.Product
	for _, id := range ids {
		if p, ok := s.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type stubDiscounts []models.Discount

func (s stubDiscounts) All(context.Context) ([]models.Discount, error) { return s, nil }

type stubResolver struct {
	sets map[uuid.UUID]permissions.Set
	err  error
}

func (s stubResolver) Resolve(_ context.Context, userID uuid.UUID) (permissions.Set, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.sets[userID], nil
}

func TestServiceCalculateTotal(t *testing.T) {
	p1, p2 := product("10.00"), product("5.00")
	member := uuid.New()
	products := &stubProducts{byID: map[uuid.UUID]models.Product{p1.ID: p1, p2.ID: p2}}
	all := stubDiscounts{{Type: enums.DiscountTypeProduct, Amount: dec("0.20"), Permission: strPtr("discount.member")}}
	resolver := stubResolver{sets: map[uuid.UUID]permissions.Set{
		uuid.Nil: permissions.NewSet(),
		member:   permissions.NewSet("discount.member"),
	}}

	svc, err := NewService(products, all, resolver)
	require.NoError(t, err)

	req := Request{ProductIDs: []uuid.UUID{p1.ID, uuid.New(), p2.ID}}
	anon, err := svc.CalculateTotal(context.Background(), uuid.Nil, req)
	require.NoError(t, err)
	assertTotals(t, anon, "15.00", "0", "15.00")

	got, err := svc.CalculateTotal(context.Background(), member, req)
	require.NoError(t, err)
	assertTotals(t, got, "12.00", "0", "12.00")

	q, err := svc.Quote(context.Background(), member, req)
	require.NoError(t, err)
	assert.Len(t, q.Products, 2)
}

func TestServiceEmptyCartSkipsProductLookup(t *testing.T) {
	products := &stubProducts{}
	svc, err := NewService(products, stubDiscounts{}, stubResolver{})
	require.NoError(t, err)

	got, err := svc.CalculateTotal(context.Background(), uuid.Nil, Request{})
	require.NoError(t, err)
	assertTotals(t, got, "0", "0", "0")
	assert.Zero(t, products.hits)
}

func TestServiceWrapsResolverErrors(t *testing.T) {
	svc, err := NewService(&stubProducts{}, stubDiscounts{}, stubResolver{err: errors.New("redis down")})
	require.NoError(t, err)
	_, err = svc.CalculateTotal(context.Background(), uuid.Nil, Request{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}
