package permissions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedRoles(t *testing.T, db *gorm.DB) map[string]models.Role {
	t.Helper()
	grants := map[string][]string{
		RolePublic:   {ProductView, DiscountView},
		RoleCustomer: {OrderView, OrderPurchase},
		RoleAdmin:    {ProductCreate, ProductDisabled},
	}
	perms := map[string]models.Permission{}
	roles := map[string]models.Role{}
	for role, names := range grants {
		r := models.Role{Name: role}
		require.NoError(t, db.Create(&r).Error)
		roles[role] = r
		for _, name := range names {
			p, ok := perms[name]
			if !ok {
				p = models.Permission{Name: name}
				require.NoError(t, db.Create(&p).Error)
				perms[name] = p
			}
			require.NoError(t, db.Create(&models.RolePermission{RoleID: r.ID, PermissionID: p.ID}).Error)
		}
	}
	return roles
}

func TestResolveAnonymousGetsPublicRole(t *testing.T) {
	db := dbtest.Open(t)
	seedRoles(t, db)

	res, err := NewResolver(NewRepository(db), nil, 0, nil)
	require.NoError(t, err)

	set, err := res.Resolve(context.Background(), uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, []string{DiscountView, ProductView}, set.Names())
	assert.False(t, set.Has(OrderPurchase))
}

func TestResolveUserUnionsRoles(t *testing.T) {
	db := dbtest.Open(t)
	seedRoles(t, db)
	repo := NewRepository(db)

	userID := uuid.New()
	require.NoError(t, repo.AssignRole(context.Background(), userID, RoleCustomer))
	require.NoError(t, repo.AssignRole(context.Background(), userID, RoleCustomer))

	res, err := NewResolver(repo, nil, 0, nil)
	require.NoError(t, err)
	set, err := res.Resolve(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, set.HasAll(ProductView, OrderView, OrderPurchase))
	assert.False(t, set.Has(ProductDisabled))
}

func TestAssignUnknownRoleFails(t *testing.T) {
	db := dbtest.Open(t)
	err := NewRepository(db).AssignRole(context.Background(), uuid.New(), "ghost")
	require.Error(t, err)
}

type fakeLookup struct {
	calls int
	err   error
}

func (f *fakeLookup) ForRoles(context.Context, ...string) ([]string, error) {
	f.calls++
	return []string{ProductView}, f.err
}

func (f *fakeLookup) ForUser(context.Context, uuid.UUID) ([]string, error) {
	return []string{OrderView}, f.err
}

type memCache struct{ data map[string]string }

func (m *memCache) Get(_ context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.data[key] = value.(string)
	return nil
}

func (m *memCache) PermissionsKey(subject string) string { return "perm:" + subject }

func TestResolveUsesCache(t *testing.T) {
	lookup := &fakeLookup{}
	cache := &memCache{data: map[string]string{}}
	res, err := NewResolver(lookup, cache, time.Minute, nil)
	require.NoError(t, err)

	userID := uuid.New()
	first, err := res.Resolve(context.Background(), userID)
	require.NoError(t, err)
	second, err := res.Resolve(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, 1, lookup.calls)
	assert.Equal(t, first.Names(), second.Names())
	assert.Contains(t, cache.data, "perm:"+userID.String())
}

func TestResolvePropagatesErrors(t *testing.T) {
	res, err := NewResolver(&fakeLookup{err: errors.New("db down")}, nil, 0, nil)
	require.NoError(t, err)
	_, err = res.Resolve(context.Background(), uuid.Nil)
	require.Error(t, err)
}

func TestSetHelpers(t *testing.T) {
	var empty Set
	assert.False(t, empty.Has(ProductView))
	assert.True(t, empty.HasAll())
	assert.Equal(t, []string{"a", "b"}, NewSet("b", "a", "").Names())
}
