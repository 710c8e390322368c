package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
)

func TestRepositoryCreateAndFind(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	legacy := int64(42)

	created, err := repo.Create(ctx, CreateUserDTO{
		Email:              "  Jane@Example.com ",
		FirstName:          "Jane",
		PasswordHash:       "hash",
		MustUpdatePassword: true,
		LegacyID:           &legacy,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "jane@example.com", created.Email)

	byEmail, err := repo.FindByEmail(ctx, "JANE@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
	assert.True(t, byEmail.MustUpdatePassword)

	byID, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane", byID.DisplayName())

	byLegacy, err := repo.FindByLegacyID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byLegacy.ID)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.True(t, db.IsNotFound(err))

	_, err = repo.Create(ctx, CreateUserDTO{Email: "jane@example.com", PasswordHash: "x"})
	assert.True(t, db.IsUniqueViolation(err, ""))
}

func TestFromModelOmitsCredentials(t *testing.T) {
	dto := CreateUserDTO{Email: "a@b.c", FirstName: " Ann ", PasswordHash: "secret"}.ToModel()
	out := FromModel(*dto)
	assert.Equal(t, "Ann", out.FirstName)
	assert.Equal(t, "a@b.c", out.Email)
}
