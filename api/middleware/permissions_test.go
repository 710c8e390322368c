package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/storefront-backend/internal/permissions"
)

type stubResolver struct {
	byUser map[uuid.UUID][]string
	err    error
}

func (s stubResolver) Resolve(_ context.Context, userID uuid.UUID) (permissions.Set, error) {
	if s.err != nil {
		return nil, s.err
	}
	names := append([]string{permissions.ProductView}, s.byUser[userID]...)
	return permissions.NewSet(names...), nil
}

func guarded(resolver permissions.Resolver, name string) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return Permissions(resolver, nil)(RequirePermission(name, nil)(ok))
}

func serveAs(h http.Handler, userID uuid.UUID, target string) int {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if userID != uuid.Nil {
		req = req.WithContext(WithUserID(req.Context(), userID))
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp.Code
}

func TestRequirePermission(t *testing.T) {
	customer := uuid.New()
	resolver := stubResolver{byUser: map[uuid.UUID][]string{customer: {permissions.OrderView}}}

	assert.Equal(t, http.StatusOK, serveAs(guarded(resolver, permissions.ProductView), uuid.Nil, "/"))
	assert.Equal(t, http.StatusUnauthorized, serveAs(guarded(resolver, permissions.OrderView), uuid.Nil, "/"))
	assert.Equal(t, http.StatusOK, serveAs(guarded(resolver, permissions.OrderView), customer, "/"))
	assert.Equal(t, http.StatusForbidden, serveAs(guarded(resolver, permissions.ProductCreate), customer, "/"))
}

func TestRequirePermissionFailsClosed(t *testing.T) {
	resolver := stubResolver{err: errors.New("db down")}
	assert.Equal(t, http.StatusServiceUnavailable, serveAs(guarded(resolver, permissions.ProductView), uuid.Nil, "/"))

	// Without the resolving middleware nothing is granted.
	bare := RequirePermission(permissions.ProductView, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	assert.Equal(t, http.StatusUnauthorized, serveAs(bare, uuid.Nil, "/"))
}

func TestRequireSelfOr(t *testing.T) {
	owner := uuid.New()
	admin := uuid.New()
	stranger := uuid.New()
	resolver := stubResolver{byUser: map[uuid.UUID][]string{admin: {permissions.OrderUpdate}}}

	r := chi.NewRouter()
	r.Use(Permissions(resolver, nil))
	r.With(RequireSelfOr("userId", nil, permissions.OrderUpdate)).Get("/user/{userId}/order", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	target := "/user/" + owner.String() + "/order"

	assert.Equal(t, http.StatusOK, serveAs(r, owner, target))
	assert.Equal(t, http.StatusOK, serveAs(r, admin, target))
	assert.Equal(t, http.StatusForbidden, serveAs(r, stranger, target))
	assert.Equal(t, http.StatusUnauthorized, serveAs(r, uuid.Nil, target))
	assert.Equal(t, http.StatusBadRequest, serveAs(r, owner, "/user/not-a-uuid/order"))
}
