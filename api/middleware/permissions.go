package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/permissions"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Permissions resolves the caller's permission set once per request.
// Anonymous callers get the public role.
func Permissions(resolver permissions.Resolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			set, err := resolver.Resolve(r.Context(), UserIDFromContext(r.Context()))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve permissions"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPermissions(r.Context(), set)))
		})
	}
}

// RequirePermission rejects callers lacking name. Anonymous callers get 401,
// signed in callers 403.
func RequirePermission(name string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !PermissionsFromContext(r.Context()).Has(name) {
				responses.WriteError(r.Context(), logg, w, denied(r, name))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSelfOr lets the caller through when the {param} URL segment is
// their own user id, or when they hold every override permission.
func RequireSelfOr(param string, logg *logger.Logger, overrides ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := UserIDFromContext(r.Context())
			target, err := uuid.Parse(chi.URLParam(r, param))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+param))
				return
			}
			if caller != uuid.Nil && caller == target {
				next.ServeHTTP(w, r)
				return
			}
			if len(overrides) > 0 && PermissionsFromContext(r.Context()).HasAll(overrides...) {
				next.ServeHTTP(w, r)
				return
			}
			responses.WriteError(r.Context(), logg, w, denied(r, overrides...))
		})
	}
}

func denied(r *http.Request, names ...string) error {
	if UserIDFromContext(r.Context()) == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "permission denied").
		WithDetails(map[string]any{"required": names})
}
