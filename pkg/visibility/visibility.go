package visibility

import (
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Viewer captures what the caller is allowed to see in the catalog.
type Viewer struct {
	// SeeDisabled is true for callers holding product.disabled.
	SeeDisabled bool
}

// EnsureProductVisible hides disabled products behind a not-found error so
// their existence does not leak.
func EnsureProductVisible(p *models.Product, viewer Viewer) error {
	if p == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if !p.Enabled && !viewer.SeeDisabled {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

// FilterProducts drops products the viewer may not see, keeping order.
func FilterProducts(products []models.Product, viewer Viewer) []models.Product {
	if viewer.SeeDisabled {
		return products
	}
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// EnabledFilter is the value for an enabled=? query filter; nil means no filter.
func EnabledFilter(viewer Viewer, requested *bool) *bool {
	if viewer.SeeDisabled {
		return requested
	}
	enabled := true
	return &enabled
}
