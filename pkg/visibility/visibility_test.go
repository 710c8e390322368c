package visibility

import (
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestEnsureProductVisible(t *testing.T) {
	enabled := &models.Product{Name: "on", Enabled: true}
	disabled := &models.Product{Name: "off", Enabled: false}

	t.Run("missing product", func(t *testing.T) {
		err := EnsureProductVisible(nil, Viewer{SeeDisabled: true})
		if errors.CodeOf(err) != errors.CodeNotFound {
			t.Fatalf("expected not found, got %v", err)
		}
	})
	t.Run("enabled product", func(t *testing.T) {
		if err := EnsureProductVisible(enabled, Viewer{}); err != nil {
			t.Fatalf("expected visible, got %v", err)
		}
	})
	t.Run("disabled product hidden", func(t *testing.T) {
		err := EnsureProductVisible(disabled, Viewer{})
		if errors.CodeOf(err) != errors.CodeNotFound {
			t.Fatalf("expected not found, got %v", err)
		}
	})
	t.Run("disabled product for admin", func(t *testing.T) {
		if err := EnsureProductVisible(disabled, Viewer{SeeDisabled: true}); err != nil {
			t.Fatalf("expected visible, got %v", err)
		}
	})
}

func TestFilterProducts(t *testing.T) {
	products := []models.Product{{Name: "a", Enabled: true}, {Name: "b"}, {Name: "c", Enabled: true}}

	got := FilterProducts(products, Viewer{})
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "c" {
		t.Fatalf("unexpected filter result %+v", got)
	}
	if all := FilterProducts(products, Viewer{SeeDisabled: true}); len(all) != 3 {
		t.Fatalf("expected all products, got %d", len(all))
	}
}

func TestEnabledFilter(t *testing.T) {
	no := false
	if got := EnabledFilter(Viewer{}, &no); got == nil || !*got {
		t.Fatalf("public viewers must be pinned to enabled products")
	}
	if got := EnabledFilter(Viewer{SeeDisabled: true}, nil); got != nil {
		t.Fatalf("admin without filter should see everything")
	}
	if got := EnabledFilter(Viewer{SeeDisabled: true}, &no); got == nil || *got {
		t.Fatalf("admin filter should pass through")
	}
}
