package catalogimport

import (
	"errors"
	"fmt"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/permissions"
	"github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/internal/wishlist"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/security"
)

const placeholderPasswordLen = 24

// Options tunes an import run.
type Options struct {
	Password security.Params
	// Bundles links sub-products to bundle listings. Nil means DefaultBundles.
	Bundles []BundleRule
}

// Summary counts what a run wrote.
type Summary struct {
	Products      int
	Media         int
	Files         int
	Related       int
	SubProducts   int
	Customers     int
	Orders        int
	WishlistItems int
	Skipped       int
}

// Importer writes legacy records through the regular repositories. Each
// product and each customer is imported in its own transaction; one bad
// record does not stop the run.
type Importer struct {
	db        *gorm.DB
	products  *products.Repository
	users     *users.Repository
	roles     *permissions.Repository
	orders    *orders.Repository
	wishlist  *wishlist.Repository
	converter *md.Converter
	opts      Options
	logg      *logger.Logger
}

func New(conn *gorm.DB, opts Options, logg *logger.Logger) (*Importer, error) {
	if conn == nil {
		return nil, errors.New("database required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if opts.Bundles == nil {
		opts.Bundles = DefaultBundles()
	}
	return &Importer{
		db:        conn,
		products:  products.NewRepository(conn),
		users:     users.NewRepository(conn),
		roles:     permissions.NewRepository(conn),
		orders:    orders.NewRepository(conn),
		wishlist:  wishlist.NewRepository(conn),
		converter: md.NewConverter("", true, nil),
		opts:      opts,
		logg:      logg,
	}, nil
}

// markdown converts a legacy HTML fragment. Unparseable input is kept as is.
func (im *Importer) markdown(html string) string {
	if html == "" {
		return ""
	}
	out, err := im.converter.ConvertString(html)
	if err != nil {
		return html
	}
	return out
}

type recordError struct {
	kind string
	key  string
	err  error
}

func (e recordError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.kind, e.key, e.err)
}

func (e recordError) Unwrap() error { return e.err }
