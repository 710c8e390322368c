package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/discounts"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/permissions"
	"github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/wishlist"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

// Deps carries everything the HTTP surface is wired to.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	// Ready is pinged by /health/ready, keyed by dependency name.
	Ready map[string]controllers.Pinger
	// Gatherer backs /metrics. Defaults to the global registry.
	Gatherer prometheus.Gatherer

	Idempotency pkgredis.IdempotencyStore
	Cache       middleware.CacheStore
	Permissions permissions.Resolver

	Products  products.Service
	Discounts discounts.Service
	Cart      cart.Service
	Orders    orders.Service
	Wishlist  wishlist.Service
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger
	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.Ready))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(
			middleware.Auth(cfg.JWT, logg),
			middleware.Permissions(d.Permissions, logg),
			middleware.ResponseCache(d.Cache, cfg.Cache.CatalogTTL, logg),
		)
		need := func(name string) func(http.Handler) http.Handler {
			return middleware.RequirePermission(name, logg)
		}

		r.Get("/cart", controllers.CartTotals(d.Cart, logg))
		r.With(need(permissions.ProductView)).Get("/tag", controllers.AllTags(d.Products, logg))

		r.Route("/product", func(r chi.Router) {
			r.With(need(permissions.ProductView)).Get("/", controllers.ProductSearch(d.Products, logg))
			r.With(need(permissions.ProductCreate)).Post("/", controllers.ProductCreate(d.Products, logg))

			r.Route("/{productId}", func(r chi.Router) {
				tags := controllers.ProductTagLinks(d.Products)
				related := controllers.ProductRelatedLinks(d.Products)
				subs := controllers.ProductSubProductLinks(d.Products)

				r.With(need(permissions.ProductView)).Get("/", controllers.ProductGet(d.Products, logg))
				r.With(need(permissions.ProductUpdate)).Patch("/", controllers.ProductUpdate(d.Products, logg))
				r.With(need(permissions.ProductDelete)).Delete("/", controllers.ProductDelete(d.Products, logg))

				r.With(need(permissions.ProductView)).Get("/tag", controllers.ProductTags(d.Products, logg))
				r.With(need(permissions.ProductUpdate)).Post("/tag", tags.Add(logg))
				r.With(need(permissions.ProductUpdate)).Delete("/tag/{tagId}", tags.Remove(logg))

				r.With(need(permissions.ProductView)).Get("/related", controllers.ProductRelated(d.Products, logg))
				r.With(need(permissions.ProductUpdate)).Post("/related", related.Add(logg))
				r.With(need(permissions.ProductUpdate)).Delete("/related/{relatedProductId}", related.Remove(logg))

				r.With(need(permissions.ProductView)).Get("/subProduct", controllers.ProductSubProducts(d.Products, logg))
				r.With(need(permissions.ProductUpdate)).Post("/subProduct", subs.Add(logg))
				r.With(need(permissions.ProductUpdate)).Delete("/subProduct/{subProductId}", subs.Remove(logg))

				r.With(need(permissions.MediaView)).Get("/media", controllers.ProductMedia(d.Products, logg))
				r.With(need(permissions.MediaUpdate)).Post("/media", controllers.ProductUploadMedia(d.Products, logg))
				r.With(need(permissions.MediaUpdate)).Patch("/media/{mediaId}", controllers.ProductUpdateMedia(d.Products, logg))
				r.With(need(permissions.MediaDelete)).Delete("/media/{mediaId}", controllers.ProductRemoveMedia(d.Products, logg))

				r.With(need(permissions.ProductUpdate)).Get("/file", controllers.ProductFiles(d.Products, logg))
				r.With(need(permissions.ProductUpdate)).Post("/file", controllers.ProductAddFile(d.Products, logg))
				r.With(need(permissions.ProductUpdate)).Delete("/file/{fileId}", controllers.ProductRemoveFile(d.Products, logg))
				r.With(need(permissions.OrderView)).Get("/file/{fileId}/download", controllers.ProductDownloadFile(d.Products, d.Orders, logg))
			})
		})

		r.Route("/discount", func(r chi.Router) {
			r.With(need(permissions.DiscountView)).Get("/", controllers.DiscountSearch(d.Discounts, logg))
			r.With(need(permissions.DiscountCreate)).Post("/", controllers.DiscountCreate(d.Discounts, logg))
			r.With(need(permissions.DiscountView)).Get("/{discountId}", controllers.DiscountGet(d.Discounts, logg))
			r.With(need(permissions.DiscountUpdate)).Patch("/{discountId}", controllers.DiscountUpdate(d.Discounts, logg))
			r.With(need(permissions.DiscountDelete)).Delete("/{discountId}", controllers.DiscountDelete(d.Discounts, logg))
		})

		r.Route("/user/{userId}", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireSelfOr("userId", logg, permissions.OrderUpdate))

				r.With(need(permissions.OrderView)).Get("/file", controllers.UserFiles(d.Orders, logg))

				r.Route("/order", func(r chi.Router) {
					// Inline so the rule matcher sees the full route pattern.
					once := middleware.Idempotency(d.Idempotency, logg)

					r.With(need(permissions.OrderView)).Get("/", controllers.OrderSearch(d.Orders, logg))
					r.With(need(permissions.OrderCreate)).Post("/", controllers.OrderCreate(d.Orders, logg))
					r.With(need(permissions.OrderPurchase), once).Post("/start", controllers.OrderStart(d.Orders, logg))
					r.With(need(permissions.OrderPurchase), once).Post("/finalize", controllers.OrderFinalize(d.Orders, logg))
					r.With(need(permissions.OrderPurchase), once).Post("/finalizeFree", controllers.OrderFinalizeFree(d.Orders, logg))

					r.With(need(permissions.OrderView)).Get("/{orderId}", controllers.OrderGet(d.Orders, logg))
					r.With(need(permissions.OrderUpdate)).Patch("/{orderId}", controllers.OrderUpdate(d.Orders, logg))
					r.With(need(permissions.OrderDelete)).Delete("/{orderId}", controllers.OrderDelete(d.Orders, logg))
					r.With(need(permissions.OrderView)).Get("/{orderId}/full", controllers.OrderGetFull(d.Orders, logg))
					r.With(need(permissions.OrderView)).Get("/{orderId}/item", controllers.OrderItems(d.Orders, logg))
				})
			})

			r.Route("/wishlist", func(r chi.Router) {
				r.Use(middleware.RequireSelfOr("userId", logg, permissions.WishlistDelete, permissions.ProductDisabled))

				r.With(need(permissions.WishlistView)).Get("/", controllers.WishlistGet(d.Wishlist, logg))
				r.With(need(permissions.WishlistCreate)).Post("/", controllers.WishlistAdd(d.Wishlist, logg))
				r.With(need(permissions.WishlistDelete)).Delete("/{productId}", controllers.WishlistRemove(d.Wishlist, logg))
			})
		})
	})

	return r
}
