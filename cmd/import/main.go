package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/internal/catalogimport"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/security"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "import"})
	_ = godotenv.Load()

	cfg, err := config.LoadTooling()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	only := flag.String("only", "all", "what to import: products|customers|all")
	productsPath := flag.String("products", cfg.Import.ProductsPath, "legacy products export")
	customersPath := flag.String("customers", cfg.Import.CustomersPath, "legacy customers export")
	flag.Parse()

	logg = logger.New(logger.Options{
		ServiceName: "import",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"only": *only,
	})

	switch *only {
	case "all", "products", "customers":
	default:
		fmt.Fprintln(os.Stderr, "unknown -only value:", *only)
		os.Exit(1)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	importer, err := catalogimport.New(dbClient.DB(), catalogimport.Options{
		Password: security.ParamsFromConfig(cfg.Password),
	}, logg)
	if err != nil {
		logg.Error(ctx, "failed to create importer", err)
		os.Exit(1)
	}

	var runErr error
	if *only != "customers" {
		runErr = multierr.Append(runErr, importProducts(ctx, logg, importer, *productsPath))
	}
	if *only != "products" {
		runErr = multierr.Append(runErr, importCustomers(ctx, logg, importer, *customersPath))
	}

	if runErr != nil {
		for _, err := range multierr.Errors(runErr) {
			logg.Error(ctx, "import record failed", err)
		}
		os.Exit(1)
	}
	logg.Info(ctx, "import finished")
}

func importProducts(ctx context.Context, logg *logger.Logger, im *catalogimport.Importer, path string) error {
	rows, err := catalogimport.LoadJSON[catalogimport.LegacyProduct](path)
	if err != nil {
		return err
	}
	summary, err := im.ImportProducts(ctx, rows)
	logSummary(ctx, logg, "products", summary)
	return err
}

func importCustomers(ctx context.Context, logg *logger.Logger, im *catalogimport.Importer, path string) error {
	rows, err := catalogimport.LoadJSON[catalogimport.LegacyCustomer](path)
	if err != nil {
		return err
	}
	summary, err := im.ImportCustomers(ctx, rows)
	logSummary(ctx, logg, "customers", summary)
	return err
}

func logSummary(ctx context.Context, logg *logger.Logger, stage string, s catalogimport.Summary) {
	logg.Info(logg.WithFields(ctx, map[string]any{
		"stage":         stage,
		"products":      s.Products,
		"media":         s.Media,
		"files":         s.Files,
		"related":       s.Related,
		"subProducts":   s.SubProducts,
		"customers":     s.Customers,
		"orders":        s.Orders,
		"wishlistItems": s.WishlistItems,
		"skipped":       s.Skipped,
	}), "import stage finished")
}
