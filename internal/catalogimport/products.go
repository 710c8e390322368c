package catalogimport

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

const legacyDateLayout = "2006-01-02 15:04:05"

var brokers = map[string]string{
	"121": "Daz",
	"144": "HiveWire",
	"122": "Renderosity",
	"123": "RuntimeDNA",
}

// SubProductMatch selects bundle members. Empty fields match everything.
type SubProductMatch struct {
	Name string
	SKU  string
}

// BundleRule attaches every product matching any of Matches to the product
// whose name contains Bundle.
type BundleRule struct {
	Bundle  string
	Matches []SubProductMatch
}

func DefaultBundles() []BundleRule {
	skus := func(values ...string) []SubProductMatch {
		out := make([]SubProductMatch, 0, len(values))
		for _, v := range values {
			out = append(out, SubProductMatch{SKU: v})
		}
		return out
	}
	return []BundleRule{
		{Bundle: "All Licenses", Matches: []SubProductMatch{{Name: "License", SKU: "SKU-XD4"}}},
		{Bundle: "3D Universe Girls:  CrossDresser Bundle", Matches: skus("SKU-XD4Sara", "SKU-XD4Sadie", "SKU-XD4Skye", "SKU-XD4Staci")},
		{Bundle: "Koshini/Ichiro:  CrossDresser Bundle", Matches: skus("SKU-XD4Koshini", "SKU-XD4Ichiro", "SKU-XD4Ichiro2", "SKU-XD4Koshini2")},
		{Bundle: "Nursoda Females: CrossDresser Bundle", Matches: skus("SKU-XD4Kena", "SKU-XD4KaliKelm", "SKU-XD4Bonga", "SKU-XD4EEPO")},
		{Bundle: "Daz Gen 3 Females: CrossDresser Bundle", Matches: skus("SKU-XD4V3", "SKU-XD4SP3", "SKU-XD4Laura3", "SKU-XD4Aiko3")},
		{Bundle: "Daz Gen 3 Males: CrossDresser Bundle", Matches: skus("SKU-XD4Luke3", "SKU-XD4Hiro3", "SKU-XD4Mike3", "SKU-XD4DAVID")},
		{Bundle: "3D Universe Guys:  CrossDresser Bundle", Matches: skus("SKU-XD4Sam", "SKU-XD4Ug", "SKU-XD4Gramps", "SKU-XD4Dennis")},
	}
}

// ImportProducts writes products with their media, files and category tags,
// then links related products and bundles. Products whose sku already exists
// are skipped but still take part in linking.
func (im *Importer) ImportProducts(ctx context.Context, legacy []LegacyProduct) (Summary, error) {
	var (
		summary Summary
		errs    error
	)

	skus := make([]string, 0, len(legacy))
	for _, lp := range legacy {
		skus = append(skus, strings.TrimSpace(lp.SKU))
	}
	existing, err := im.products.FindBySKUs(ctx, skus)
	if err != nil {
		return summary, err
	}
	bySKU := map[string]models.Product{}
	for _, p := range existing {
		bySKU[p.SKU] = p
	}

	byLegacyID := map[string]uuid.UUID{}
	seenURLs := map[string]bool{}
	for _, lp := range legacy {
		sku := strings.TrimSpace(lp.SKU)
		if p, ok := bySKU[sku]; ok {
			byLegacyID[lp.EntityID] = p.ID
			seenURLs[p.URL] = true
			summary.Skipped++
			continue
		}

		product := im.mapProduct(lp)
		if seenURLs[product.URL] {
			product.URL = product.URL + "-" + sku
		}
		seenURLs[product.URL] = true

		counts, err := im.writeProduct(ctx, lp, product)
		if err != nil {
			errs = multierr.Append(errs, recordError{kind: "product", key: sku, err: err})
			continue
		}
		bySKU[sku] = *product
		byLegacyID[lp.EntityID] = product.ID
		summary.Products++
		summary.Media += counts.media
		summary.Files += counts.files
		im.logg.Info(im.logg.WithField(ctx, "sku", sku), "imported product")
	}

	for _, lp := range legacy {
		ownerID, ok := byLegacyID[lp.EntityID]
		if !ok {
			continue
		}
		for _, rel := range lp.RelatedProducts {
			targetID, ok := byLegacyID[rel.LinkedProductID]
			if !ok || targetID == ownerID {
				continue
			}
			if err := im.products.Related.Add(ctx, ownerID, targetID); err != nil {
				errs = multierr.Append(errs, recordError{kind: "related", key: lp.SKU, err: err})
				continue
			}
			summary.Related++
		}
	}

	linked, err := im.linkBundles(ctx, bySKU)
	summary.SubProducts = linked
	errs = multierr.Append(errs, err)
	return summary, errs
}

func (im *Importer) mapProduct(lp LegacyProduct) *models.Product {
	productType := enums.ProductTypeGrouped
	if lp.TypeID == "downloadable" {
		productType = enums.ProductTypeDigital
	}
	price, err := decimal.NewFromString(strings.TrimSpace(lp.Price))
	if err != nil {
		price = decimal.Zero
	}
	p := &models.Product{
		ID:                 uuid.New(),
		Name:               strings.TrimSpace(lp.Name),
		SKU:                strings.TrimSpace(lp.SKU),
		URL:                strings.TrimSpace(lp.URLKey),
		Description:        im.markdown(lp.Description),
		DescriptionShort:   im.markdown(lp.ShortDescription),
		ProductType:        productType,
		SubscriptionOnly:   lp.BackstagePassOnly == "1",
		BrokerageProductID: nonEmpty(lp.BrokerageProductID),
		Price:              price.Truncate(2),
		Enabled:            lp.Status == "1",
		MetaTitle:          nonEmpty(lp.MetaTitle),
		MetaDescription:    nonEmpty(lp.MetaDescription),
		MetaKeywords:       nonEmpty(lp.MetaKeyword),
	}
	if p.URL == "" {
		p.URL = strings.ToLower(p.SKU)
	}
	if lp.ExclusiveAt != nil {
		if broker, ok := brokers[strings.TrimSpace(*lp.ExclusiveAt)]; ok {
			p.BrokeredAt = &broker
		}
	}
	if released, err := time.Parse(legacyDateLayout, strings.TrimSpace(lp.NewsFromDate)); err == nil {
		p.ReleaseDate = &released
	}
	if id, ok := parseLegacyID(lp.EntityID); ok {
		p.LegacyID = &id
	}
	return p
}

type productCounts struct {
	media int
	files int
}

func (im *Importer) writeProduct(ctx context.Context, lp LegacyProduct, product *models.Product) (productCounts, error) {
	var counts productCounts
	err := im.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := im.products.WithTx(tx)
		if err := repo.Create(ctx, product); err != nil {
			return err
		}

		mediaByURL := map[string]uuid.UUID{}
		addMedia := func(file, caption string, order int) error {
			url := baseName(file)
			if url == "" {
				return nil
			}
			if _, ok := mediaByURL[url]; ok {
				return nil
			}
			stored, err := repo.InsertMedia(ctx, &models.ProductMedia{ProductID: product.ID, URL: url, Caption: caption, Order: order})
			if err != nil {
				return err
			}
			mediaByURL[url] = stored.ID
			counts.media++
			return nil
		}
		for _, img := range lp.Images {
			position, _ := strconv.Atoi(strings.TrimSpace(img.Position))
			if err := addMedia(img.File, img.Label, position); err != nil {
				return err
			}
		}
		changes := map[string]any{}
		if hasImage(lp.Thumbnail) {
			if err := addMedia(lp.Thumbnail, derefString(lp.ThumbnailLabel), 0); err != nil {
				return err
			}
			changes["thumbnail_id"] = mediaByURL[baseName(lp.Thumbnail)]
		}
		if hasImage(lp.Image) {
			if err := addMedia(lp.Image, derefString(lp.ImageLabel), 0); err != nil {
				return err
			}
			changes["main_image_id"] = mediaByURL[baseName(lp.Image)]
		}
		if len(changes) > 0 {
			if err := repo.Update(ctx, product.ID, changes); err != nil {
				return err
			}
		}

		for _, link := range lp.DownloadableLinks {
			url := strings.Trim(strings.TrimSpace(link.LinkURL), "/")
			if url == "" {
				continue
			}
			if _, err := repo.InsertFile(ctx, &models.ProductFile{ProductID: product.ID, URL: url}); err != nil {
				return err
			}
			counts.files++
		}

		for _, category := range lp.Categories {
			name := strings.TrimSpace(category.Name)
			if name == "" {
				continue
			}
			tag, err := repo.EnsureTag(ctx, name)
			if err != nil {
				return err
			}
			if err := repo.Tags.Add(ctx, product.ID, tag.ID); err != nil {
				return err
			}
		}
		return nil
	})
	return counts, err
}

func (im *Importer) linkBundles(ctx context.Context, bySKU map[string]models.Product) (int, error) {
	var (
		linked int
		errs   error
	)
	for _, rule := range im.opts.Bundles {
		var bundle *models.Product
		for _, p := range bySKU {
			if strings.Contains(p.Name, rule.Bundle) {
				p := p
				bundle = &p
				break
			}
		}
		if bundle == nil {
			continue
		}
		for _, p := range bySKU {
			if p.ID == bundle.ID || !matchesAny(p, rule.Matches) {
				continue
			}
			if err := im.products.SubProducts.Add(ctx, bundle.ID, p.ID); err != nil {
				errs = multierr.Append(errs, recordError{kind: "bundle", key: rule.Bundle, err: err})
				continue
			}
			linked++
		}
	}
	return linked, errs
}

func matchesAny(p models.Product, matches []SubProductMatch) bool {
	for _, m := range matches {
		if (m.Name == "" || strings.Contains(p.Name, m.Name)) && (m.SKU == "" || strings.Contains(p.SKU, m.SKU)) {
			return true
		}
	}
	return false
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}
