package products

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/visibility"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ObjectStore is the slice of the GCS client the catalog needs.
type ObjectStore interface {
	Upload(ctx context.Context, object, contentType string, body io.Reader) error
	Delete(ctx context.Context, object string) error
	SignedReadURL(object string, ttl time.Duration) (string, error)
	PublicURL(object string) string
}

// Options locates product objects in the bucket.
type Options struct {
	MediaPrefix       string
	FilesPrefix       string
	DownloadURLExpiry time.Duration
}

// Service is the product catalog.
type Service interface {
	Search(ctx context.Context, filter SearchFilter, page pagination.Params, viewer visibility.Viewer) (pagination.Page[ProductFull], error)
	Get(ctx context.Context, id uuid.UUID, viewer visibility.Viewer) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	Create(ctx context.Context, input CreateInput) (*models.Product, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Product, error)
	Remove(ctx context.Context, id uuid.UUID) error

	Tags(ctx context.Context, productID uuid.UUID) ([]models.Tag, error)
	AddTag(ctx context.Context, productID, tagID uuid.UUID) error
	RemoveTag(ctx context.Context, productID, tagID uuid.UUID) error
	AllTags(ctx context.Context) ([]models.Tag, error)

	Related(ctx context.Context, productID uuid.UUID, viewer visibility.Viewer) ([]models.Product, error)
	AddRelated(ctx context.Context, productID, relatedID uuid.UUID) error
	RemoveRelated(ctx context.Context, productID, relatedID uuid.UUID) error

	SubProducts(ctx context.Context, productID uuid.UUID, viewer visibility.Viewer) ([]models.Product, error)
	AddSubProduct(ctx context.Context, productID, subProductID uuid.UUID) error
	RemoveSubProduct(ctx context.Context, productID, subProductID uuid.UUID) error

	Media(ctx context.Context, productID uuid.UUID) ([]models.ProductMedia, error)
	UploadMedia(ctx context.Context, productID uuid.UUID, upload Upload) (*models.ProductMedia, error)
	UpdateMedia(ctx context.Context, productID, mediaID uuid.UUID, input MediaUpdateInput) (*models.ProductMedia, error)
	RemoveMedia(ctx context.Context, productID, mediaID uuid.UUID) error

	Files(ctx context.Context, productID uuid.UUID) ([]models.ProductFile, error)
	AddFile(ctx context.Context, productID uuid.UUID, folder string, upload Upload) (*models.ProductFile, error)
	RemoveFile(ctx context.Context, productID, fileID uuid.UUID) error
	DownloadURL(ctx context.Context, productID, fileID uuid.UUID) (string, error)
}

type service struct {
	repo  *Repository
	store ObjectStore
	opts  Options
	logg  *logger.Logger
}

func NewService(repo *Repository, store ObjectStore, opts Options, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, errors.New("product repository required")
	}
	if store == nil {
		return nil, errors.New("object store required")
	}
	if opts.DownloadURLExpiry <= 0 {
		opts.DownloadURLExpiry = time.Hour
	}
	opts.MediaPrefix = strings.Trim(opts.MediaPrefix, "/")
	opts.FilesPrefix = strings.Trim(opts.FilesPrefix, "/")
	return &service{repo: repo, store: store, opts: opts, logg: logg}, nil
}

func (s *service) Search(ctx context.Context, filter SearchFilter, page pagination.Params, viewer visibility.Viewer) (pagination.Page[ProductFull], error) {
	page = page.Normalize()
	filter.Enabled = visibility.EnabledFilter(viewer, filter.Enabled)

	items, total, err := s.repo.Search(ctx, filter, page)
	if err != nil {
		return pagination.Page[ProductFull]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search products")
	}
	full, err := s.decorate(ctx, items)
	if err != nil {
		return pagination.Page[ProductFull]{}, err
	}
	return pagination.NewPage(full, page, total), nil
}

// decorate attaches tag names and thumbnail URLs in two batched queries.
func (s *service) decorate(ctx context.Context, items []models.Product) ([]ProductFull, error) {
	ids := make([]uuid.UUID, 0, len(items))
	thumbIDs := make([]uuid.UUID, 0, len(items))
	for _, p := range items {
		ids = append(ids, p.ID)
		if p.ThumbnailID != nil {
			thumbIDs = append(thumbIDs, *p.ThumbnailID)
		}
	}

	tags, err := s.repo.TagNames(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product tags")
	}
	media, err := s.repo.MediaByIDs(ctx, thumbIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product thumbnails")
	}
	thumbs := make(map[uuid.UUID]string, len(media))
	for _, m := range media {
		thumbs[m.ID] = s.store.PublicURL(s.mediaKey(m.ProductID, m.URL))
	}

	out := make([]ProductFull, 0, len(items))
	for _, p := range items {
		full := ProductFull{Product: p, Tags: tags[p.ID]}
		if full.Tags == nil {
			full.Tags = []string{}
		}
		if p.ThumbnailID != nil {
			if u, ok := thumbs[*p.ThumbnailID]; ok {
				full.ThumbnailURL = &u
			}
		}
		out = append(out, full)
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID, viewer visibility.Viewer) (*models.Product, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupErr(err, "product not found", "load product")
	}
	if err := visibility.EnsureProductVisible(p, viewer); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *service) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	out, err := s.repo.FindByIDs(ctx, dedupeIDs(ids))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	return out, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Product, error) {
	name := strings.TrimSpace(input.Name)
	sku := strings.TrimSpace(input.SKU)
	if name == "" || sku == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name and sku are required")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	productType := input.ProductType
	if productType == "" {
		productType = enums.ProductTypeDigital
	}
	if !productType.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid product type %q", productType)
	}
	url := Slugify(input.URL)
	if url == "" {
		url = Slugify(name)
	}
	enabled := true
	if input.Enabled != nil {
		enabled = *input.Enabled
	}

	p := &models.Product{
		Name:               name,
		SKU:                sku,
		URL:                url,
		Description:        input.Description,
		DescriptionShort:   input.DescriptionShort,
		ProductType:        productType,
		SubscriptionOnly:   input.SubscriptionOnly,
		ReleaseDate:        input.ReleaseDate,
		BrokeredAt:         input.BrokeredAt,
		BrokerageProductID: input.BrokerageProductID,
		Price:              input.Price.Round(2),
		Enabled:            enabled,
		MetaTitle:          input.MetaTitle,
		MetaDescription:    input.MetaDescription,
		MetaKeywords:       input.MetaKeywords,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "a product with this sku or url already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return p, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Product, error) {
	changes, err := productChanges(input)
	if err != nil {
		return nil, err
	}
	if len(changes) > 0 {
		if err := s.repo.Update(ctx, id, changes); err != nil {
			if db.IsUniqueViolation(err, "") {
				return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "a product with this sku or url already exists")
			}
			return nil, mapLookupErr(err, "product not found", "update product")
		}
	}
	return s.Get(ctx, id, visibility.Viewer{SeeDisabled: true})
}

func productChanges(input UpdateInput) (map[string]any, error) {
	changes := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be blank")
		}
		changes["name"] = name
	}
	if input.SKU != nil {
		sku := strings.TrimSpace(*input.SKU)
		if sku == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku cannot be blank")
		}
		changes["sku"] = sku
	}
	if input.URL != nil {
		url := Slugify(*input.URL)
		if url == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "url cannot be blank")
		}
		changes["url"] = url
	}
	if input.ProductType != nil {
		if !input.ProductType.IsValid() {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid product type %q", *input.ProductType)
		}
		changes["product_type"] = *input.ProductType
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
		}
		changes["price"] = input.Price.Round(2)
	}
	setIf(changes, "description", input.Description)
	setIf(changes, "description_short", input.DescriptionShort)
	setIf(changes, "subscription_only", input.SubscriptionOnly)
	setIf(changes, "release_date", input.ReleaseDate)
	setIf(changes, "brokered_at", input.BrokeredAt)
	setIf(changes, "brokerage_product_id", input.BrokerageProductID)
	setIf(changes, "enabled", input.Enabled)
	setIf(changes, "meta_title", input.MetaTitle)
	setIf(changes, "meta_description", input.MetaDescription)
	setIf(changes, "meta_keywords", input.MetaKeywords)
	setIf(changes, "thumbnail_id", input.ThumbnailID)
	setIf(changes, "main_image_id", input.MainImageID)
	return changes, nil
}

func setIf[T any](changes map[string]any, column string, v *T) {
	if v != nil {
		changes[column] = *v
	}
}

func (s *service) Remove(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapLookupErr(err, "product not found", "delete product")
	}
	return nil
}

func (s *service) Tags(ctx context.Context, productID uuid.UUID) ([]models.Tag, error) {
	out, err := s.repo.Tags.Get(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product tags")
	}
	return out, nil
}

func (s *service) AddTag(ctx context.Context, productID, tagID uuid.UUID) error {
	return wrapRelationErr(s.repo.Tags.Add(ctx, productID, tagID), "add product tag")
}

func (s *service) RemoveTag(ctx context.Context, productID, tagID uuid.UUID) error {
	return wrapRelationErr(s.repo.Tags.Remove(ctx, productID, tagID), "remove product tag")
}

func (s *service) AllTags(ctx context.Context) ([]models.Tag, error) {
	out, err := s.repo.AllTags(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tags")
	}
	return out, nil
}

func (s *service) Related(ctx context.Context, productID uuid.UUID, viewer visibility.Viewer) ([]models.Product, error) {
	out, err := s.repo.Related.Get(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load related products")
	}
	return visibility.FilterProducts(out, viewer), nil
}

func (s *service) AddRelated(ctx context.Context, productID, relatedID uuid.UUID) error {
	if productID == relatedID {
		return pkgerrors.New(pkgerrors.CodeValidation, "a product cannot be related to itself")
	}
	return wrapRelationErr(s.repo.Related.Add(ctx, productID, relatedID), "add related product")
}

func (s *service) RemoveRelated(ctx context.Context, productID, relatedID uuid.UUID) error {
	return wrapRelationErr(s.repo.Related.Remove(ctx, productID, relatedID), "remove related product")
}

func (s *service) SubProducts(ctx context.Context, productID uuid.UUID, viewer visibility.Viewer) ([]models.Product, error) {
	out, err := s.repo.SubProducts.Get(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sub-products")
	}
	return visibility.FilterProducts(out, viewer), nil
}

func (s *service) AddSubProduct(ctx context.Context, productID, subProductID uuid.UUID) error {
	if productID == subProductID {
		return pkgerrors.New(pkgerrors.CodeValidation, "a bundle cannot contain itself")
	}
	return wrapRelationErr(s.repo.SubProducts.Add(ctx, productID, subProductID), "add sub-product")
}

func (s *service) RemoveSubProduct(ctx context.Context, productID, subProductID uuid.UUID) error {
	return wrapRelationErr(s.repo.SubProducts.Remove(ctx, productID, subProductID), "remove sub-product")
}

func wrapRelationErr(err error, action string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrInvalidValue):
		return pkgerrors.New(pkgerrors.CodeValidation, "both ids are required")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
	}
}

func mapLookupErr(err error, notFound, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Slugify lowercases s and collapses every run of non alphanumerics to "-".
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
