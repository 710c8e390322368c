package products

import (
	"context"
	"strings"

	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists products, their media and files, and the tag, related
// and sub-product join tables.
type Repository struct {
	db          *gorm.DB
	Tags        *repo.Relation[models.Tag]
	Related     *repo.Relation[models.Product]
	SubProducts *repo.Relation[models.Product]
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
		Tags: repo.NewRelation[models.Tag](db, repo.RelationSpec{
			Table: "product_tags", OwnerColumn: "product_id", TargetColumn: "tag_id", TargetTable: "tags",
		}),
		Related: repo.NewRelation[models.Product](db, repo.RelationSpec{
			Table: "related_products", OwnerColumn: "product_id", TargetColumn: "related_product_id", TargetTable: "products",
		}),
		SubProducts: repo.NewRelation[models.Product](db, repo.RelationSpec{
			Table: "sub_products", OwnerColumn: "product_id", TargetColumn: "sub_product_id", TargetTable: "products",
		}),
	}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{
		db:          tx,
		Tags:        r.Tags.WithTx(tx),
		Related:     r.Related.WithTx(tx),
		SubProducts: r.SubProducts.WithTx(tx),
	}
}

func (r *Repository) applyFilter(query *gorm.DB, filter SearchFilter) *gorm.DB {
	if len(filter.IDs) > 0 {
		query = query.Where("products.id IN ?", filter.IDs)
	}
	if filter.SKU != "" {
		query = query.Where("products.sku = ?", filter.SKU)
	}
	if filter.URL != "" {
		query = query.Where("products.url = ?", filter.URL)
	}
	if filter.ProductType != "" {
		query = query.Where("products.product_type = ?", filter.ProductType)
	}
	if filter.Enabled != nil {
		query = query.Where("products.enabled = ?", *filter.Enabled)
	}
	if filter.Name != "" {
		query = query.Where("LOWER(products.name) LIKE ?", "%"+strings.ToLower(filter.Name)+"%")
	}
	if filter.TagID != nil {
		query = query.Where("EXISTS (SELECT 1 FROM product_tags pt WHERE pt.product_id = products.id AND pt.tag_id = ?)", *filter.TagID)
	}
	return query
}

func (r *Repository) Search(ctx context.Context, filter SearchFilter, page pagination.Params) ([]models.Product, int64, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.Product{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []models.Product
	err := query.Order("products.name ASC").Order("products.id ASC").
		Offset(page.Offset).Limit(page.PerPage).
		Find(&out).Error
	return out, total, err
}

// FindByIDs loads every product in ids in a single query. Unknown ids are
// skipped.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []models.Product
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("name ASC").Find(&out).Error
	return out, err
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) FindBySKUs(ctx context.Context, skus []string) ([]models.Product, error) {
	if len(skus) == 0 {
		return nil, nil
	}
	var out []models.Product
	err := r.db.WithContext(ctx).Where("sku IN ?", skus).Find(&out).Error
	return out, err
}

// FindByLegacyIDs resolves products carried over from the old store.
func (r *Repository) FindByLegacyIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []models.Product
	err := r.db.WithContext(ctx).Where("legacy_id IN ?", ids).Find(&out).Error
	return out, err
}

func (r *Repository) Create(ctx context.Context, p *models.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, changes map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(changes)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes the product and every row hanging off it.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, stmt := range []string{
			"DELETE FROM product_tags WHERE product_id = ?",
			"DELETE FROM related_products WHERE product_id = ? OR related_product_id = ?",
			"DELETE FROM sub_products WHERE product_id = ? OR sub_product_id = ?",
			"DELETE FROM product_files WHERE product_id = ?",
		} {
			args := []any{id}
			if strings.Count(stmt, "?") == 2 {
				args = append(args, id)
			}
			if err := tx.Exec(stmt, args...).Error; err != nil {
				return err
			}
		}
		res := tx.Where("id = ?", id).Delete(&models.Product{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("product_id = ?", id).Delete(&models.ProductMedia{}).Error
	})
}

// TagNames maps each product id to its tag names, sorted.
func (r *Repository) TagNames(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID][]string, error) {
	out := make(map[uuid.UUID][]string, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		ProductID uuid.UUID
		Name      string
	}
	err := r.db.WithContext(ctx).
		Table("product_tags pt").
		Select("pt.product_id, t.name").
		Joins("JOIN tags t ON t.id = pt.tag_id").
		Where("pt.product_id IN ?", productIDs).
		Order("t.name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ProductID] = append(out[row.ProductID], row.Name)
	}
	return out, nil
}

func (r *Repository) MediaByIDs(ctx context.Context, ids []uuid.UUID) ([]models.ProductMedia, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []models.ProductMedia
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error
	return out, err
}

func (r *Repository) AllTags(ctx context.Context) ([]models.Tag, error) {
	var out []models.Tag
	err := r.db.WithContext(ctx).Order("name ASC").Find(&out).Error
	return out, err
}

// EnsureTag returns the tag named name, creating it when missing.
func (r *Repository) EnsureTag(ctx context.Context, name string) (*models.Tag, error) {
	tag := models.Tag{Name: name}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&tag).Error
	if err != nil {
		return nil, err
	}
	var stored models.Tag
	if err := r.db.WithContext(ctx).Where("name = ?", name).Take(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *Repository) ListMedia(ctx context.Context, productID uuid.UUID) ([]models.ProductMedia, error) {
	var out []models.ProductMedia
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("sort_order ASC").Order("url ASC").
		Find(&out).Error
	return out, err
}

func (r *Repository) FindMedia(ctx context.Context, productID, mediaID uuid.UUID) (*models.ProductMedia, error) {
	var m models.ProductMedia
	err := r.db.WithContext(ctx).Where("id = ? AND product_id = ?", mediaID, productID).Take(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// InsertMedia stores m unless (product_id, url) already exists, and returns
// whichever row is now stored.
func (r *Repository) InsertMedia(ctx context.Context, m *models.ProductMedia) (*models.ProductMedia, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "product_id"}, {Name: "url"}}, DoNothing: true}).
		Create(m).Error
	if err != nil {
		return nil, err
	}
	var stored models.ProductMedia
	err = r.db.WithContext(ctx).Where("product_id = ? AND url = ?", m.ProductID, m.URL).Take(&stored).Error
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *Repository) UpdateMedia(ctx context.Context, productID, mediaID uuid.UUID, changes map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.ProductMedia{}).
		Where("id = ? AND product_id = ?", mediaID, productID).
		Updates(changes)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteMedia removes the media row and clears product image pointers at it.
func (r *Repository) DeleteMedia(ctx context.Context, productID, mediaID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Product{}).Where("thumbnail_id = ?", mediaID).
			Update("thumbnail_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Product{}).Where("main_image_id = ?", mediaID).
			Update("main_image_id", nil).Error; err != nil {
			return err
		}
		return tx.Where("id = ? AND product_id = ?", mediaID, productID).Delete(&models.ProductMedia{}).Error
	})
}

func (r *Repository) ListFiles(ctx context.Context, productID uuid.UUID) ([]models.ProductFile, error) {
	var out []models.ProductFile
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).Order("url ASC").Find(&out).Error
	return out, err
}

func (r *Repository) FindFile(ctx context.Context, productID, fileID uuid.UUID) (*models.ProductFile, error) {
	var f models.ProductFile
	if err := r.db.WithContext(ctx).Where("id = ? AND product_id = ?", fileID, productID).Take(&f).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

// InsertFile stores f, returning the existing row on a (product_id, url) clash.
func (r *Repository) InsertFile(ctx context.Context, f *models.ProductFile) (*models.ProductFile, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "product_id"}, {Name: "url"}}, DoNothing: true}).
		Create(f).Error
	if err != nil {
		return nil, err
	}
	var stored models.ProductFile
	if err := r.db.WithContext(ctx).Where("product_id = ? AND url = ?", f.ProductID, f.URL).Take(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *Repository) DeleteFile(ctx context.Context, productID, fileID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ? AND product_id = ?", fileID, productID).Delete(&models.ProductFile{}).Error
}
