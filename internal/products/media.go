package products

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const sniffLen = 3072

var allowedMediaTypes = map[string]struct{}{
	"image/png":  {},
	"image/jpeg": {},
	"image/webp": {},
	"image/gif":  {},
}

// media/product/<productId>/<name>
func (s *service) mediaKey(productID uuid.UUID, name string) string {
	return path.Join(s.opts.MediaPrefix, "product", productID.String(), name)
}

// products/<folder>/<file>
func (s *service) fileKey(url string) string {
	return path.Join(s.opts.FilesPrefix, url)
}

func (s *service) withPublicURL(m models.ProductMedia) models.ProductMedia {
	m.PublicURL = s.store.PublicURL(s.mediaKey(m.ProductID, m.URL))
	return m
}

func (s *service) Media(ctx context.Context, productID uuid.UUID) ([]models.ProductMedia, error) {
	rows, err := s.repo.ListMedia(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list product media")
	}
	for i := range rows {
		rows[i] = s.withPublicURL(rows[i])
	}
	return rows, nil
}

// UploadMedia stores the image then records it. Uploading a name that already
// exists for the product overwrites the object and returns the existing row.
func (s *service) UploadMedia(ctx context.Context, productID uuid.UUID, upload Upload) (*models.ProductMedia, error) {
	name, err := cleanFileName(upload.Name)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.FindByID(ctx, productID); err != nil {
		return nil, mapLookupErr(err, "product not found", "load product")
	}

	body, contentType, err := sniff(upload.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload")
	}
	if _, ok := allowedMediaTypes[contentType]; !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "media must be an image, got %s", contentType)
	}

	key := s.mediaKey(productID, name)
	if err := s.store.Upload(ctx, key, contentType, body); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload media")
	}

	stored, err := s.repo.InsertMedia(ctx, &models.ProductMedia{ProductID: productID, URL: name, Caption: name})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record media")
	}
	out := s.withPublicURL(*stored)
	return &out, nil
}

func (s *service) UpdateMedia(ctx context.Context, productID, mediaID uuid.UUID, input MediaUpdateInput) (*models.ProductMedia, error) {
	changes := map[string]any{}
	setIf(changes, "caption", input.Caption)
	setIf(changes, "sort_order", input.Order)
	if len(changes) > 0 {
		if err := s.repo.UpdateMedia(ctx, productID, mediaID, changes); err != nil {
			return nil, mapLookupErr(err, "media not found", "update media")
		}
	}
	m, err := s.repo.FindMedia(ctx, productID, mediaID)
	if err != nil {
		return nil, mapLookupErr(err, "media not found", "load media")
	}
	out := s.withPublicURL(*m)
	return &out, nil
}

// RemoveMedia deletes the object first; when that fails the row is kept so the
// object is never orphaned.
func (s *service) RemoveMedia(ctx context.Context, productID, mediaID uuid.UUID) error {
	m, err := s.repo.FindMedia(ctx, productID, mediaID)
	if err != nil {
		return mapLookupErr(err, "media not found", "load media")
	}
	if err := s.store.Delete(ctx, s.mediaKey(productID, m.URL)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to remove file from the media store")
	}
	if err := s.repo.DeleteMedia(ctx, productID, mediaID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete media")
	}
	return nil
}

func (s *service) Files(ctx context.Context, productID uuid.UUID) ([]models.ProductFile, error) {
	out, err := s.repo.ListFiles(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list product files")
	}
	return out, nil
}

func (s *service) AddFile(ctx context.Context, productID uuid.UUID, folder string, upload Upload) (*models.ProductFile, error) {
	name, err := cleanFileName(upload.Name)
	if err != nil {
		return nil, err
	}
	folder = strings.Trim(path.Clean("/"+strings.TrimSpace(folder)), "/")
	if folder == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "folder is required")
	}
	if _, err := s.repo.FindByID(ctx, productID); err != nil {
		return nil, mapLookupErr(err, "product not found", "load product")
	}
	if upload.Body == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file is required")
	}

	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	url := folder + "/" + name
	if err := s.store.Upload(ctx, s.fileKey(url), contentType, upload.Body); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload file")
	}
	stored, err := s.repo.InsertFile(ctx, &models.ProductFile{ProductID: productID, URL: url})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record file")
	}
	return stored, nil
}

func (s *service) RemoveFile(ctx context.Context, productID, fileID uuid.UUID) error {
	f, err := s.repo.FindFile(ctx, productID, fileID)
	if err != nil {
		return mapLookupErr(err, "file not found", "load file")
	}
	if err := s.store.Delete(ctx, s.fileKey(f.URL)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to remove file from storage")
	}
	if err := s.repo.DeleteFile(ctx, productID, fileID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete file")
	}
	return nil
}

// DownloadURL signs a short lived GET URL. Callers check purchase rights.
func (s *service) DownloadURL(ctx context.Context, productID, fileID uuid.UUID) (string, error) {
	f, err := s.repo.FindFile(ctx, productID, fileID)
	if err != nil {
		return "", mapLookupErr(err, "file not found", "load file")
	}
	url, err := s.store.SignedReadURL(s.fileKey(f.URL), s.opts.DownloadURLExpiry)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign download url")
	}
	return url, nil
}

func cleanFileName(name string) (string, error) {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "" || base == "." || base == "/" || base == ".." {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "file name is required")
	}
	return base, nil
}

// sniff detects the content type from the first bytes and returns a reader
// that still yields the whole body.
func sniff(r io.Reader) (io.Reader, string, error) {
	if r == nil {
		return nil, "", errors.New("empty upload")
	}
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, "", err
	}
	if n == 0 {
		return nil, "", errors.New("empty upload")
	}
	head = head[:n]
	mt := mimetype.Detect(head)
	contentType, _, _ := strings.Cut(mt.String(), ";")
	return io.MultiReader(bytes.NewReader(head), r), contentType, nil
}
