package products

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/visibility"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

type fakeStore struct {
	mu        sync.Mutex
	objects   map[string]string
	deleteErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string]string{}}
}

func (f *fakeStore) Upload(_ context.Context, object, contentType string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[object] = contentType + ":" + string(data)
	return nil
}

func (f *fakeStore) Delete(_ context.Context, object string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, object)
	return nil
}

func (f *fakeStore) SignedReadURL(object string, ttl time.Duration) (string, error) {
	return "https://signed.example/" + object + "?ttl=" + ttl.String(), nil
}

func (f *fakeStore) PublicURL(object string) string {
	return "https://cdn.example/" + object
}

func newTestService(t *testing.T) (Service, *Repository, *fakeStore) {
	t.Helper()
	repo := NewRepository(dbtest.Open(t))
	store := newFakeStore()
	svc, err := NewService(repo, store, Options{MediaPrefix: "media", FilesPrefix: "products/"}, nil)
	require.NoError(t, err)
	return svc, repo, store
}

func createProduct(t *testing.T, svc Service, name, sku, price string, enabled bool) *models.Product {
	t.Helper()
	p, err := svc.Create(context.Background(), CreateInput{
		Name:    name,
		SKU:     sku,
		Price:   decimal.RequireFromString(price),
		Enabled: &enabled,
	})
	require.NoError(t, err)
	return p
}

func TestCreateDefaultsAndConflicts(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	p := createProduct(t, svc, "Cool Product!", "sku-1", "10.005", true)
	assert.Equal(t, "cool-product", p.URL)
	assert.Equal(t, enums.ProductTypeDigital, p.ProductType)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("10.01")))

	_, err := svc.Create(ctx, CreateInput{Name: "Other", SKU: "sku-1", Price: decimal.NewFromInt(1)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	_, err = svc.Create(ctx, CreateInput{Name: "", SKU: "x"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Create(ctx, CreateInput{Name: "n", SKU: "neg", Price: decimal.NewFromInt(-1)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSearchHidesDisabledAndDecorates(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	visible := createProduct(t, svc, "Alpha", "a", "10", true)
	createProduct(t, svc, "Beta", "b", "5", false)

	tag, err := repo.EnsureTag(ctx, "Fantasy")
	require.NoError(t, err)
	require.NoError(t, svc.AddTag(ctx, visible.ID, tag.ID))

	media, err := svc.UploadMedia(ctx, visible.ID, Upload{Name: "thumb.png", Body: bytes.NewReader(pngHeader)})
	require.NoError(t, err)
	_, err = svc.Update(ctx, visible.ID, UpdateInput{ThumbnailID: &media.ID})
	require.NoError(t, err)

	page, err := svc.Search(ctx, SearchFilter{}, pagination.Params{}, visibility.Viewer{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, []string{"Fantasy"}, page.Items[0].Tags)
	require.NotNil(t, page.Items[0].ThumbnailURL)
	assert.Equal(t, "https://cdn.example/media/product/"+visible.ID.String()+"/thumb.png", *page.Items[0].ThumbnailURL)

	page, err = svc.Search(ctx, SearchFilter{}, pagination.Params{}, visibility.Viewer{SeeDisabled: true})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, []string{}, page.Items[1].Tags)

	page, err = svc.Search(ctx, SearchFilter{TagID: &tag.ID}, pagination.Params{}, visibility.Viewer{SeeDisabled: true})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}

func TestGetHidesDisabledProducts(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	hidden := createProduct(t, svc, "Hidden", "h", "1", false)

	_, err := svc.Get(ctx, hidden.ID, visibility.Viewer{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	got, err := svc.Get(ctx, hidden.ID, visibility.Viewer{SeeDisabled: true})
	require.NoError(t, err)
	assert.Equal(t, "Hidden", got.Name)

	_, err = svc.Get(ctx, uuid.New(), visibility.Viewer{SeeDisabled: true})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestFindByIDsDropsUnknownIDs(t *testing.T) {
	svc, _, _ := newTestService(t)
	p1 := createProduct(t, svc, "One", "1", "10", true)
	p2 := createProduct(t, svc, "Two", "2", "5", true)

	got, err := svc.FindByIDs(context.Background(), []uuid.UUID{p1.ID, uuid.New(), p2.ID, p1.ID})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestUpdateAndRemove(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	p := createProduct(t, svc, "Old", "old", "3", true)

	name := "New"
	price := decimal.RequireFromString("4.50")
	disabled := false
	updated, err := svc.Update(ctx, p.ID, UpdateInput{Name: &name, Price: &price, Enabled: &disabled})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Name)
	assert.False(t, updated.Enabled)
	assert.True(t, updated.Price.Equal(price))

	blank := " "
	_, err = svc.Update(ctx, p.ID, UpdateInput{Name: &blank})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Update(ctx, uuid.New(), UpdateInput{Name: &name})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	require.NoError(t, svc.Remove(ctx, p.ID))
	assert.True(t, pkgerrors.IsCode(svc.Remove(ctx, p.ID), pkgerrors.CodeNotFound))
}

func TestRelatedAndSubProducts(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	bundle := createProduct(t, svc, "Bundle", "bundle", "20", true)
	partA := createProduct(t, svc, "Part A", "part-a", "10", true)
	partB := createProduct(t, svc, "Part B", "part-b", "10", false)

	require.NoError(t, svc.AddSubProduct(ctx, bundle.ID, partA.ID))
	require.NoError(t, svc.AddSubProduct(ctx, bundle.ID, partB.ID))
	require.NoError(t, svc.AddSubProduct(ctx, bundle.ID, partA.ID))

	subs, err := svc.SubProducts(ctx, bundle.ID, visibility.Viewer{})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, partA.ID, subs[0].ID)

	subs, err = svc.SubProducts(ctx, bundle.ID, visibility.Viewer{SeeDisabled: true})
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	assert.True(t, pkgerrors.IsCode(svc.AddSubProduct(ctx, bundle.ID, bundle.ID), pkgerrors.CodeValidation))
	assert.True(t, pkgerrors.IsCode(svc.AddRelated(ctx, bundle.ID, uuid.Nil), pkgerrors.CodeValidation))

	require.NoError(t, svc.AddRelated(ctx, bundle.ID, partA.ID))
	related, err := svc.Related(ctx, bundle.ID, visibility.Viewer{})
	require.NoError(t, err)
	assert.Len(t, related, 1)
	require.NoError(t, svc.RemoveRelated(ctx, bundle.ID, partA.ID))
	related, err = svc.Related(ctx, bundle.ID, visibility.Viewer{})
	require.NoError(t, err)
	assert.Empty(t, related)
}

func TestUploadMediaValidatesAndDedupes(t *testing.T) {
	svc, _, store := newTestService(t)
	ctx := context.Background()
	p := createProduct(t, svc, "Pic", "pic", "1", true)

	_, err := svc.UploadMedia(ctx, p.ID, Upload{Name: "notes.txt", Body: bytes.NewReader([]byte("plain text"))})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	first, err := svc.UploadMedia(ctx, p.ID, Upload{Name: "../../cover.png", Body: bytes.NewReader(pngHeader)})
	require.NoError(t, err)
	assert.Equal(t, "cover.png", first.URL)
	assert.Equal(t, "cover.png", first.Caption)

	key := "media/product/" + p.ID.String() + "/cover.png"
	assert.Contains(t, store.objects[key], "image/png:")
	assert.Equal(t, string(pngHeader), store.objects[key][len("image/png:"):])

	second, err := svc.UploadMedia(ctx, p.ID, Upload{Name: "cover.png", Body: bytes.NewReader(pngHeader)})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = svc.UploadMedia(ctx, uuid.New(), Upload{Name: "cover.png", Body: bytes.NewReader(pngHeader)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateAndRemoveMedia(t *testing.T) {
	svc, repo, store := newTestService(t)
	ctx := context.Background()
	p := createProduct(t, svc, "Pic", "pic", "1", true)
	m, err := svc.UploadMedia(ctx, p.ID, Upload{Name: "a.png", Body: bytes.NewReader(pngHeader)})
	require.NoError(t, err)
	_, err = svc.Update(ctx, p.ID, UpdateInput{ThumbnailID: &m.ID})
	require.NoError(t, err)

	caption := "Front cover"
	order := 2
	updated, err := svc.UpdateMedia(ctx, p.ID, m.ID, MediaUpdateInput{Caption: &caption, Order: &order})
	require.NoError(t, err)
	assert.Equal(t, "Front cover", updated.Caption)
	assert.Equal(t, 2, updated.Order)

	store.deleteErr = errors.New("gcs down")
	err = svc.RemoveMedia(ctx, p.ID, m.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	rows, err := svc.Media(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "row is kept when the storage delete fails")

	store.deleteErr = nil
	require.NoError(t, svc.RemoveMedia(ctx, p.ID, m.ID))
	rows, err = svc.Media(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)

	reloaded, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.ThumbnailID)
}

func TestFilesLifecycle(t *testing.T) {
	svc, _, store := newTestService(t)
	ctx := context.Background()
	p := createProduct(t, svc, "Zip", "zip", "1", true)

	_, err := svc.AddFile(ctx, p.ID, "", Upload{Name: "a.zip", Body: bytes.NewReader([]byte("zip"))})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	f, err := svc.AddFile(ctx, p.ID, "/../zips/", Upload{Name: "a.zip", ContentType: "application/zip", Body: bytes.NewReader([]byte("zip"))})
	require.NoError(t, err)
	assert.Equal(t, "zips/a.zip", f.URL)
	assert.Equal(t, "application/zip:zip", store.objects["products/zips/a.zip"])

	url, err := svc.DownloadURL(ctx, p.ID, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example/products/zips/a.zip?ttl=1h0m0s", url)

	files, err := svc.Files(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, files, 1)

	require.NoError(t, svc.RemoveFile(ctx, p.ID, f.ID))
	_, ok := store.objects["products/zips/a.zip"]
	assert.False(t, ok)
	_, err = svc.DownloadURL(ctx, p.ID, f.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Hello World":       "hello-world",
		"  --Mixed__Case--": "mixed-case",
		"Ünïcode Ok":        "ünïcode-ok",
		"":                  "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), in)
	}
}
