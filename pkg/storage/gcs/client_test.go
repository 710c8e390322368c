package gcs

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"
)

func signingClient(t *testing.T) (*Client, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	c := &Client{
		defaultBucket:  "bucket",
		serviceAccount: &serviceAccountInfo{clientEmail: "svc@example.iam.gserviceaccount.com", privateKey: key},
		now:            func() time.Time { return time.Unix(1_700_000_000, 0) },
	}
	return c, key
}

func TestSignedReadURL(t *testing.T) {
	c, key := signingClient(t)

	raw, err := c.SignedReadURL("products/abc/file one.zip", time.Hour)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "storage.googleapis.com", u.Host)
	assert.Equal(t, "/bucket/products/abc/file%20one.zip", u.EscapedPath())

	q := u.Query()
	assert.Equal(t, "svc@example.iam.gserviceaccount.com", q.Get("GoogleAccessId"))
	assert.Equal(t, "1700003600", q.Get("Expires"))

	sig, err := base64.StdEncoding.DecodeString(q.Get("Signature"))
	require.NoError(t, err)
	payload := "GET\n\n\n1700003600\n/bucket/products/abc/file%20one.zip"
	hash := sha256.Sum256([]byte(payload))
	assert.NoError(t, rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, hash[:], sig))
}

func TestSignedURLRequiresInputs(t *testing.T) {
	c, _ := signingClient(t)

	_, err := c.SignedURL("bucket", "obj", "", time.Minute)
	assert.Error(t, err)
	_, err = c.SignedURL("bucket", "", "image/png", time.Minute)
	assert.Error(t, err)
	_, err = c.SignedURL("bucket", "obj", "image/png", 0)
	assert.Error(t, err)

	raw, err := c.SignedURL("", "obj", "image/png", time.Minute)
	require.NoError(t, err)
	assert.Contains(t, raw, "/bucket/obj")
}

func TestSignWithoutServiceAccount(t *testing.T) {
	c := &Client{defaultBucket: "bucket"}
	_, err := c.SignedReadURL("obj", time.Minute)
	assert.Error(t, err)
}

func TestPublicURL(t *testing.T) {
	c := &Client{defaultBucket: "bucket"}
	assert.Equal(t, "https://storage.googleapis.com/bucket/media/a%20b.png", c.PublicURL("media/a b.png"))

	c.publicBaseURL = "https://cdn.example.com"
	assert.Equal(t, "https://cdn.example.com/media/x.png", c.PublicURL("media/x.png"))
}

func TestParseServiceAccount(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	pemKey := string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
	escaped := strings.ReplaceAll(pemKey, "\n", `\n`)

	sa, err := parseServiceAccount([]byte(`{"type":"service_account","client_email":"svc@x","private_key":"` + escaped + `"}`))
	require.NoError(t, err)
	require.NotNil(t, sa)
	assert.Equal(t, "svc@x", sa.clientEmail)

	sa, err = parseServiceAccount([]byte(`{"type":"authorized_user"}`))
	require.NoError(t, err)
	assert.Nil(t, sa)

	_, err = parseServiceAccount([]byte(`{"client_email":"svc@x","private_key":"nope"}`))
	assert.Error(t, err)
}

func testService(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	svc, err := storage.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/storage/v1/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return newWithService(svc, config.GCSConfig{BucketName: "bucket"})
}

func TestDeleteTreatsNotFoundAsSuccess(t *testing.T) {
	var paths []string
	c := testService(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"No such object"}}`))
	})

	require.NoError(t, c.Delete(context.Background(), "media/gone.png"))
	require.Len(t, paths, 1)
	assert.Equal(t, "DELETE /storage/v1/b/bucket/o/media/gone.png", paths[0])
}

func TestDeletePropagatesServerErrors(t *testing.T) {
	c := testService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"denied"}}`))
	})
	assert.Error(t, c.Delete(context.Background(), "media/x.png"))
}

func TestPing(t *testing.T) {
	c := testService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("maxResults"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"kind":"storage#objects","items":[]}`))
	})
	assert.NoError(t, c.Ping(context.Background()))
}
