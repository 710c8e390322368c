package gcs

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"
)

const (
	signedHost  = "storage.googleapis.com"
	pingTimeout = 5 * time.Second
)

// Client talks to a GCS bucket through the JSON API and signs V2 URLs with
// the service account key when one is configured.
type Client struct {
	svc            *storage.Service
	defaultBucket  string
	publicBaseURL  string
	serviceAccount *serviceAccountInfo
	now            func() time.Time
}

type serviceAccountInfo struct {
	clientEmail string
	privateKey  *rsa.PrivateKey
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// NewClient builds a client from explicit JSON credentials, a credentials file,
// or application default credentials, in that order.
func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	var (
		opts    []option.ClientOption
		rawJSON []byte
	)
	switch {
	case gcp.CredentialsJSON != "":
		rawJSON = []byte(gcp.CredentialsJSON)
		opts = append(opts, option.WithCredentialsJSON(rawJSON))
	case gcp.ApplicationCredentials != "":
		b, err := os.ReadFile(gcp.ApplicationCredentials)
		if err != nil {
			return nil, fmt.Errorf("reading credentials file: %w", err)
		}
		rawJSON = b
		opts = append(opts, option.WithCredentialsJSON(rawJSON))
	}
	opts = append(opts, option.WithScopes(storage.DevstorageReadWriteScope))

	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gcs service: %w", err)
	}

	client := newWithService(svc, cfg)
	if len(rawJSON) > 0 {
		sa, err := parseServiceAccount(rawJSON)
		if err != nil {
			return nil, err
		}
		client.serviceAccount = sa
	}

	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", cfg.BucketName), "gcs client initialized")
	}
	return client, nil
}

func newWithService(svc *storage.Service, cfg config.GCSConfig) *Client {
	return &Client{
		svc:           svc,
		defaultBucket: cfg.BucketName,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		now:           time.Now,
	}
}

func (c *Client) DefaultBucket() string {
	if c == nil {
		return ""
	}
	return c.defaultBucket
}

// Ping lists at most one object, which requires storage.objects.list.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.svc == nil {
		return errors.New("gcs client not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if _, err := c.svc.Objects.List(c.defaultBucket).MaxResults(1).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gcs object check failed: %w", err)
	}
	return nil
}

// Upload writes body to object in the default bucket.
func (c *Client) Upload(ctx context.Context, object, contentType string, body io.Reader) error {
	if c == nil || c.svc == nil {
		return errors.New("gcs client not initialized")
	}
	if object == "" {
		return errors.New("object name is required")
	}
	obj := &storage.Object{Name: object, ContentType: contentType}
	if _, err := c.svc.Objects.Insert(c.defaultBucket, obj).
		Media(body, googleapi.ContentType(contentType)).
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("upload %s: %w", object, err)
	}
	return nil
}

// Delete removes object from the default bucket. Missing objects are not an error.
func (c *Client) Delete(ctx context.Context, object string) error {
	return c.DeleteObject(ctx, c.defaultBucket, object)
}

func (c *Client) DeleteObject(ctx context.Context, bucket, object string) error {
	if c == nil || c.svc == nil {
		return errors.New("gcs client not initialized")
	}
	if bucket == "" {
		bucket = c.defaultBucket
	}
	err := c.svc.Objects.Delete(bucket, object).Context(ctx).Do()
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", object, err)
	}
	return nil
}

// PublicURL is the browser facing address of a public object.
func (c *Client) PublicURL(object string) string {
	base := c.publicBaseURL
	if base == "" {
		base = "https://" + signedHost + "/" + c.defaultBucket
	}
	return base + "/" + escapeObject(object)
}

// SignedReadURL returns a GET URL for object in the default bucket valid for ttl.
func (c *Client) SignedReadURL(object string, ttl time.Duration) (string, error) {
	return c.sign(http.MethodGet, c.defaultBucket, object, "", ttl)
}

// SignedURL returns a PUT URL for uploading object with the given content type.
func (c *Client) SignedURL(bucket, object, contentType string, ttl time.Duration) (string, error) {
	if contentType == "" {
		return "", errors.New("content type is required")
	}
	return c.sign(http.MethodPut, bucket, object, contentType, ttl)
}

func (c *Client) sign(method, bucket, object, contentType string, ttl time.Duration) (string, error) {
	if c == nil || c.serviceAccount == nil {
		return "", errors.New("signing requires service account credentials")
	}
	if bucket == "" {
		bucket = c.defaultBucket
	}
	if bucket == "" {
		return "", errors.New("bucket is required")
	}
	if object == "" {
		return "", errors.New("object is required")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}

	now := time.Now
	if c.now != nil {
		now = c.now
	}
	expires := strconv.FormatInt(now().Add(ttl).Unix(), 10)
	resource := "/" + bucket + "/" + escapeObject(object)
	payload := strings.Join([]string{method, "", contentType, expires, resource}, "\n")

	hash := sha256.Sum256([]byte(payload))
	sig, err := rsa.SignPKCS1v15(rand.Reader, c.serviceAccount.privateKey, crypto.SHA256, hash[:])
	if err != nil {
		return "", fmt.Errorf("sign url: %w", err)
	}

	q := url.Values{}
	q.Set("GoogleAccessId", c.serviceAccount.clientEmail)
	q.Set("Expires", expires)
	q.Set("Signature", base64.StdEncoding.EncodeToString(sig))

	u := url.URL{Scheme: "https", Host: signedHost, Opaque: "//" + signedHost + resource, RawQuery: q.Encode()}
	return u.String(), nil
}

func escapeObject(object string) string {
	parts := strings.Split(object, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func parseServiceAccount(raw []byte) (*serviceAccountInfo, error) {
	var creds struct {
		Type        string `json:"type"`
		ClientEmail string `json:"client_email"`
		PrivateKey  string `json:"private_key"`
	}
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, fmt.Errorf("parsing service account credentials: %w", err)
	}
	// user credentials can read and write but cannot sign
	if creds.ClientEmail == "" || creds.PrivateKey == "" {
		return nil, nil
	}
	key, err := parsePrivateKey(creds.PrivateKey)
	if err != nil {
		return nil, err
	}
	return &serviceAccountInfo{clientEmail: creds.ClientEmail, privateKey: key}, nil
}

func parsePrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, errors.New("invalid private key")
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		if priv, ok := key.(*rsa.PrivateKey); ok {
			return priv, nil
		}
	}
	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.New("unsupported private key format")
	}
	return priv, nil
}
