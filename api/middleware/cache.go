package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

const catalogNamespace = "catalog"

var cachedPrefixes = []string{"/product", "/discount", "/tag"}

// CacheStore is the redis surface the response cache needs.
type CacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CacheVersion(ctx context.Context, namespace string) (int64, error)
	BumpCacheVersion(ctx context.Context, namespace string) (int64, error)
	CacheKey(namespace string, version int64, fingerprint string) string
}

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        string `json:"body"`
}

// ResponseCache serves catalog reads from redis. Keys include the caller's
// permission set so hidden products never leak between audiences. Any
// successful write under a cached prefix bumps the namespace version, which
// orphans every earlier entry. Redis failures degrade to uncached serving.
func ResponseCache(store CacheStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil || ttl <= 0 || !cacheable(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if r.Method != http.MethodGet {
				rec := &responseCapture{ResponseWriter: w}
				next.ServeHTTP(rec, r)
				if status := defaultStatus(rec.status); status < http.StatusBadRequest {
					if _, err := store.BumpCacheVersion(r.Context(), catalogNamespace); err != nil {
						logError(r.Context(), logg, "cache.purge_failed", err)
					}
				}
				return
			}

			version, err := store.CacheVersion(r.Context(), catalogNamespace)
			if err != nil {
				logError(r.Context(), logg, "cache.version_failed", err)
				next.ServeHTTP(w, r)
				return
			}
			key := store.CacheKey(catalogNamespace, version, cacheFingerprint(r))

			if raw, err := store.Get(r.Context(), key); err == nil {
				var hit cachedResponse
				if json.Unmarshal([]byte(raw), &hit) == nil {
					writeCached(w, hit)
					return
				}
			} else if !pkgredis.IsMiss(err) {
				logError(r.Context(), logg, "cache.read_failed", err)
			}

			rec := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if defaultStatus(rec.status) != http.StatusOK {
				return
			}
			payload, err := json.Marshal(cachedResponse{
				Status:      http.StatusOK,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        base64.StdEncoding.EncodeToString(rec.body.Bytes()),
			})
			if err != nil {
				return
			}
			if err := store.Set(r.Context(), key, string(payload), ttl); err != nil {
				logError(r.Context(), logg, "cache.write_failed", err)
			}
		})
	}
}

func cacheable(path string) bool {
	if strings.HasSuffix(path, "/download") {
		return false
	}
	for _, prefix := range cachedPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

func cacheFingerprint(r *http.Request) string {
	h := sha256.New()
	h.Write([]byte(r.URL.Path))
	h.Write([]byte{'?'})
	h.Write([]byte(r.URL.Query().Encode()))
	h.Write([]byte{'|'})
	h.Write([]byte(strings.Join(PermissionsFromContext(r.Context()).Names(), ",")))
	return hex.EncodeToString(h.Sum(nil))
}

func writeCached(w http.ResponseWriter, hit cachedResponse) {
	body, err := base64.StdEncoding.DecodeString(hit.Body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if hit.ContentType != "" {
		w.Header().Set("Content-Type", hit.ContentType)
	}
	w.Header().Set("X-Cache", "HIT")
	w.WriteHeader(hit.Status)
	_, _ = w.Write(body)
}
