package permissions

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/google/uuid"
)

const anonymousSubject = "anonymous"

// Resolver turns a caller into the set of permissions it holds.
type Resolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) (Set, error)
}

type lookup interface {
	ForRoles(ctx context.Context, roles ...string) ([]string, error)
	ForUser(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// Cache is the subset of the redis client used to memoise resolved sets.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	PermissionsKey(subject string) string
}

type resolver struct {
	repo  lookup
	cache Cache
	ttl   time.Duration
	logg  *logger.Logger
}

// NewResolver builds a Resolver. cache may be nil, in which case every call
// reads the database.
func NewResolver(repo lookup, cache Cache, ttl time.Duration, logg *logger.Logger) (Resolver, error) {
	if repo == nil {
		return nil, errors.New("permission repository required")
	}
	return &resolver{repo: repo, cache: cache, ttl: ttl, logg: logg}, nil
}

// Resolve returns the public role's permissions, plus the user's own when
// userID is set. uuid.Nil means an anonymous caller.
func (r *resolver) Resolve(ctx context.Context, userID uuid.UUID) (Set, error) {
	subject := anonymousSubject
	if userID != uuid.Nil {
		subject = userID.String()
	}

	if cached, ok := r.fromCache(ctx, subject); ok {
		return cached, nil
	}

	names, err := r.repo.ForRoles(ctx, RolePublic)
	if err != nil {
		return nil, err
	}
	if userID != uuid.Nil {
		own, err := r.repo.ForUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		names = append(names, own...)
	}

	set := NewSet(names...)
	r.store(ctx, subject, set)
	return set, nil
}

func (r *resolver) fromCache(ctx context.Context, subject string) (Set, bool) {
	if r.cache == nil || r.ttl <= 0 {
		return nil, false
	}
	raw, err := r.cache.Get(ctx, r.cache.PermissionsKey(subject))
	if err != nil {
		if !pkgredis.IsMiss(err) && r.logg != nil {
			r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "permissions.cache_read_failed")
		}
		return nil, false
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, false
	}
	return NewSet(names...), true
}

func (r *resolver) store(ctx context.Context, subject string, set Set) {
	if r.cache == nil || r.ttl <= 0 {
		return
	}
	payload, err := json.Marshal(set.Names())
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, r.cache.PermissionsKey(subject), string(payload), r.ttl); err != nil && r.logg != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "permissions.cache_write_failed")
	}
}
