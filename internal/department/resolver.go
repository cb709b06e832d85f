package department

import (
	"context"
	stderrors "errors"

	"github.com/civicgrid/platform/internal/shared/cache"
	"github.com/civicgrid/platform/internal/shared/errors"
	"github.com/civicgrid/platform/internal/shared/types"
)

// Resolver maps department names to ids, fronted by an optional Redis
// cache. A name that resolves to nothing is not an error: listing
// filters treat it as an empty result set.
type Resolver struct {
	repo  *Repository
	cache *cache.Cache
}

// NewResolver creates a resolver; cache may be nil.
func NewResolver(repo *Repository, c *cache.Cache) *Resolver {
	return &Resolver{repo: repo, cache: c}
}

func cacheKey(name string) string {
	return "department:name:" + name
}

// ResolveName returns the department id for a name and whether it exists.
func (r *Resolver) ResolveName(ctx context.Context, name string) (types.ID, bool, error) {
	if cached, ok := r.cache.Get(ctx, cacheKey(name)); ok {
		return types.ID(cached), true, nil
	}

	dept, err := r.repo.FindByName(ctx, name)
	if err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}

	r.cache.Set(ctx, cacheKey(name), dept.ID.String())
	return dept.ID, true, nil
}

// Invalidate drops a cached name, called when departments change.
func (r *Resolver) Invalidate(ctx context.Context, name string) {
	r.cache.Delete(ctx, cacheKey(name))
}
