package catalog

import (
	"context"
	"fmt"
	"sync"
)

// NameCache caches category names by document id. Catalog data is read-only
// for the duration of a session, so entries are never evicted.
type NameCache interface {
	Get(docID string) (string, bool)
	Put(docID, name string)
}

// NewNameCache returns an empty in-memory NameCache safe for concurrent use.
func NewNameCache() NameCache {
	return &nameCache{names: map[string]string{}}
}

type nameCache struct {
	mu    sync.RWMutex
	names map[string]string
}

func (c *nameCache) Get(docID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.names[docID]
	return name, ok
}

func (c *nameCache) Put(docID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names[docID] = name
}

// CategoryGetter fetches one category by document id. A missing category is
// reported as (nil, nil).
type CategoryGetter interface {
	GetCategory(ctx context.Context, docID string) (*Category, error)
}

// Resolver answers category-name lookups through an injected cache, fetching
// from the remote store on a miss.
type Resolver struct {
	store CategoryGetter
	cache NameCache
}

func NewResolver(store CategoryGetter, cache NameCache) *Resolver {
	return &Resolver{store: store, cache: cache}
}

// Name resolves a category document id to its name. An empty docID or a
// category missing from the store yields "" without error; callers degrade
// gracefully rather than halt.
func (r *Resolver) Name(ctx context.Context, docID string) (string, error) {
	if docID == "" {
		return "", nil
	}
	if name, ok := r.cache.Get(docID); ok {
		return name, nil
	}
	cat, err := r.store.GetCategory(ctx, docID)
	if err != nil {
		return "", fmt.Errorf("fetch category %s: %w", docID, err)
	}
	if cat == nil {
		return "", nil
	}
	r.cache.Put(docID, cat.Name)
	return cat.Name, nil
}
