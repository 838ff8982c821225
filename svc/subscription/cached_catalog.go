package subscription

import (
	"context"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dmitrymomot/retailplan/pkg/cache"
	engine "github.com/dmitrymomot/retailplan/pkg/subscription"
)

// freeTemplateKey cannot collide with a catalog id because ids are non-empty.
const freeTemplateKey = ""

// CachedCatalog memoizes template lookups of another TemplateStore.
// Hits live in a bounded LRU; misses are remembered briefly so unknown ids
// do not reach the backing store on every request.
type CachedCatalog struct {
	next   engine.TemplateStore
	hits   *cache.LRU[string, *engine.Template]
	misses *gocache.Cache
}

// NewCachedCatalog wraps next. size bounds the number of cached templates and
// ttl their lifetime; misses are kept for a tenth of ttl.
func NewCachedCatalog(next engine.TemplateStore, size int, ttl time.Duration) *CachedCatalog {
	if next == nil {
		panic("subscription: template store is required")
	}
	missTTL := max(ttl/10, time.Second)
	return &CachedCatalog{
		next:   next,
		hits:   cache.NewLRU(max(size, 1), cache.WithTTL[string, *engine.Template](ttl)),
		misses: gocache.New(missTTL, 2*missTTL),
	}
}

func (c *CachedCatalog) GetTemplate(ctx context.Context, templateID string) (*engine.Template, error) {
	return c.lookup(templateID, func() (*engine.Template, error) {
		return c.next.GetTemplate(ctx, templateID)
	})
}

func (c *CachedCatalog) FindActiveFreeTemplate(ctx context.Context) (*engine.Template, error) {
	return c.lookup(freeTemplateKey, func() (*engine.Template, error) {
		return c.next.FindActiveFreeTemplate(ctx)
	})
}

// Invalidate drops every cached entry.
func (c *CachedCatalog) Invalidate() {
	c.hits.Clear()
	c.misses.Flush()
}

func (c *CachedCatalog) lookup(key string, load func() (*engine.Template, error)) (*engine.Template, error) {
	if tpl, ok := c.hits.Get(key); ok {
		return tpl.Clone(), nil
	}
	if _, missed := c.misses.Get(key); missed {
		return nil, engine.ErrTemplateNotFound
	}

	tpl, err := load()
	if err != nil {
		if errors.Is(err, engine.ErrTemplateNotFound) {
			c.misses.SetDefault(key, struct{}{})
		}
		return nil, err
	}
	c.hits.Put(key, tpl.Clone())
	return tpl, nil
}

var _ engine.TemplateStore = (*CachedCatalog)(nil)
