package springopt

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/sells-group/catalog-resolver/internal/model"
)

// CachedRegistry fronts a slower Registry with an in-process cache. Misses
// are cached too, so a batch with many entries for one model family asks
// the backing store once per option name. Upserts evict the key and bump
// its generation; a lookup that raced an upsert does not fill the cache.
type CachedRegistry struct {
	next  Registry
	cache *cache.Cache

	mu   sync.Mutex
	gens map[string]uint64
}

// NewCachedRegistry wraps next. A non-positive ttl keeps entries until evicted.
func NewCachedRegistry(next Registry, ttl time.Duration) *CachedRegistry {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &CachedRegistry{
		next:  next,
		cache: cache.New(ttl, 10*time.Minute),
		gens:  make(map[string]uint64),
	}
}

// LookupOption implements Registry.
func (c *CachedRegistry) LookupOption(ctx context.Context, scope model.Scope, name string) (*model.SpringOption, error) {
	key := model.OptionKey(scope, name)
	if v, ok := c.cache.Get(key); ok {
		opt, _ := v.(*model.SpringOption)
		return cloneOption(opt), nil
	}

	c.mu.Lock()
	gen := c.gens[key]
	c.mu.Unlock()

	opt, err := c.next.LookupOption(ctx, scope, name)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.gens[key] == gen {
		c.cache.SetDefault(key, cloneOption(opt))
	}
	c.mu.Unlock()
	return opt, nil
}

// UpsertOption implements Registry.
func (c *CachedRegistry) UpsertOption(ctx context.Context, opt model.SpringOption) error {
	err := c.next.UpsertOption(ctx, opt)

	key := opt.RegistryKey()
	c.mu.Lock()
	c.gens[key]++
	c.cache.Delete(key)
	c.mu.Unlock()
	return err
}

// Len returns the number of cached keys, misses included.
func (c *CachedRegistry) Len() int {
	return c.cache.ItemCount()
}

func cloneOption(opt *model.SpringOption) *model.SpringOption {
	if opt == nil {
		return nil
	}
	out := *opt
	out.Modifications = opt.Modifications.Clone()
	return &out
}
