package engine

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
	"github.com/ipfs/go-cid"

	"github.com/ipfs-force-community/venus-fvm/metrics"
)

// DefaultModuleCacheSize is the number of modules kept when no size is configured.
const DefaultModuleCacheSize = 256

var (
	cacheHitCt  = metrics.NewInt64Counter("vm/module_cache_hit", "Number of module loads served from the cache")
	cacheMissCt = metrics.NewInt64Counter("vm/module_cache_miss", "Number of module loads that had to compile")
)

// ModuleCache keeps compiled modules by code CID. It is safe for concurrent use and can be
// shared by machines running different messages.
type ModuleCache struct {
	modules *lru.ARCCache
}

// NewModuleCache returns a cache holding up to size modules.
func NewModuleCache(size int) (*ModuleCache, error) {
	if size <= 0 {
		size = DefaultModuleCacheSize
	}
	c, err := lru.NewARC(size)
	if err != nil {
		return nil, err
	}
	return &ModuleCache{modules: c}, nil
}

// Get returns the cached module for code.
func (mc *ModuleCache) Get(ctx context.Context, code cid.Cid) (*Module, bool) {
	v, ok := mc.modules.Get(code)
	if !ok {
		cacheMissCt.Inc(ctx, 1)
		return nil, false
	}
	cacheHitCt.Inc(ctx, 1)
	return v.(*Module), true
}

// Add caches m under code.
func (mc *ModuleCache) Add(code cid.Cid, m *Module) {
	mc.modules.Add(code, m)
}

// Len is the number of cached modules.
func (mc *ModuleCache) Len() int {
	return mc.modules.Len()
}
