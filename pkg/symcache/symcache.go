package symcache

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

const DefaultSize = 4096

var (
	ErrCacheMiss = errors.New("symbol cache miss")
)

// SymCache is a bounded address-keyed cache of symbol lookups.
type SymCache[V any] struct {
	cache *lru.Cache[uint64, V]
}

func NewSymCache[V any](size int) (*SymCache[V], error) {
	if size <= 0 {
		size = DefaultSize
	}
	cache, err := lru.New[uint64, V](size)
	if err != nil {
		return nil, errors.Wrap(err, "error creating symbol cache")
	}

	return &SymCache[V]{cache: cache}, nil
}

func (c *SymCache[V]) Get(addr uint64) (V, error) {
	v, ok := c.cache.Get(addr)
	if !ok {
		var zero V
		return zero, ErrCacheMiss
	}

	return v, nil
}

func (c *SymCache[V]) Set(addr uint64, v V) {
	c.cache.Add(addr, v)
}

func (c *SymCache[V]) Len() int {
	return c.cache.Len()
}

// Purge drops every entry, e.g. after the symbol table changed.
func (c *SymCache[V]) Purge() {
	c.cache.Purge()
}
