package store

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/thrylos-labs/posseal/types"
	"github.com/willf/bloom"
)

// BlockCache keeps recently read blocks by hash. The Bloom filter answers
// "definitely not stored" lookups without touching the LRU or the database.
type BlockCache struct {
	cache       *lru.Cache[string, *types.Block]
	bloomFilter *bloom.BloomFilter
	mutex       sync.RWMutex
}

func NewBlockCache(size int, expectedItems uint, falsePositiveRate float64) (*BlockCache, error) {
	c, err := lru.New[string, *types.Block](size)
	if err != nil {
		return nil, err
	}
	return &BlockCache{
		cache:       c,
		bloomFilter: bloom.NewWithEstimates(expectedItems, falsePositiveRate),
	}, nil
}

// MayContain is false only for hashes that were never added.
func (c *BlockCache) MayContain(key string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.bloomFilter.TestString(key)
}

// Get returns a copy of the cached block.
func (c *BlockCache) Get(key string) (*types.Block, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if !c.bloomFilter.TestString(key) {
		return nil, false
	}
	b, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	return b.Clone(), true
}

// Add records the key in the filter and caches a copy of b.
func (c *BlockCache) Add(key string, b *types.Block) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.bloomFilter.AddString(key)
	c.cache.Add(key, b.Clone())
}

// Note only marks key as stored without caching a block, used when
// warming the filter from disk.
func (c *BlockCache) Note(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.bloomFilter.AddString(key)
}

// Purge clears all items from the cache
func (c *BlockCache) Purge() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.cache.Purge()
	c.bloomFilter.ClearAll()
}
