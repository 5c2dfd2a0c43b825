package recovery

import (
	"fmt"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru"
	"github.com/zeebo/blake3"
)

// DefaultCacheSize is the number of recovered keys kept by NewCache callers
// that do not configure a size.
const DefaultCacheSize = 4096

// Cache memoizes successful recoveries of another Recoverer.
// Failures are never cached.
type Cache struct {
	next   Recoverer
	cache  *lru.Cache
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCache wraps next with an LRU of size entries.
func NewCache(next Recoverer, size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}

	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create recovery cache:\n%w", err)
	}

	return &Cache{next: next, cache: c}, nil
}

// Recover implements Recoverer.
func (c *Cache) Recover(digest common.Hash, sig [crypto.SignatureLength]byte) (common.Address, error) {
	key := cacheKey(digest, sig)

	if v, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return v.(common.Address), nil
	}

	c.misses.Add(1)

	addr, err := c.next.Recover(digest, sig)
	if err != nil {
		return common.Address{}, err
	}

	c.cache.Add(key, addr)

	return addr, nil
}

// Stats returns cache hit and miss counts.
func (c *Cache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// cacheKey binds the digest and the full signature.
func cacheKey(digest common.Hash, sig [crypto.SignatureLength]byte) [32]byte {
	h := blake3.New()
	h.Write(digest[:])
	h.Write(sig[:])

	var key [32]byte
	copy(key[:], h.Sum(nil))

	return key
}
