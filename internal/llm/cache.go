package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/the-carbon-must-flow/internal/model"
	"github.com/patrickmn/go-cache"
)

const defaultCacheTTL = 15 * time.Minute

// resultCache holds recent classifications keyed by normalized description and amount.
type resultCache struct {
	store *cache.Cache
}

func newResultCache(ttl time.Duration) *resultCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &resultCache{store: cache.New(ttl, 2*ttl)}
}

func cacheKey(description string, amount float64) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(description)), " ")
	return fmt.Sprintf("%s|%.2f", normalized, amount)
}

func (c *resultCache) get(key string) (model.ClassificationResult, bool) {
	v, ok := c.store.Get(key)
	if !ok {
		return model.ClassificationResult{}, false
	}
	result, ok := v.(model.ClassificationResult)
	return result, ok
}

func (c *resultCache) set(key string, result model.ClassificationResult) {
	c.store.SetDefault(key, result)
}

func (c *resultCache) size() int {
	return c.store.ItemCount()
}
