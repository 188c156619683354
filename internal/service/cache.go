package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/newhook/plclog/internal/logging"
	"github.com/newhook/plclog/internal/model"
)

// CachingClassifier remembers classifications by log content for a TTL.
// Failed calls are not cached.
type CachingClassifier struct {
	next  Classifier
	cache *cache.Cache
}

// NewCachingClassifier wraps next with a cache whose entries expire after ttl.
func NewCachingClassifier(next Classifier, ttl time.Duration) *CachingClassifier {
	return &CachingClassifier{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *CachingClassifier) Classify(ctx context.Context, result *model.ParseResult) (model.Classification, error) {
	key := cacheKey(result.RawLog)
	if v, ok := c.cache.Get(key); ok {
		logging.Debug("classification cache hit", "key", key[:12])
		return v.(model.Classification), nil
	}

	cls, err := c.next.Classify(ctx, result)
	if err != nil {
		return model.Classification{}, err
	}
	c.cache.SetDefault(key, cls)
	return cls, nil
}

// Len returns the number of cached entries, including expired ones not yet
// swept.
func (c *CachingClassifier) Len() int {
	return c.cache.ItemCount()
}

func cacheKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
