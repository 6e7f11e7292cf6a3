package oracle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dusk-indust/refinery/internal/quality"
)

// CachingScorer memoizes a Scorer by document content. A zero-fixer round
// re-scores an unchanged document; the cache makes that round free.
type CachingScorer struct {
	next  Scorer
	cache *lru.Cache[string, *quality.ConsensusResult]
}

// NewCachingScorer wraps next with an LRU of the given size.
func NewCachingScorer(next Scorer, size int) (*CachingScorer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("oracle: cache size must be positive, got %d", size)
	}
	cache, err := lru.New[string, *quality.ConsensusResult](size)
	if err != nil {
		return nil, fmt.Errorf("oracle: create score cache: %w", err)
	}
	return &CachingScorer{next: next, cache: cache}, nil
}

// Score returns a cached verdict for document or delegates and caches the
// result. Errors are not cached. Callers receive a copy.
func (c *CachingScorer) Score(ctx context.Context, document string) (*quality.ConsensusResult, error) {
	key := documentKey(document)
	if cached, ok := c.cache.Get(key); ok {
		return cached.Clone(), nil
	}
	res, err := c.next.Score(ctx, document)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, res.Clone())
	return res, nil
}

// Len returns the number of cached verdicts.
func (c *CachingScorer) Len() int {
	return c.cache.Len()
}

func documentKey(document string) string {
	sum := sha256.Sum256([]byte(document))
	return hex.EncodeToString(sum[:])
}
