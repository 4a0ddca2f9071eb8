package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// ErrCacheMiss indicates a cache miss.
var ErrCacheMiss = errors.New("cache miss")

// Store is a shared second-level vector cache (see RedisStore).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedEmbedder memoizes vectors in a process-local LRU and, when a Store is
// configured, in a shared store. Leaf values repeat heavily across backends
// comparing the same document, so most lookups never reach the server.
type CachedEmbedder struct {
	next  Embedder
	local *lru.Cache[string, []float32]
	store Store
	ttl   time.Duration
	log   zerolog.Logger
}

// NewCachedEmbedder wraps next. store may be nil.
func NewCachedEmbedder(next Embedder, size int, store Store, ttl time.Duration, log zerolog.Logger) (*CachedEmbedder, error) {
	if size <= 0 {
		size = 4096
	}
	local, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("creating embedding lru: %w", err)
	}
	return &CachedEmbedder{next: next, local: local, store: store, ttl: ttl, log: log}, nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	if v, ok := c.local.Get(key); ok {
		return v, nil
	}

	if c.store != nil {
		blob, err := c.store.Get(ctx, key)
		switch {
		case err == nil:
			vec := DeserializeVector(blob)
			c.local.Add(key, vec)
			return vec, nil
		case !errors.Is(err, ErrCacheMiss):
			c.log.Warn().Err(err).Msg("embedding: shared cache read failed")
		}
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.local.Add(key, vec)

	if c.store != nil {
		if err := c.store.Set(ctx, key, SerializeVector(vec), c.ttl); err != nil {
			c.log.Warn().Err(err).Msg("embedding: shared cache write failed")
		}
	}
	return vec, nil
}

func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := c.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *CachedEmbedder) Model() string { return c.next.Model() }

// Len reports the number of vectors held in the local tier.
func (c *CachedEmbedder) Len() int { return c.local.Len() }

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.next.Model() + ":" + hex.EncodeToString(sum[:])
}
