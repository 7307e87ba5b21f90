package ai

import (
	"context"
	"crypto/sha1"
	"encoding/hex"

	"github.com/rs/zerolog"
)

// EmbeddingCache stores vectors keyed by CacheKey.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, key string) ([]float32, bool, error)
	PutEmbedding(ctx context.Context, key, model string, vec []float32) error
}

// CacheKey identifies text embedded by model.
func CacheKey(model, text string) string {
	h := sha1.Sum([]byte(model + "\x00" + text))
	return hex.EncodeToString(h[:])
}

// CachedClient consults cache before asking the wrapped client to embed.
// Cache failures are logged and never fail a request. Only wrap clients
// whose vectors do not depend on the prepared corpus.
type CachedClient struct {
	Client
	cache EmbeddingCache
}

func NewCachedClient(c Client, cache EmbeddingCache) *CachedClient {
	return &CachedClient{Client: c, cache: cache}
}

func (c *CachedClient) Prepare(ctx context.Context, corpus []string) (Encoder, error) {
	enc, err := c.Client.Prepare(ctx, corpus)
	if err != nil {
		return nil, err
	}
	return &cachedEncoder{enc: enc, cache: c.cache, model: c.Model()}, nil
}

type cachedEncoder struct {
	enc   Encoder
	cache EmbeddingCache
	model string
}

func (e *cachedEncoder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(e.model, text)
	vec, ok, err := e.cache.GetEmbedding(ctx, key)
	switch {
	case err != nil:
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("embedding cache lookup failed")
	case ok:
		return vec, nil
	}

	vec, err = e.enc.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := e.cache.PutEmbedding(ctx, key, e.model, vec); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("embedding cache write failed")
	}
	return vec, nil
}
