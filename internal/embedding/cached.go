package embedding

import (
	"context"
	"log/slog"

	"github.com/kobeya/studypartner/internal/similarity"
	"github.com/kobeya/studypartner/internal/textkey"
)

// CachedEmbedder looks embeddings up in memory, then in each tier in order,
// and finally asks the provider. Hits in a slower level are copied into the
// faster ones. Tier failures are logged and treated as misses.
type CachedEmbedder struct {
	provider similarity.Embedder
	model    string
	memory   *MemoryCache
	tiers    []Tier
}

// NewCachedEmbedder returns an embedder caching provider results for model.
func NewCachedEmbedder(provider similarity.Embedder, model string, memory *MemoryCache, tiers ...Tier) *CachedEmbedder {
	return &CachedEmbedder{provider: provider, model: model, memory: memory, tiers: tiers}
}

// Key returns the cache key of text for model.
func Key(model, text string) string {
	return textkey.Hash(model, text)
}

// Embed implements similarity.Embedder.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := Key(e.model, text)

	if e.memory != nil {
		if vec, ok := e.memory.Get(key); ok {
			return vec, nil
		}
	}

	for i, tier := range e.tiers {
		vec, ok, err := tier.Get(ctx, key)
		if err != nil {
			slog.Warn("Embedding cache tier failed", "tier", i, "error", err)
			continue
		}
		if ok {
			e.fill(ctx, key, vec, i)
			return vec, nil
		}
	}

	vec, err := e.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.fill(ctx, key, vec, len(e.tiers))
	return vec, nil
}

// fill stores vec in memory and in every tier above upTo.
func (e *CachedEmbedder) fill(ctx context.Context, key string, vec []float32, upTo int) {
	if e.memory != nil {
		e.memory.Set(key, vec)
	}
	for _, tier := range e.tiers[:upTo] {
		if err := tier.Set(ctx, key, vec); err != nil {
			slog.Warn("Failed to store embedding in cache tier", "error", err)
		}
	}
}
