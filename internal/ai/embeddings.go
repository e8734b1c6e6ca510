package ai

import (
	"context"
	"fmt"

	"rag-knowledge-platform/internal/config"
)

// Embedder maps text to a dense vector of fixed dimensionality. The query
// path and the ingestion path share the same capability.
type Embedder interface {
	// EmbedText returns the vector for one text.
	EmbedText(ctx context.Context, text string) ([]float32, error)
	// EmbedTexts embeds a batch in order. Implementations may batch provider
	// calls for throughput; callers only rely on the ordering.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions reports the provider's output dimensionality.
	Dimensions() int
}

// NewEmbedder builds the configured embedding provider.
// Default provider is Google Generative AI (text-embedding-004).
func NewEmbedder(cfg *config.Config) (Embedder, error) {
	switch cfg.EmbeddingsProvider {
	case "google", "":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
		}
		return NewGeminiEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unknown embeddings provider: %s", cfg.EmbeddingsProvider)
	}
}
