package ai

import (
	"context"
	"os"
	"testing"

	"rag-knowledge-platform/internal/config"
)

func TestGeminiEmbedText(t *testing.T) {
	if os.Getenv("GEMINI_API_KEY") == "" {
		t.Skip("GEMINI_API_KEY not set")
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		t.Skipf("config load failed: %v", err)
	}

	embedder, err := NewEmbedder(cfg)
	if err != nil {
		t.Fatalf("embedder init: %v", err)
	}

	vec, err := embedder.EmbedText(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("embedding error: %v", err)
	}
	if len(vec) != embedder.Dimensions() {
		t.Fatalf("vector length %d, declared %d", len(vec), embedder.Dimensions())
	}
}

func TestRateLimitsByTier(t *testing.T) {
	free := getRateLimits("free")
	tier1 := getRateLimits("tier1")
	unknown := getRateLimits("nonsense")

	if free.RPM <= 0 {
		t.Fatalf("free tier RPM = %d", free.RPM)
	}
	if tier1.RPM <= free.RPM {
		t.Errorf("tier1 RPM %d not above free %d", tier1.RPM, free.RPM)
	}
	if unknown != free {
		t.Errorf("unknown tier should fall back to free limits")
	}
}
