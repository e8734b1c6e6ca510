package ai

import (
	"context"
	"errors"
	"log"
	"time"

	"rag-knowledge-platform/internal/config"
	"rag-knowledge-platform/models"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

// GeminiEmbedder wraps the Google Generative AI embedding model with a
// circuit breaker and RPM limiter so a misbehaving provider degrades into
// typed errors instead of hanging ingestion.
type GeminiEmbedder struct {
	client  *genai.Client
	model   string
	dim     int
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	timeout time.Duration
}

type RateLimits struct {
	RPM int // Requests per minute
	TPM int // Tokens per minute
	RPD int // Requests per day
}

func NewGeminiEmbedder(cfg *config.Config) (*GeminiEmbedder, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}

	limits := getRateLimits(cfg.GeminiTier)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiEmbeddings",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	// RPM limit with some buffer
	limiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), limits.RPM/10+1)

	timeout := time.Duration(cfg.EmbeddingTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &GeminiEmbedder{
		client:  client,
		model:   cfg.GoogleEmbeddingsModel,
		dim:     cfg.VectorDimensions,
		breaker: breaker,
		limiter: limiter,
		timeout: timeout,
	}, nil
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "free":
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	case "tier1":
		return RateLimits{RPM: 1000, TPM: 1000000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, TPM: 4000000, RPD: 50000}
	default:
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	}
}

func (ge *GeminiEmbedder) Dimensions() int { return ge.dim }

// EmbedText embeds a single text. Every failure surfaces as a
// models.EmbeddingProviderError with the transient flag set for rate limits,
// timeouts, 5xx responses and an open breaker.
func (ge *GeminiEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	tracer := otel.Tracer("gemini-embedder")
	ctx, span := tracer.Start(ctx, "gemini.embed_content")
	defer span.End()

	span.SetAttributes(
		attribute.String("gemini.model", ge.model),
		attribute.Int("gemini.text_chars", len(text)),
	)

	if err := ge.limiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return nil, &models.EmbeddingProviderError{Transient: true, Err: err}
	}

	result, err := ge.breaker.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, ge.timeout)
		defer cancel()

		model := ge.client.EmbeddingModel(ge.model)
		resp, err := model.EmbedContent(callCtx, genai.Text(text))
		if err != nil {
			return nil, err
		}
		if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
			return nil, errors.New("no embedding returned")
		}
		return resp.Embedding.Values, nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return nil, classifyProviderError(err)
	}

	return result.([]float32), nil
}

// EmbedTexts embeds texts one by one, preserving order. A failure aborts the
// batch; partial results are never returned.
func (ge *GeminiEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := ge.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

// Close the client
func (ge *GeminiEmbedder) Close() error {
	if ge.client != nil {
		return ge.client.Close()
	}
	return nil
}

// classifyProviderError wraps err as a typed provider error, deciding
// retryability from the failure shape.
func classifyProviderError(err error) error {
	if err == nil {
		return nil
	}

	transient := false
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		transient = true
	case errors.Is(err, context.DeadlineExceeded):
		transient = true
	default:
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			transient = apiErr.Code == 429 || apiErr.Code >= 500
		}
	}

	return &models.EmbeddingProviderError{Transient: transient, Err: err}
}
