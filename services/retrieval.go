package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"rag-knowledge-platform/internal/ai"
	"rag-knowledge-platform/internal/telemetry"
	"rag-knowledge-platform/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CandidateSource yields the retrievable chunks of a node. Satisfied by
// DocumentStore; tests substitute fixtures.
type CandidateSource interface {
	ReadyCandidates(ctx context.Context, nodeID primitive.ObjectID) ([]Candidate, error)
}

// QueryParams are the per-query knobs. Zero values fall back to the engine's
// configured defaults before validation.
type QueryParams struct {
	Query   string
	TopK    int
	ReturnK int
	Alpha   *float64
}

// RetrievalEngine ranks a node's chunks against a query by fusing a dense
// (cosine) leg and a lexical (BM25) leg.
type RetrievalEngine struct {
	source   CandidateSource
	embedder ai.Embedder
	cache    *ChunkCache
	metrics  *telemetry.Metrics

	defaultTopK    int
	defaultReturnK int
	defaultAlpha   float64
}

func NewRetrievalEngine(source CandidateSource, embedder ai.Embedder, cache *ChunkCache, metrics *telemetry.Metrics, topK, returnK int, alpha float64) *RetrievalEngine {
	return &RetrievalEngine{
		source:         source,
		embedder:       embedder,
		cache:          cache,
		metrics:        metrics,
		defaultTopK:    topK,
		defaultReturnK: returnK,
		defaultAlpha:   alpha,
	}
}

// scored pairs a candidate index with a relevance score during ranking.
type scored struct {
	idx   int
	score float64
}

// Query runs hybrid retrieval over one node and returns at most ReturnK
// results, highest fused score first. An empty node yields an empty slice.
func (e *RetrievalEngine) Query(ctx context.Context, nodeID primitive.ObjectID, params QueryParams) ([]models.QueryResult, error) {
	tracer := otel.Tracer("retrieval")
	ctx, span := tracer.Start(ctx, "retrieval.query",
		trace.WithAttributes(attribute.String("node.id", nodeID.Hex())))
	defer span.End()
	start := time.Now()

	params = e.applyDefaults(params)
	if err := validateParams(params); err != nil {
		return nil, err
	}

	candidates, fromCache := e.cache.Get(ctx, nodeID)
	if !fromCache {
		var err error
		candidates, err = e.source.ReadyCandidates(ctx, nodeID)
		if err != nil {
			return nil, err
		}
		e.cache.Set(ctx, nodeID, candidates)
	}
	span.SetAttributes(
		attribute.Int("retrieval.candidates", len(candidates)),
		attribute.Bool("retrieval.cache_hit", fromCache),
	)

	if len(candidates) == 0 {
		e.record(start, 0, "empty")
		return []models.QueryResult{}, nil
	}

	queryVec, err := e.embedder.EmbedText(ctx, params.Query)
	if err != nil {
		e.record(start, len(candidates), "embed_error")
		return nil, err
	}

	dense := topScored(e.denseLeg(queryVec, candidates), candidates, params.TopK)
	lexical := topScored(e.lexicalLeg(params.Query, candidates), candidates, params.TopK)
	normalizeScores(dense)
	normalizeScores(lexical)

	alpha := *params.Alpha
	fused := make(map[int]float64, len(dense)+len(lexical))
	for _, s := range dense {
		fused[s.idx] += alpha * s.score
	}
	for _, s := range lexical {
		fused[s.idx] += (1 - alpha) * s.score
	}

	ranked := make([]scored, 0, len(fused))
	for idx, score := range fused {
		ranked = append(ranked, scored{idx: idx, score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.score != b.score {
			return a.score > b.score
		}
		ca, cb := candidates[a.idx].Chunk, candidates[b.idx].Chunk
		if ca.Ordinal != cb.Ordinal {
			return ca.Ordinal < cb.Ordinal
		}
		return ca.ID.Hex() < cb.ID.Hex()
	})
	if len(ranked) > params.ReturnK {
		ranked = ranked[:params.ReturnK]
	}

	results := make([]models.QueryResult, len(ranked))
	for i, s := range ranked {
		cand := candidates[s.idx]
		results[i] = models.QueryResult{
			ChunkID:    cand.Chunk.ID.Hex(),
			DocumentID: cand.Chunk.DocumentID.Hex(),
			Filename:   cand.Filename,
			Content:    cand.Chunk.Text,
			Score:      s.score,
			Metadata: map[string]string{
				"ordinal": fmt.Sprintf("%d", cand.Chunk.Ordinal),
			},
		}
	}

	e.record(start, len(candidates), "ok")
	return results, nil
}

func (e *RetrievalEngine) applyDefaults(params QueryParams) QueryParams {
	if params.TopK == 0 {
		params.TopK = e.defaultTopK
	}
	if params.ReturnK == 0 {
		params.ReturnK = e.defaultReturnK
	}
	if params.Alpha == nil {
		alpha := e.defaultAlpha
		params.Alpha = &alpha
	}
	return params
}

func validateParams(params QueryParams) error {
	if strings.TrimSpace(params.Query) == "" {
		return fmt.Errorf("%w: query must not be empty", models.ErrInvalidParameters)
	}
	if params.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive", models.ErrInvalidParameters)
	}
	if params.ReturnK <= 0 || params.ReturnK > params.TopK {
		return fmt.Errorf("%w: return_k must be in (0, top_k]", models.ErrInvalidParameters)
	}
	if a := *params.Alpha; a < 0 || a > 1 {
		return fmt.Errorf("%w: alpha must be in [0, 1]", models.ErrInvalidParameters)
	}
	return nil
}

// denseLeg scores candidates by cosine similarity. Candidates whose stored
// vector length differs from the query vector are skipped rather than
// mis-scored.
func (e *RetrievalEngine) denseLeg(queryVec []float32, candidates []Candidate) []scored {
	leg := make([]scored, 0, len(candidates))
	for i, cand := range candidates {
		if len(cand.Vector) != len(queryVec) {
			continue
		}
		leg = append(leg, scored{idx: i, score: cosineSimilarity(queryVec, cand.Vector)})
	}
	return leg
}

// lexicalLeg scores every candidate with BM25 over the query terms. Zero
// scores stay in the list: they anchor the min of the min-max normalization,
// so any chunk that matches at all keeps a positive normalized score.
func (e *RetrievalEngine) lexicalLeg(query string, candidates []Candidate) []scored {
	queryTerms := Tokenize(query)
	if len(queryTerms) == 0 {
		return nil
	}

	docs := make([][]string, len(candidates))
	for i, cand := range candidates {
		docs[i] = Tokenize(cand.Chunk.Text)
	}
	bm25 := newBM25(docs)

	leg := make([]scored, len(candidates))
	for i := range candidates {
		leg[i] = scored{idx: i, score: bm25.Score(queryTerms, i)}
	}
	return leg
}

// topScored sorts a leg by raw score descending with the same deterministic
// tie-break as the final selection (ordinal, then chunk id) and truncates to k.
func topScored(leg []scored, candidates []Candidate, k int) []scored {
	sort.Slice(leg, func(i, j int) bool {
		if leg[i].score != leg[j].score {
			return leg[i].score > leg[j].score
		}
		ca, cb := candidates[leg[i].idx].Chunk, candidates[leg[j].idx].Chunk
		if ca.Ordinal != cb.Ordinal {
			return ca.Ordinal < cb.Ordinal
		}
		return ca.ID.Hex() < cb.ID.Hex()
	})
	if len(leg) > k {
		leg = leg[:k]
	}
	return leg
}

// normalizeScores min-max scales a leg's scores to [0,1] in place. When all
// scores are equal every entry maps to 1.0 so the leg still contributes its
// full weight.
func normalizeScores(leg []scored) {
	if len(leg) == 0 {
		return
	}
	lo, hi := leg[0].score, leg[0].score
	for _, s := range leg[1:] {
		if s.score < lo {
			lo = s.score
		}
		if s.score > hi {
			hi = s.score
		}
	}
	if hi == lo {
		for i := range leg {
			leg[i].score = 1.0
		}
		return
	}
	for i := range leg {
		leg[i].score = (leg[i].score - lo) / (hi - lo)
	}
}

// cosineSimilarity computes the cosine between two same-length vectors in
// float64 to limit drift on long vectors. Zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func (e *RetrievalEngine) record(start time.Time, candidates int, status string) {
	if e.metrics != nil {
		e.metrics.RecordQuery(time.Since(start).Seconds(), candidates, status)
	}
}
