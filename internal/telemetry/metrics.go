package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter    metric.Int64Counter
	RequestDuration   metric.Float64Histogram
	IngestionDuration metric.Float64Histogram
	ChunksIngested    metric.Int64Counter
	QueryDuration     metric.Float64Histogram
	QueryCandidates   metric.Int64Counter
	EmbeddingCalls    metric.Int64Counter
	CascadeDeletes    metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("rag-knowledge-platform")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	ingestionDuration, err := meter.Float64Histogram(
		"ingestion.duration",
		metric.WithDescription("Document ingestion duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	chunksIngested, err := meter.Int64Counter(
		"ingestion.chunks.total",
		metric.WithDescription("Total chunks persisted by ingestion"),
	)
	if err != nil {
		return nil, err
	}

	queryDuration, err := meter.Float64Histogram(
		"query.duration",
		metric.WithDescription("Hybrid query duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	queryCandidates, err := meter.Int64Counter(
		"query.candidates.total",
		metric.WithDescription("Candidate chunks scored by queries"),
	)
	if err != nil {
		return nil, err
	}

	embeddingCalls, err := meter.Int64Counter(
		"embeddings.calls.total",
		metric.WithDescription("Embedding provider calls"),
	)
	if err != nil {
		return nil, err
	}

	cascadeDeletes, err := meter.Int64Counter(
		"nodes.cascade_deletes.total",
		metric.WithDescription("Completed node cascade deletes"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:    requestCounter,
		RequestDuration:   requestDuration,
		IngestionDuration: ingestionDuration,
		ChunksIngested:    chunksIngested,
		QueryDuration:     queryDuration,
		QueryCandidates:   queryCandidates,
		EmbeddingCalls:    embeddingCalls,
		CascadeDeletes:    cascadeDeletes,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordIngestion records one finished ingestion attempt
func (m *Metrics) RecordIngestion(duration float64, status string, chunks int) {
	attrs := []attribute.KeyValue{
		attribute.String("ingestion.status", status),
	}

	m.IngestionDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
	if chunks > 0 {
		m.ChunksIngested.Add(context.Background(), int64(chunks), metric.WithAttributes(attrs...))
	}
}

// RecordQuery records one finished hybrid query
func (m *Metrics) RecordQuery(duration float64, candidates int, status string) {
	attrs := []attribute.KeyValue{
		attribute.String("query.status", status),
	}

	m.QueryDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
	m.QueryCandidates.Add(context.Background(), int64(candidates), metric.WithAttributes(attrs...))
}

// RecordEmbeddingCall records one embedding provider round trip
func (m *Metrics) RecordEmbeddingCall(provider string, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("embeddings.provider", provider),
		attribute.Bool("embeddings.success", success),
	}

	m.EmbeddingCalls.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordCascadeDelete records a completed node cascade
func (m *Metrics) RecordCascadeDelete(documents, chunks int) {
	attrs := []attribute.KeyValue{
		attribute.Int("cascade.documents", documents),
		attribute.Int("cascade.chunks", chunks),
	}

	m.CascadeDeletes.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
