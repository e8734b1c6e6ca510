package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rag-knowledge-platform/internal/ai"
	"rag-knowledge-platform/internal/logger"
	"rag-knowledge-platform/internal/telemetry"
	"rag-knowledge-platform/models"
	"rag-knowledge-platform/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// IngestEnqueuer hands a stored pending document to background processing.
// Satisfied by the queue client; nil means everything runs synchronously.
type IngestEnqueuer interface {
	EnqueueIngest(ctx context.Context, nodeID, docID primitive.ObjectID) error
}

// IngestStore is the persistence surface the pipeline needs. Satisfied by
// DocumentStore.
type IngestStore interface {
	Locks() *NodeLocks
	FindReadyDocumentByHash(ctx context.Context, nodeID primitive.ObjectID, hash string) (*models.Document, error)
	InsertPendingDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, nodeID, docID primitive.ObjectID) (*models.Document, error)
	CommitDocument(ctx context.Context, doc *models.Document, chunks []models.Chunk, embeddings []models.Embedding) error
	MarkDocumentFailed(ctx context.Context, docID primitive.ObjectID, reason string) error
}

// IngestionPipeline runs upload -> extract -> chunk -> embed -> commit. A
// document becomes retrievable only when the final commit transaction
// succeeds; any earlier failure marks it failed with no chunks or embeddings
// persisted.
type IngestionPipeline struct {
	store     IngestStore
	extractor *TextExtractor
	chunker   *Chunker
	embedder  ai.Embedder
	blobs     *BlobStore
	cache     *ChunkCache
	metrics   *telemetry.Metrics
	enqueuer  IngestEnqueuer

	dim       int
	syncLimit int64
}

func NewIngestionPipeline(store IngestStore, extractor *TextExtractor, chunker *Chunker, embedder ai.Embedder, blobs *BlobStore, cache *ChunkCache, metrics *telemetry.Metrics, dim int, syncLimit int64) *IngestionPipeline {
	return &IngestionPipeline{
		store:     store,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		blobs:     blobs,
		cache:     cache,
		metrics:   metrics,
		dim:       dim,
		syncLimit: syncLimit,
	}
}

// SetEnqueuer enables the asynchronous path for large uploads.
func (p *IngestionPipeline) SetEnqueuer(e IngestEnqueuer) { p.enqueuer = e }

// IngestUpload registers and processes one uploaded file. Identical content
// already ready in the node is deduplicated: the existing document is
// returned untouched. Uploads above the sync limit are queued and returned
// still pending.
func (p *IngestionPipeline) IngestUpload(ctx context.Context, nodeID primitive.ObjectID, filename, mimeType string, content []byte) (*models.Document, error) {
	unlock := p.store.Locks().RLock(nodeID)
	defer unlock()

	hash := utils.ContentHash(content)
	if existing, err := p.store.FindReadyDocumentByHash(ctx, nodeID, hash); err != nil {
		return nil, err
	} else if existing != nil {
		logger.Info("duplicate upload deduplicated",
			"node_id", nodeID.Hex(), "document_id", existing.ID.Hex(), "filename", filename)
		return existing, nil
	}

	doc := &models.Document{
		NodeID:   nodeID,
		Filename: filename,
		MimeType: mimeType,
		FileHash: hash,
	}

	// The blob goes down first so the pending record already carries its
	// path; the worker needs it to re-read the content.
	if path, err := p.blobs.Save(nodeID.Hex(), content); err != nil {
		logger.Warn("blob save failed, continuing without stored original",
			"node_id", nodeID.Hex(), "filename", filename, "error", err)
	} else {
		doc.FilePath = path
	}

	if err := p.store.InsertPendingDocument(ctx, doc); err != nil {
		p.blobs.Remove(doc.FilePath)
		return nil, err
	}

	if p.enqueuer != nil && doc.FilePath != "" && int64(len(content)) > p.syncLimit {
		if err := p.enqueuer.EnqueueIngest(ctx, nodeID, doc.ID); err == nil {
			logger.Info("large upload queued for background ingestion",
				"document_id", doc.ID.Hex(), "size", len(content))
			return doc, nil
		}
		logger.Warn("enqueue failed, processing synchronously", "document_id", doc.ID.Hex())
	}

	if err := p.Process(ctx, doc, content); err != nil {
		return doc, err
	}
	return doc, nil
}

// ProcessStored re-reads a pending document's blob and runs the pipeline on
// it. Used by queue workers.
func (p *IngestionPipeline) ProcessStored(ctx context.Context, nodeID, docID primitive.ObjectID) error {
	doc, err := p.store.GetDocument(ctx, nodeID, docID)
	if err != nil {
		return err
	}
	if doc.Status != models.StatusPending {
		// Already settled by an earlier attempt.
		return nil
	}
	content, err := p.blobs.Load(doc.FilePath)
	if err != nil {
		_ = p.store.MarkDocumentFailed(ctx, doc.ID, fmt.Sprintf("stored blob unreadable: %v", err))
		return err
	}

	unlock := p.store.Locks().RLock(nodeID)
	defer unlock()
	return p.Process(ctx, doc, content)
}

// Process runs extract -> chunk -> embed -> commit for a pending document.
func (p *IngestionPipeline) Process(ctx context.Context, doc *models.Document, content []byte) error {
	tracer := otel.Tracer("ingestion")
	ctx, span := tracer.Start(ctx, "ingestion.process",
		trace.WithAttributes(
			attribute.String("document.id", doc.ID.Hex()),
			attribute.String("document.filename", doc.Filename),
		))
	defer span.End()
	start := time.Now()

	text, err := p.extractor.Extract(doc.Filename, content)
	if err != nil {
		return p.fail(ctx, doc, start, fmt.Errorf("extract: %w", err))
	}

	chunks := p.chunker.Split(text)
	span.SetAttributes(attribute.Int("ingestion.chunks", len(chunks)))

	// An empty document is valid: it commits as ready with zero chunks and
	// simply contributes nothing to retrieval.
	if len(chunks) == 0 {
		return p.commit(ctx, doc, nil, nil, start)
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return p.fail(ctx, doc, start, fmt.Errorf("embed: %w", err))
	}
	for i, vec := range vectors {
		if len(vec) != p.dim {
			err := &models.EmbeddingProviderError{
				Err: fmt.Errorf("chunk %d: provider returned %d dimensions, expected %d", i, len(vec), p.dim),
			}
			return p.fail(ctx, doc, start, err)
		}
	}

	now := time.Now()
	chunkModels := make([]models.Chunk, len(chunks))
	embeddingModels := make([]models.Embedding, len(chunks))
	for i, ch := range chunks {
		chunkID := primitive.NewObjectID()
		chunkModels[i] = models.Chunk{
			ID:         chunkID,
			DocumentID: doc.ID,
			NodeID:     doc.NodeID,
			Ordinal:    ch.Ordinal,
			Text:       ch.Text,
			StartIndex: ch.StartIndex,
			EndIndex:   ch.EndIndex,
			CharCount:  ch.EndIndex - ch.StartIndex,
		}
		embeddingModels[i] = models.Embedding{
			ID:         primitive.NewObjectID(),
			ChunkID:    chunkID,
			DocumentID: doc.ID,
			NodeID:     doc.NodeID,
			Vector:     vectors[i],
			Dim:        len(vectors[i]),
			CreatedAt:  now,
		}
	}

	return p.commit(ctx, doc, chunkModels, embeddingModels, start)
}

func (p *IngestionPipeline) commit(ctx context.Context, doc *models.Document, chunks []models.Chunk, embeddings []models.Embedding, start time.Time) error {
	if err := p.store.CommitDocument(ctx, doc, chunks, embeddings); err != nil {
		if errors.Is(err, models.ErrNodeNotFound) || errors.Is(err, models.ErrDocumentNotFound) {
			// The node or the pending record was deleted mid-flight;
			// there is nothing left to mark.
			logger.Warn("record deleted during ingestion", "document_id", doc.ID.Hex())
			p.recordIngestion(start, "record_deleted", 0)
			return err
		}
		return p.fail(ctx, doc, start, err)
	}

	p.cache.Invalidate(ctx, doc.NodeID)
	p.recordIngestion(start, "ready", len(chunks))
	logger.Info("document ingested",
		"document_id", doc.ID.Hex(), "node_id", doc.NodeID.Hex(), "chunks", len(chunks))
	return nil
}

// fail settles the document as failed and returns the original cause. The
// failed record stays behind as an audit trail with no chunks or embeddings.
func (p *IngestionPipeline) fail(ctx context.Context, doc *models.Document, start time.Time, cause error) error {
	doc.Status = models.StatusFailed
	doc.ErrorMessage = cause.Error()
	if err := p.store.MarkDocumentFailed(ctx, doc.ID, cause.Error()); err != nil {
		logger.Error("failed to mark document failed", "document_id", doc.ID.Hex(), "error", err)
	}
	p.recordIngestion(start, "failed", 0)
	logger.Warn("document ingestion failed",
		"document_id", doc.ID.Hex(), "node_id", doc.NodeID.Hex(), "error", cause)
	return cause
}

func (p *IngestionPipeline) recordIngestion(start time.Time, status string, chunks int) {
	if p.metrics != nil {
		p.metrics.RecordIngestion(time.Since(start).Seconds(), status, chunks)
	}
}
