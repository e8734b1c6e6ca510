package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"rag-knowledge-platform/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeIngestStore is an in-memory IngestStore that records what the pipeline
// persisted.
type fakeIngestStore struct {
	locks *NodeLocks

	pending   []*models.Document
	committed struct {
		doc        *models.Document
		chunks     []models.Chunk
		embeddings []models.Embedding
		calls      int
	}
	failedReasons map[primitive.ObjectID]string

	byHash    map[string]*models.Document
	commitErr error
}

func newFakeIngestStore() *fakeIngestStore {
	return &fakeIngestStore{
		locks:         NewNodeLocks(),
		failedReasons: make(map[primitive.ObjectID]string),
		byHash:        make(map[string]*models.Document),
	}
}

func (f *fakeIngestStore) Locks() *NodeLocks { return f.locks }

func (f *fakeIngestStore) FindReadyDocumentByHash(ctx context.Context, nodeID primitive.ObjectID, hash string) (*models.Document, error) {
	return f.byHash[hash], nil
}

func (f *fakeIngestStore) InsertPendingDocument(ctx context.Context, doc *models.Document) error {
	doc.ID = primitive.NewObjectID()
	doc.Status = models.StatusPending
	f.pending = append(f.pending, doc)
	return nil
}

func (f *fakeIngestStore) GetDocument(ctx context.Context, nodeID, docID primitive.ObjectID) (*models.Document, error) {
	for _, d := range f.pending {
		if d.ID == docID {
			return d, nil
		}
	}
	return nil, models.ErrDocumentNotFound
}

func (f *fakeIngestStore) CommitDocument(ctx context.Context, doc *models.Document, chunks []models.Chunk, embeddings []models.Embedding) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed.doc = doc
	f.committed.chunks = chunks
	f.committed.embeddings = embeddings
	f.committed.calls++
	doc.Status = models.StatusReady
	doc.ChunkCount = len(chunks)
	return nil
}

func (f *fakeIngestStore) MarkDocumentFailed(ctx context.Context, docID primitive.ObjectID, reason string) error {
	f.failedReasons[docID] = reason
	return nil
}

// countingEmbedder produces fixed-dimension vectors and can be told to fail
// at the nth text.
type countingEmbedder struct {
	dim    int
	failAt int // 1-based; 0 never fails
	calls  int
}

func (e *countingEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	if e.failAt > 0 && e.calls >= e.failAt {
		return nil, &models.EmbeddingProviderError{Transient: true, Err: fmt.Errorf("provider overloaded")}
	}
	vec := make([]float32, e.dim)
	vec[0] = 1
	return vec, nil
}

func (e *countingEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.EmbedText(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *countingEmbedder) Dimensions() int { return e.dim }

func newTestPipeline(store IngestStore, embedder *countingEmbedder, t *testing.T) *IngestionPipeline {
	t.Helper()
	chunker, err := NewChunker(10, 2)
	if err != nil {
		t.Fatalf("chunker: %v", err)
	}
	blobs, err := NewBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}
	return NewIngestionPipeline(store, NewTextExtractor(), chunker, embedder,
		blobs, nil, nil, embedder.dim, 1<<20)
}

func pendingDoc(store *fakeIngestStore, nodeID primitive.ObjectID) *models.Document {
	doc := &models.Document{NodeID: nodeID, Filename: "notes.txt"}
	store.InsertPendingDocument(context.Background(), doc)
	return doc
}

func TestProcessSuccess(t *testing.T) {
	store := newFakeIngestStore()
	embedder := &countingEmbedder{dim: 3}
	pipeline := newTestPipeline(store, embedder, t)
	doc := pendingDoc(store, primitive.NewObjectID())

	text := strings.Repeat("abcdefgh ", 5) // several chunks at window 10
	if err := pipeline.Process(context.Background(), doc, []byte(text)); err != nil {
		t.Fatalf("process: %v", err)
	}

	if doc.Status != models.StatusReady {
		t.Fatalf("status = %q", doc.Status)
	}
	if len(store.committed.chunks) == 0 {
		t.Fatal("no chunks committed")
	}
	if len(store.committed.chunks) != len(store.committed.embeddings) {
		t.Fatalf("%d chunks but %d embeddings",
			len(store.committed.chunks), len(store.committed.embeddings))
	}
	for i, ch := range store.committed.chunks {
		if ch.Ordinal != i {
			t.Errorf("chunk %d has ordinal %d", i, ch.Ordinal)
		}
		emb := store.committed.embeddings[i]
		if emb.ChunkID != ch.ID {
			t.Errorf("embedding %d not linked to its chunk", i)
		}
		if emb.Dim != 3 {
			t.Errorf("embedding %d dim = %d", i, emb.Dim)
		}
	}
}

func TestProcessEmbedFailureLeavesNothing(t *testing.T) {
	store := newFakeIngestStore()
	embedder := &countingEmbedder{dim: 3, failAt: 3}
	pipeline := newTestPipeline(store, embedder, t)
	doc := pendingDoc(store, primitive.NewObjectID())

	text := strings.Repeat("abcdefgh ", 10) // enough text for well over 3 chunks
	err := pipeline.Process(context.Background(), doc, []byte(text))
	if err == nil {
		t.Fatal("expected error")
	}

	if doc.Status != models.StatusFailed {
		t.Fatalf("status = %q, want failed", doc.Status)
	}
	if store.committed.calls != 0 {
		t.Fatalf("commit was called %d times on a failed ingest", store.committed.calls)
	}
	if _, ok := store.failedReasons[doc.ID]; !ok {
		t.Fatal("failure reason not recorded")
	}
	if !models.IsTransientEmbeddingError(err) {
		t.Errorf("provider overload should surface as transient, got %v", err)
	}
}

func TestProcessEmptyDocumentCommitsReady(t *testing.T) {
	store := newFakeIngestStore()
	embedder := &countingEmbedder{dim: 3}
	pipeline := newTestPipeline(store, embedder, t)
	doc := pendingDoc(store, primitive.NewObjectID())

	if err := pipeline.Process(context.Background(), doc, []byte("   \n\n  ")); err != nil {
		t.Fatalf("process: %v", err)
	}

	if doc.Status != models.StatusReady {
		t.Fatalf("status = %q, want ready", doc.Status)
	}
	if doc.ChunkCount != 0 {
		t.Fatalf("chunk count = %d, want 0", doc.ChunkCount)
	}
	if embedder.calls != 0 {
		t.Errorf("embedder called %d times for an empty document", embedder.calls)
	}
}

func TestProcessUnsupportedFormatFails(t *testing.T) {
	store := newFakeIngestStore()
	pipeline := newTestPipeline(store, &countingEmbedder{dim: 3}, t)
	doc := &models.Document{NodeID: primitive.NewObjectID(), Filename: "binary.exe"}
	store.InsertPendingDocument(context.Background(), doc)

	err := pipeline.Process(context.Background(), doc, []byte{0x4d, 0x5a})
	if !errors.Is(err, models.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if doc.Status != models.StatusFailed {
		t.Fatalf("status = %q, want failed", doc.Status)
	}
	if store.committed.calls != 0 {
		t.Fatal("commit called for unsupported format")
	}
}

// wrongDimEmbedder returns vectors one element short of its declared
// dimension.
type wrongDimEmbedder struct{ countingEmbedder }

func (e *wrongDimEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, e.dim-1)
	}
	return out, nil
}

func TestProcessDimensionMismatchIsPermanent(t *testing.T) {
	store := newFakeIngestStore()
	embedder := &wrongDimEmbedder{countingEmbedder{dim: 3}}
	chunker, _ := NewChunker(10, 2)
	pipeline := NewIngestionPipeline(store, NewTextExtractor(), chunker, embedder,
		nil, nil, nil, 3, 1<<20)
	doc := pendingDoc(store, primitive.NewObjectID())

	err := pipeline.Process(context.Background(), doc, []byte("a dimension mismatch document"))
	if err == nil {
		t.Fatal("expected error")
	}
	var provErr *models.EmbeddingProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected EmbeddingProviderError, got %v", err)
	}
	if provErr.Transient {
		t.Error("dimension mismatch must be permanent, not transient")
	}
	if doc.Status != models.StatusFailed {
		t.Fatalf("status = %q, want failed", doc.Status)
	}
}

func TestProcessCommitNodeDeleted(t *testing.T) {
	store := newFakeIngestStore()
	store.commitErr = models.ErrNodeNotFound
	pipeline := newTestPipeline(store, &countingEmbedder{dim: 3}, t)
	doc := pendingDoc(store, primitive.NewObjectID())

	err := pipeline.Process(context.Background(), doc, []byte("some document text"))
	if !errors.Is(err, models.ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
	// The cascade removed the record; there is nothing left to mark failed.
	if _, ok := store.failedReasons[doc.ID]; ok {
		t.Error("document marked failed after its node was deleted")
	}
}

func TestProcessCommitDocumentDeleted(t *testing.T) {
	store := newFakeIngestStore()
	store.commitErr = models.ErrDocumentNotFound
	pipeline := newTestPipeline(store, &countingEmbedder{dim: 3}, t)
	doc := pendingDoc(store, primitive.NewObjectID())

	err := pipeline.Process(context.Background(), doc, []byte("some document text"))
	if !errors.Is(err, models.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if _, ok := store.failedReasons[doc.ID]; ok {
		t.Error("document marked failed after its record was deleted")
	}
}

func TestIngestUploadDeduplicates(t *testing.T) {
	store := newFakeIngestStore()
	embedder := &countingEmbedder{dim: 3}
	pipeline := newTestPipeline(store, embedder, t)
	nodeID := primitive.NewObjectID()

	content := []byte("identical upload content")
	first, err := pipeline.IngestUpload(context.Background(), nodeID, "a.txt", "text/plain", content)
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	store.byHash[first.FileHash] = first

	second, err := pipeline.IngestUpload(context.Background(), nodeID, "b.txt", "text/plain", content)
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("duplicate content created a new document")
	}
	if len(store.pending) != 1 {
		t.Errorf("%d pending inserts for duplicate content, want 1", len(store.pending))
	}
}
