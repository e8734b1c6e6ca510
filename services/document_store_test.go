package services

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"rag-knowledge-platform/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Needs a running mongod with replica set support for transactions.
func storeForTest(t *testing.T) *DocumentStore {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Skipf("mongo connect failed: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		t.Skipf("mongo ping failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client.Database("rag_test").Drop(ctx)
		client.Disconnect(ctx)
	})

	return NewDocumentStore(client, "rag_test")
}

func TestNodeLifecycle(t *testing.T) {
	store := storeForTest(t)
	ctx := context.Background()

	node, err := store.CreateNode(ctx, "  kb-main  ", "primary knowledge base")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if node.Name != "kb-main" {
		t.Errorf("name not trimmed: %q", node.Name)
	}

	got, err := store.GetNode(ctx, node.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != node.Name {
		t.Errorf("round trip name = %q", got.Name)
	}

	if _, err := store.CreateNode(ctx, "   ", ""); !errors.Is(err, models.ErrInvalidName) {
		t.Errorf("blank name: expected ErrInvalidName, got %v", err)
	}

	if _, err := store.CreateNode(ctx, "kb-main", "second"); !errors.Is(err, models.ErrDuplicateName) {
		t.Errorf("duplicate name: expected ErrDuplicateName, got %v", err)
	}

	if _, _, err := store.DeleteNode(ctx, node.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetNode(ctx, node.ID); !errors.Is(err, models.ErrNodeNotFound) {
		t.Errorf("after delete: expected ErrNodeNotFound, got %v", err)
	}
	if _, _, err := store.DeleteNode(ctx, node.ID); !errors.Is(err, models.ErrNodeNotFound) {
		t.Errorf("double delete: expected ErrNodeNotFound, got %v", err)
	}
}

func TestCascadeDeleteRemovesEverything(t *testing.T) {
	store := storeForTest(t)
	ctx := context.Background()

	node, err := store.CreateNode(ctx, "cascade", "")
	if err != nil {
		t.Fatalf("create node: %v", err)
	}

	doc := &models.Document{NodeID: node.ID, Filename: "a.txt", FileHash: "h1"}
	if err := store.InsertPendingDocument(ctx, doc); err != nil {
		t.Fatalf("insert document: %v", err)
	}

	chunkID := primitive.NewObjectID()
	chunks := []models.Chunk{{
		ID: chunkID, DocumentID: doc.ID, NodeID: node.ID,
		Ordinal: 0, Text: "chunk text", StartIndex: 0, EndIndex: 10, CharCount: 10,
	}}
	embeddings := []models.Embedding{{
		ID: primitive.NewObjectID(), ChunkID: chunkID, DocumentID: doc.ID,
		NodeID: node.ID, Vector: []float32{1, 0}, Dim: 2, CreatedAt: time.Now(),
	}}
	if err := store.CommitDocument(ctx, doc, chunks, embeddings); err != nil {
		t.Fatalf("commit: %v", err)
	}

	candidates, err := store.ReadyCandidates(ctx, node.ID)
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(candidates))
	}

	if _, chunksDeleted, err := store.DeleteNode(ctx, node.ID); err != nil {
		t.Fatalf("cascade: %v", err)
	} else if chunksDeleted != 1 {
		t.Errorf("chunks deleted = %d, want 1", chunksDeleted)
	}

	if _, err := store.GetDocument(ctx, node.ID, doc.ID); !errors.Is(err, models.ErrDocumentNotFound) {
		t.Errorf("document survived cascade: %v", err)
	}
}

func TestReadyCandidatesExcludesUnsettledDocuments(t *testing.T) {
	store := storeForTest(t)
	ctx := context.Background()

	node, err := store.CreateNode(ctx, "statuses", "")
	if err != nil {
		t.Fatalf("create node: %v", err)
	}

	pending := &models.Document{NodeID: node.ID, Filename: "pending.txt", FileHash: "p"}
	if err := store.InsertPendingDocument(ctx, pending); err != nil {
		t.Fatalf("insert pending: %v", err)
	}

	failed := &models.Document{NodeID: node.ID, Filename: "failed.txt", FileHash: "f"}
	if err := store.InsertPendingDocument(ctx, failed); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := store.MarkDocumentFailed(ctx, failed.ID, "extraction error"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	candidates, err := store.ReadyCandidates(ctx, node.ID)
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("pending/failed documents produced %d candidates", len(candidates))
	}

	got, err := store.GetDocument(ctx, node.ID, failed.ID)
	if err != nil {
		t.Fatalf("get failed doc: %v", err)
	}
	if got.Status != models.StatusFailed || got.ErrorMessage == "" {
		t.Errorf("failed audit record incomplete: %+v", got)
	}
}

func TestCommitAfterNodeDeleted(t *testing.T) {
	store := storeForTest(t)
	ctx := context.Background()

	node, err := store.CreateNode(ctx, "race", "")
	if err != nil {
		t.Fatalf("create node: %v", err)
	}
	doc := &models.Document{NodeID: node.ID, Filename: "late.txt", FileHash: "l"}
	if err := store.InsertPendingDocument(ctx, doc); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if _, _, err := store.DeleteNode(ctx, node.ID); err != nil {
		t.Fatalf("delete node: %v", err)
	}

	err = store.CommitDocument(ctx, doc, nil, nil)
	if !errors.Is(err, models.ErrNodeNotFound) {
		t.Fatalf("commit into deleted node: expected ErrNodeNotFound, got %v", err)
	}
}

func TestCommitAfterDocumentDeleted(t *testing.T) {
	store := storeForTest(t)
	ctx := context.Background()

	node, err := store.CreateNode(ctx, "doc-race", "")
	if err != nil {
		t.Fatalf("create node: %v", err)
	}
	doc := &models.Document{NodeID: node.ID, Filename: "gone.txt", FileHash: "g"}
	if err := store.InsertPendingDocument(ctx, doc); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if _, err := store.DeleteDocument(ctx, node.ID, doc.ID); err != nil {
		t.Fatalf("delete document: %v", err)
	}

	chunkID := primitive.NewObjectID()
	chunks := []models.Chunk{{
		ID: chunkID, DocumentID: doc.ID, NodeID: node.ID,
		Ordinal: 0, Text: "orphan", StartIndex: 0, EndIndex: 6, CharCount: 6,
	}}
	embeddings := []models.Embedding{{
		ID: primitive.NewObjectID(), ChunkID: chunkID, DocumentID: doc.ID,
		NodeID: node.ID, Vector: []float32{1, 0}, Dim: 2, CreatedAt: time.Now(),
	}}

	err = store.CommitDocument(ctx, doc, chunks, embeddings)
	if !errors.Is(err, models.ErrDocumentNotFound) {
		t.Fatalf("commit of deleted document: expected ErrDocumentNotFound, got %v", err)
	}

	// The aborted transaction must leave no chunk rows behind.
	candidates, err := store.ReadyCandidates(ctx, node.ID)
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("candidates = %d, want 0", len(candidates))
	}
}
