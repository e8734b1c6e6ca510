package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rag-knowledge-platform/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Candidate is one retrievable chunk joined to its embedding and the parent
// document's display fields.
type Candidate struct {
	Chunk    models.Chunk `json:"chunk"`
	Vector   []float32    `json:"vector"`
	Filename string       `json:"filename"`
}

// DocumentStore persists nodes, documents, chunks and embeddings. Writes that
// must be all-or-nothing (ingest commit, cascade delete) run inside a mongo
// transaction; everything else is plain collection access.
type DocumentStore struct {
	client     *mongo.Client
	nodes      *mongo.Collection
	documents  *mongo.Collection
	chunks     *mongo.Collection
	embeddings *mongo.Collection
	locks      *NodeLocks
}

func NewDocumentStore(client *mongo.Client, dbName string) *DocumentStore {
	db := client.Database(dbName)
	return &DocumentStore{
		client:     client,
		nodes:      db.Collection("nodes"),
		documents:  db.Collection("documents"),
		chunks:     db.Collection("chunks"),
		embeddings: db.Collection("embeddings"),
		locks:      NewNodeLocks(),
	}
}

// Locks exposes the per-node mutual exclusion used by ingestion and deletion.
func (s *DocumentStore) Locks() *NodeLocks { return s.locks }

// CreateNode inserts a new retrieval namespace.
func (s *DocumentStore) CreateNode(ctx context.Context, name, description string) (*models.Node, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, models.ErrInvalidName
	}

	now := time.Now()
	node := &models.Node{
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	res, err := s.nodes.InsertOne(ctx, node)
	if mongo.IsDuplicateKeyError(err) {
		return nil, models.ErrDuplicateName
	}
	if err != nil {
		return nil, fmt.Errorf("%w: insert node: %v", models.ErrStorage, err)
	}
	node.ID = res.InsertedID.(primitive.ObjectID)
	return node, nil
}

// GetNode loads a node by id.
func (s *DocumentStore) GetNode(ctx context.Context, nodeID primitive.ObjectID) (*models.Node, error) {
	var node models.Node
	err := s.nodes.FindOne(ctx, bson.M{"_id": nodeID}).Decode(&node)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrNodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find node: %v", models.ErrStorage, err)
	}
	return &node, nil
}

// NodeExists reports whether the node is present.
func (s *DocumentStore) NodeExists(ctx context.Context, nodeID primitive.ObjectID) (bool, error) {
	count, err := s.nodes.CountDocuments(ctx, bson.M{"_id": nodeID})
	if err != nil {
		return false, fmt.Errorf("%w: count nodes: %v", models.ErrStorage, err)
	}
	return count > 0, nil
}

// ListNodes returns all nodes, newest first.
func (s *DocumentStore) ListNodes(ctx context.Context) ([]models.Node, error) {
	cursor, err := s.nodes.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("%w: list nodes: %v", models.ErrStorage, err)
	}
	var nodes []models.Node
	if err := cursor.All(ctx, &nodes); err != nil {
		return nil, fmt.Errorf("%w: decode nodes: %v", models.ErrStorage, err)
	}
	return nodes, nil
}

// DeleteNode removes the node and everything under it. The cascade runs in a
// single transaction, strictly embeddings -> chunks -> documents -> node, so a
// crash mid-way leaves the prior state intact. Returns the blob paths of the
// removed documents so the caller can clean up storage best-effort.
func (s *DocumentStore) DeleteNode(ctx context.Context, nodeID primitive.ObjectID) ([]string, int64, error) {
	// Node-level write lock: no ingest may commit into the node while the
	// cascade runs in this process. Cross-process safety comes from ingest
	// commits re-checking node existence transactionally.
	unlock := s.locks.Lock(nodeID)
	defer unlock()

	var (
		filePaths     []string
		chunksDeleted int64
	)

	session, err := s.client.StartSession()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: start session: %v", models.ErrStorage, err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		count, err := s.nodes.CountDocuments(sc, bson.M{"_id": nodeID})
		if err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, models.ErrNodeNotFound
		}

		cursor, err := s.documents.Find(sc, bson.M{"node_id": nodeID},
			options.Find().SetProjection(bson.M{"file_path": 1}))
		if err != nil {
			return nil, err
		}
		var docs []models.Document
		if err := cursor.All(sc, &docs); err != nil {
			return nil, err
		}
		filePaths = filePaths[:0]
		for _, d := range docs {
			if d.FilePath != "" {
				filePaths = append(filePaths, d.FilePath)
			}
		}

		// Referential integrity: embeddings before chunks before documents.
		if _, err := s.embeddings.DeleteMany(sc, bson.M{"node_id": nodeID}); err != nil {
			return nil, err
		}
		res, err := s.chunks.DeleteMany(sc, bson.M{"node_id": nodeID})
		if err != nil {
			return nil, err
		}
		chunksDeleted = res.DeletedCount
		if _, err := s.documents.DeleteMany(sc, bson.M{"node_id": nodeID}); err != nil {
			return nil, err
		}
		if _, err := s.nodes.DeleteOne(sc, bson.M{"_id": nodeID}); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		if err == models.ErrNodeNotFound {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("%w: node cascade: %v", models.ErrStorage, err)
	}

	return filePaths, chunksDeleted, nil
}

// InsertPendingDocument records a document before its pipeline run. The node
// must exist.
func (s *DocumentStore) InsertPendingDocument(ctx context.Context, doc *models.Document) error {
	exists, err := s.NodeExists(ctx, doc.NodeID)
	if err != nil {
		return err
	}
	if !exists {
		return models.ErrNodeNotFound
	}

	doc.Status = models.StatusPending
	doc.CreatedAt = time.Now()
	res, err := s.documents.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("%w: insert document: %v", models.ErrStorage, err)
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// GetDocument loads one document scoped to its node.
func (s *DocumentStore) GetDocument(ctx context.Context, nodeID, docID primitive.ObjectID) (*models.Document, error) {
	var doc models.Document
	err := s.documents.FindOne(ctx, bson.M{"_id": docID, "node_id": nodeID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find document: %v", models.ErrStorage, err)
	}
	return &doc, nil
}

// ListDocuments returns a node's documents, newest first.
func (s *DocumentStore) ListDocuments(ctx context.Context, nodeID primitive.ObjectID) ([]models.Document, error) {
	cursor, err := s.documents.Find(ctx, bson.M{"node_id": nodeID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("%w: list documents: %v", models.ErrStorage, err)
	}
	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: decode documents: %v", models.ErrStorage, err)
	}
	return docs, nil
}

// FindReadyDocumentByHash returns an existing ready document with the same
// content hash in the node, for upload deduplication. Nil when absent.
func (s *DocumentStore) FindReadyDocumentByHash(ctx context.Context, nodeID primitive.ObjectID, hash string) (*models.Document, error) {
	var doc models.Document
	err := s.documents.FindOne(ctx, bson.M{
		"node_id":   nodeID,
		"file_hash": hash,
		"status":    models.StatusReady,
	}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find by hash: %v", models.ErrStorage, err)
	}
	return &doc, nil
}

// CommitDocument makes an ingested document retrievable: inside one
// transaction it re-verifies the node, inserts all chunks and embeddings, and
// flips the document to ready. Nothing of the document is visible to
// retrieval until this commit succeeds.
func (s *DocumentStore) CommitDocument(ctx context.Context, doc *models.Document, chunks []models.Chunk, embeddings []models.Embedding) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("%w: start session: %v", models.ErrStorage, err)
	}
	defer session.EndSession(ctx)

	now := time.Now()
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		// The node may have been cascade-deleted since the pending insert.
		count, err := s.nodes.CountDocuments(sc, bson.M{"_id": doc.NodeID})
		if err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, models.ErrNodeNotFound
		}

		// The document itself may have been deleted by a racing
		// DeleteDocument; inserting chunks for it would orphan them.
		count, err = s.documents.CountDocuments(sc, bson.M{"_id": doc.ID, "status": models.StatusPending})
		if err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, models.ErrDocumentNotFound
		}

		if len(chunks) > 0 {
			chunkDocs := make([]interface{}, len(chunks))
			for i := range chunks {
				chunkDocs[i] = chunks[i]
			}
			if _, err := s.chunks.InsertMany(sc, chunkDocs); err != nil {
				return nil, err
			}
			embDocs := make([]interface{}, len(embeddings))
			for i := range embeddings {
				embDocs[i] = embeddings[i]
			}
			if _, err := s.embeddings.InsertMany(sc, embDocs); err != nil {
				return nil, err
			}
		}

		_, err = s.documents.UpdateOne(sc,
			bson.M{"_id": doc.ID},
			bson.M{"$set": bson.M{
				"status":       models.StatusReady,
				"chunk_count":  len(chunks),
				"processed_at": now,
			}},
		)
		return nil, err
	})
	if err != nil {
		if err == models.ErrNodeNotFound || err == models.ErrDocumentNotFound {
			return err
		}
		return fmt.Errorf("%w: commit document: %v", models.ErrStorage, err)
	}

	doc.Status = models.StatusReady
	doc.ChunkCount = len(chunks)
	doc.ProcessedAt = &now
	return nil
}

// MarkDocumentFailed records a terminal ingestion failure. The document keeps
// its record (with the error) but never any chunks or embeddings.
func (s *DocumentStore) MarkDocumentFailed(ctx context.Context, docID primitive.ObjectID, reason string) error {
	_, err := s.documents.UpdateOne(ctx,
		bson.M{"_id": docID},
		bson.M{"$set": bson.M{
			"status":        models.StatusFailed,
			"error_message": reason,
		}},
	)
	if err != nil {
		return fmt.Errorf("%w: mark failed: %v", models.ErrStorage, err)
	}
	return nil
}

// DeleteDocument removes one document with its chunks and embeddings in a
// transaction. Returns the blob path for best-effort cleanup by the caller.
func (s *DocumentStore) DeleteDocument(ctx context.Context, nodeID, docID primitive.ObjectID) (string, error) {
	doc, err := s.GetDocument(ctx, nodeID, docID)
	if err != nil {
		return "", err
	}

	session, err := s.client.StartSession()
	if err != nil {
		return "", fmt.Errorf("%w: start session: %v", models.ErrStorage, err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := s.embeddings.DeleteMany(sc, bson.M{"document_id": docID}); err != nil {
			return nil, err
		}
		if _, err := s.chunks.DeleteMany(sc, bson.M{"document_id": docID}); err != nil {
			return nil, err
		}
		if _, err := s.documents.DeleteOne(sc, bson.M{"_id": docID}); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: delete document: %v", models.ErrStorage, err)
	}

	return doc.FilePath, nil
}

// ReadyCandidates loads every chunk of the node's ready documents joined to
// its embedding. Chunks of pending or failed documents are never candidates.
func (s *DocumentStore) ReadyCandidates(ctx context.Context, nodeID primitive.ObjectID) ([]Candidate, error) {
	cursor, err := s.documents.Find(ctx,
		bson.M{"node_id": nodeID, "status": models.StatusReady},
		options.Find().SetProjection(bson.M{"_id": 1, "filename": 1}))
	if err != nil {
		return nil, fmt.Errorf("%w: find ready documents: %v", models.ErrStorage, err)
	}
	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: decode documents: %v", models.ErrStorage, err)
	}
	if len(docs) == 0 {
		return nil, nil
	}

	docIDs := make([]primitive.ObjectID, len(docs))
	filenames := make(map[primitive.ObjectID]string, len(docs))
	for i, d := range docs {
		docIDs[i] = d.ID
		filenames[d.ID] = d.Filename
	}

	chunkCursor, err := s.chunks.Find(ctx, bson.M{"document_id": bson.M{"$in": docIDs}})
	if err != nil {
		return nil, fmt.Errorf("%w: find chunks: %v", models.ErrStorage, err)
	}
	var chunks []models.Chunk
	if err := chunkCursor.All(ctx, &chunks); err != nil {
		return nil, fmt.Errorf("%w: decode chunks: %v", models.ErrStorage, err)
	}

	embCursor, err := s.embeddings.Find(ctx, bson.M{"document_id": bson.M{"$in": docIDs}})
	if err != nil {
		return nil, fmt.Errorf("%w: find embeddings: %v", models.ErrStorage, err)
	}
	var embeddings []models.Embedding
	if err := embCursor.All(ctx, &embeddings); err != nil {
		return nil, fmt.Errorf("%w: decode embeddings: %v", models.ErrStorage, err)
	}
	vectors := make(map[primitive.ObjectID][]float32, len(embeddings))
	for _, e := range embeddings {
		vectors[e.ChunkID] = e.Vector
	}

	candidates := make([]Candidate, 0, len(chunks))
	for _, ch := range chunks {
		vec, ok := vectors[ch.ID]
		if !ok {
			// A ready document always has one embedding per chunk; skip
			// rather than fail if an operator hand-edited the collections.
			continue
		}
		candidates = append(candidates, Candidate{
			Chunk:    ch,
			Vector:   vec,
			Filename: filenames[ch.DocumentID],
		})
	}
	return candidates, nil
}

// FailStalePending flips documents stuck in pending since before the deadline
// to failed. Used by the cleanup job.
func (s *DocumentStore) FailStalePending(ctx context.Context, deadline time.Time) (int64, error) {
	res, err := s.documents.UpdateMany(ctx,
		bson.M{"status": models.StatusPending, "created_at": bson.M{"$lt": deadline}},
		bson.M{"$set": bson.M{
			"status":        models.StatusFailed,
			"error_message": "ingestion deadline exceeded",
		}},
	)
	if err != nil {
		return 0, fmt.Errorf("%w: fail stale pending: %v", models.ErrStorage, err)
	}
	return res.ModifiedCount, nil
}

// PurgeFailedBefore deletes failed document records older than the cutoff.
// Failed documents never have chunks or embeddings, so a plain delete is safe.
func (s *DocumentStore) PurgeFailedBefore(ctx context.Context, cutoff time.Time) (int64, []string, error) {
	cursor, err := s.documents.Find(ctx,
		bson.M{"status": models.StatusFailed, "created_at": bson.M{"$lt": cutoff}},
		options.Find().SetProjection(bson.M{"file_path": 1}))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: find failed documents: %v", models.ErrStorage, err)
	}
	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return 0, nil, fmt.Errorf("%w: decode failed documents: %v", models.ErrStorage, err)
	}
	var paths []string
	for _, d := range docs {
		if d.FilePath != "" {
			paths = append(paths, d.FilePath)
		}
	}

	res, err := s.documents.DeleteMany(ctx,
		bson.M{"status": models.StatusFailed, "created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, nil, fmt.Errorf("%w: purge failed documents: %v", models.ErrStorage, err)
	}
	return res.DeletedCount, paths, nil
}
