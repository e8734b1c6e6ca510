package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Chunk is a contiguous window of a document's normalized text, the atomic
// unit of retrieval. Ordinals are contiguous starting at 0 per document.
type Chunk struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DocumentID primitive.ObjectID `bson:"document_id" json:"document_id"`
	NodeID     primitive.ObjectID `bson:"node_id" json:"node_id"`
	Ordinal    int                `bson:"ordinal" json:"ordinal"`
	Text       string             `bson:"text" json:"text"`
	StartIndex int                `bson:"start_index" json:"start_index"`
	EndIndex   int                `bson:"end_index" json:"end_index"`
	CharCount  int                `bson:"char_count" json:"char_count"`
}

// Embedding is the dense vector of exactly one chunk. Kept in its own
// collection so the deletion cascade can remove embeddings before chunks.
type Embedding struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ChunkID    primitive.ObjectID `bson:"chunk_id" json:"chunk_id"`
	DocumentID primitive.ObjectID `bson:"document_id" json:"document_id"`
	NodeID     primitive.ObjectID `bson:"node_id" json:"node_id"`
	Vector     []float32          `bson:"vector" json:"-"`
	Dim        int                `bson:"dim" json:"dim"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}

// QueryResult is one ranked retrieval hit returned to callers.
type QueryResult struct {
	ChunkID    string            `json:"chunk_id"`
	DocumentID string            `json:"document_id"`
	Filename   string            `json:"filename"`
	Content    string            `json:"content"`
	Score      float64           `json:"score"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
