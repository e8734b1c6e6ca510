package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document is one ingested source file inside a node.
type Document struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	NodeID       primitive.ObjectID `bson:"node_id" json:"node_id"`
	Filename     string             `bson:"filename" json:"filename"`
	FilePath     string             `bson:"file_path,omitempty" json:"file_path,omitempty"` // blob storage path
	FileHash     string             `bson:"file_hash,omitempty" json:"file_hash,omitempty"` // sha-256 of original bytes
	MimeType     string             `bson:"mime_type,omitempty" json:"mime_type,omitempty"`
	Status       string             `bson:"status" json:"status"` // pending, ready, failed
	ChunkCount   int                `bson:"chunk_count" json:"chunk_count"`
	ErrorMessage string             `bson:"error_message,omitempty" json:"error_message,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	ProcessedAt  *time.Time         `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
}

// Document status constants. Only "ready" documents are ever retrieval
// sources; pending and failed are invisible to queries.
const (
	StatusPending = "pending"
	StatusReady   = "ready"
	StatusFailed  = "failed"
)
