package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Node is an isolated retrieval namespace. Documents always belong to exactly
// one node and queries never cross node boundaries.
type Node struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}
