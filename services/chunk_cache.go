package services

import (
	"context"
	"encoding/json"
	"time"

	"rag-knowledge-platform/internal/logger"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const candidateKeyPrefix = "rag:candidates:"

// ChunkCache caches a node's retrieval candidates in redis so repeated
// queries against the same node skip the mongo join. Every ingest commit and
// delete invalidates the node's entry. A nil client disables caching.
type ChunkCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewChunkCache(client *redis.Client, ttlSeconds int) *ChunkCache {
	return &ChunkCache{
		client: client,
		ttl:    time.Duration(ttlSeconds) * time.Second,
	}
}

// Get returns the cached candidates, or false on miss or any redis error.
func (c *ChunkCache) Get(ctx context.Context, nodeID primitive.ObjectID) ([]Candidate, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, candidateKeyPrefix+nodeID.Hex()).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("candidate cache read failed", "node_id", nodeID.Hex(), "error", err)
		}
		return nil, false
	}
	var candidates []Candidate
	if err := json.Unmarshal(data, &candidates); err != nil {
		return nil, false
	}
	return candidates, true
}

// Set stores the candidates best-effort.
func (c *ChunkCache) Set(ctx context.Context, nodeID primitive.ObjectID, candidates []Candidate) {
	if c == nil || c.client == nil {
		return
	}
	data, err := json.Marshal(candidates)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, candidateKeyPrefix+nodeID.Hex(), data, c.ttl).Err(); err != nil {
		logger.Warn("candidate cache write failed", "node_id", nodeID.Hex(), "error", err)
	}
}

// Invalidate drops the node's cached candidates after any mutation.
func (c *ChunkCache) Invalidate(ctx context.Context, nodeID primitive.ObjectID) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, candidateKeyPrefix+nodeID.Hex()).Err(); err != nil {
		logger.Warn("candidate cache invalidation failed", "node_id", nodeID.Hex(), "error", err)
	}
}
