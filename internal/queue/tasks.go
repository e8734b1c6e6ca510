package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"rag-knowledge-platform/internal/logger"
)

const TaskIngestDocument = "ingest:document"

// QueueIngest is the asynq queue ingestion tasks are published to. The
// worker weights it above "default" so uploads are not starved by
// housekeeping tasks.
const QueueIngest = "critical"

type IngestPayload struct {
	NodeID     string `json:"node_id"`
	DocumentID string `json:"document_id"`
}

// NewIngestTask builds the background ingestion task for a stored pending
// document.
func NewIngestTask(nodeID, docID string) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestPayload{
		NodeID:     nodeID,
		DocumentID: docID,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue(QueueIngest),
	), nil
}

// Client enqueues ingestion work. It satisfies the pipeline's enqueuer
// interface.
type Client struct {
	inner *asynq.Client
}

func NewClient(redisAddr, redisPassword string, redisDB int) *Client {
	return &Client{
		inner: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     redisAddr,
			Password: redisPassword,
			DB:       redisDB,
		}),
	}
}

func (c *Client) EnqueueIngest(ctx context.Context, nodeID, docID primitive.ObjectID) error {
	task, err := NewIngestTask(nodeID.Hex(), docID.Hex())
	if err != nil {
		return err
	}
	info, err := c.inner.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue ingest task: %w", err)
	}
	logger.Info("ingest task enqueued", "task_id", info.ID, "document_id", docID.Hex())
	return nil
}

func (c *Client) Close() error { return c.inner.Close() }

// IngestProcessor runs queued pipeline work. The concrete pipeline is
// injected to keep this package free of a services dependency cycle.
type IngestProcessor struct {
	process func(ctx context.Context, nodeID, docID primitive.ObjectID) error
}

func NewIngestProcessor(process func(ctx context.Context, nodeID, docID primitive.ObjectID) error) *IngestProcessor {
	return &IngestProcessor{process: process}
}

func (p *IngestProcessor) HandleIngest(ctx context.Context, t *asynq.Task) error {
	var payload IngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal ingest payload: %v: %w", err, asynq.SkipRetry)
	}
	nodeID, err := primitive.ObjectIDFromHex(payload.NodeID)
	if err != nil {
		return fmt.Errorf("bad node id: %v: %w", err, asynq.SkipRetry)
	}
	docID, err := primitive.ObjectIDFromHex(payload.DocumentID)
	if err != nil {
		return fmt.Errorf("bad document id: %v: %w", err, asynq.SkipRetry)
	}

	err = p.process(ctx, nodeID, docID)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		// The attempt was cut short before the document settled; asynq
		// retries and ProcessStored picks it up while still pending.
		return err
	default:
		// The pipeline already recorded the failure on the document.
		logger.Warn("ingest task settled as failed", "document_id", payload.DocumentID, "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
}

// NewServeMux wires the task handlers.
func NewServeMux(p *IngestProcessor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskIngestDocument, p.HandleIngest)
	return mux
}
