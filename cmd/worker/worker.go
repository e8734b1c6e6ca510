package main

import (
	"context"
	"log"
	"time"

	"rag-knowledge-platform/internal/ai"
	"rag-knowledge-platform/internal/config"
	"rag-knowledge-platform/internal/logger"
	"rag-knowledge-platform/internal/queue"
	"rag-knowledge-platform/services"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	// Embedding provider
	embedder, err := ai.NewEmbedder(cfg)
	if err != nil {
		log.Fatal("Failed to init embedder:", err)
	}

	// Services
	store := services.NewDocumentStore(mongoClient, cfg.DBName)
	blobs, err := services.NewBlobStore(cfg.FileStorageDir)
	if err != nil {
		log.Fatal("Failed to init blob store:", err)
	}
	chunker, err := services.NewChunker(cfg.ChunkWindow, cfg.ChunkOverlap)
	if err != nil {
		log.Fatal("Invalid chunking config:", err)
	}

	redisClient, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	cache := services.NewChunkCache(redisClient, cfg.ChunkCacheTTL)

	pipeline := services.NewIngestionPipeline(store, services.NewTextExtractor(), chunker,
		embedder, blobs, cache, nil, cfg.VectorDimensions, cfg.SyncProcessingLimit)

	// Asynq server
	server := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				queue.QueueIngest: 6,
				"default":         3,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewIngestProcessor(func(ctx context.Context, nodeID, docID primitive.ObjectID) error {
		return pipeline.ProcessStored(ctx, nodeID, docID)
	})

	logger.Info("starting ingestion worker", "redis", cfg.RedisURL, "concurrency", 10)
	if err := server.Run(queue.NewServeMux(processor)); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
