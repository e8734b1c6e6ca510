package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rag-knowledge-platform/internal/ai"
	"rag-knowledge-platform/internal/config"
	"rag-knowledge-platform/internal/crawler"
	"rag-knowledge-platform/internal/logger"
	"rag-knowledge-platform/internal/queue"
	"rag-knowledge-platform/internal/telemetry"
	"rag-knowledge-platform/middleware"
	"rag-knowledge-platform/routes"
	"rag-knowledge-platform/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
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

	// Redis is optional: without it the candidate cache and rate limiting
	// are disabled and large uploads process synchronously.
	redisClient, err := config.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("redis unavailable, cache and rate limiting disabled", "error", err)
		redisClient = nil
	}

	// Tracing
	if cfg.TelemetryEnabled {
		shutdown, err := telemetry.InitTracer("rag-knowledge-platform", cfg.OTLPEndpoint)
		if err != nil {
			logger.Warn("tracer init failed", "error", err)
		} else {
			defer shutdown()
		}
	}
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to init metrics:", err)
	}

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
	cache := services.NewChunkCache(redisClient, cfg.ChunkCacheTTL)
	extractor := services.NewTextExtractor()

	pipeline := services.NewIngestionPipeline(store, extractor, chunker, embedder,
		blobs, cache, metrics, cfg.VectorDimensions, cfg.SyncProcessingLimit)
	if redisClient != nil {
		queueClient := queue.NewClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
		defer queueClient.Close()
		pipeline.SetEnqueuer(queueClient)
	}

	engine := services.NewRetrievalEngine(store, embedder, cache, metrics,
		cfg.DefaultTopK, cfg.DefaultReturnK, cfg.DefaultAlpha)
	fetcher := crawler.NewFetcher(cfg.CrawlerUserAgent, cfg.CrawlerJSRender)

	cleanup := services.NewCleanupService(store, blobs,
		cfg.PendingDeadlineMinutes, cfg.FailedRetentionDays)
	if err := cleanup.Start(); err != nil {
		logger.Warn("cleanup scheduler failed to start", "error", err)
	}
	defer cleanup.Stop()

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	if cfg.TelemetryEnabled {
		router.Use(middleware.TracingMiddleware())
		router.Use(middleware.EnrichTrace())
	}
	router.Use(middleware.MetricsMiddleware(metrics))
	if redisClient != nil {
		router.Use(middleware.RateLimitMiddleware(redisClient, cfg))
	}

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Requested-With"}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	// Routes
	nodes := router.Group("/nodes")
	{
		nodes.POST("", routes.HandleCreateNode(store))
		nodes.GET("", routes.HandleListNodes(store))
		nodes.GET("/:id", routes.HandleGetNode(store))
		nodes.DELETE("/:id", routes.HandleDeleteNode(store, blobs, cache, metrics))

		nodes.POST("/:id/documents", routes.HandleUploadDocument(cfg, pipeline))
		nodes.GET("/:id/documents", routes.HandleListDocuments(store))
		nodes.GET("/:id/documents/:docId", routes.HandleGetDocument(store))
		nodes.DELETE("/:id/documents/:docId", routes.HandleDeleteDocument(store, blobs, cache))

		nodes.POST("/:id/crawl", routes.HandleCrawlURL(fetcher, pipeline))
		nodes.POST("/:id/query", routes.HandleQuery(store, engine))
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("server exited")
}
