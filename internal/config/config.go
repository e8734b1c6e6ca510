package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI     string
	DBName       string
	Port         string
	GinMode      string
	CORSOrigins  []string
	MaxFileSize  int64
	AllowedTypes []string

	// Chunking
	ChunkWindow  int // characters per chunk
	ChunkOverlap int // characters shared with the previous chunk

	// Retrieval defaults
	DefaultTopK    int
	DefaultReturnK int
	DefaultAlpha   float64

	// Ingestion
	FileStorageDir      string
	SyncProcessingLimit int64 // uploads above this go through the worker

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Rate limiting (HTTP surface)
	RateLimitReqs   int
	RateLimitWindow int

	// Embeddings configuration
	GeminiAPIKey          string
	EmbeddingsProvider    string // "google" (default)
	GoogleEmbeddingsModel string // e.g., "text-embedding-004"
	EmbeddingTimeout      int    // seconds per provider call
	GeminiTier            string
	VectorDimensions      int

	// Candidate cache
	ChunkCacheTTL int // seconds; 0 disables the cache

	// Cleanup job
	PendingDeadlineMinutes int
	FailedRetentionDays    int

	// Crawler
	CrawlerUserAgent string
	CrawlerJSRender  bool

	// Telemetry
	OTLPEndpoint     string
	TelemetryEnabled bool
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017/rag_knowledge"),
		DBName:       getEnv("DB_NAME", "rag_knowledge"),
		Port:         getEnv("PORT", "8080"),
		GinMode:      getEnv("GIN_MODE", "debug"),
		CORSOrigins:  strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),
		MaxFileSize:  getEnvInt64("MAX_FILE_SIZE", 104857600), // 100MB
		AllowedTypes: strings.Split(getEnv("ALLOWED_FILE_TYPES", "application/pdf,text/plain,text/markdown,text/html,application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"), ","),

		ChunkWindow:  getEnvInt("CHUNK_WINDOW", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),

		DefaultTopK:    getEnvInt("QUERY_TOP_K", 20),
		DefaultReturnK: getEnvInt("QUERY_RETURN_K", 5),
		DefaultAlpha:   getEnvFloat64("QUERY_ALPHA", 0.5),

		FileStorageDir:      getEnv("FILE_STORAGE_DIR", "./storage"),
		SyncProcessingLimit: getEnvInt64("SYNC_PROCESSING_LIMIT", 20971520), // 20MB

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		EmbeddingsProvider:    getEnv("EMBEDDINGS_PROVIDER", "google"),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		EmbeddingTimeout:      getEnvInt("EMBEDDING_TIMEOUT", 30),
		GeminiTier:            getEnv("GEMINI_TIER", "free"),
		VectorDimensions:      getEnvInt("VECTOR_DIM", 768),

		ChunkCacheTTL: getEnvInt("CHUNK_CACHE_TTL", 300),

		PendingDeadlineMinutes: getEnvInt("PENDING_DEADLINE_MINUTES", 60),
		FailedRetentionDays:    getEnvInt("FAILED_RETENTION_DAYS", 7),

		CrawlerUserAgent: getEnv("CRAWLER_USER_AGENT", "rag-knowledge-platform/1.0"),
		CrawlerJSRender:  getEnvBool("CRAWLER_JS_RENDER", false),

		OTLPEndpoint:     getEnv("OTLP_ENDPOINT", "localhost:4317"),
		TelemetryEnabled: getEnvBool("TELEMETRY_ENABLED", false),
	}

	// Validate required fields
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	if cfg.ChunkWindow <= 0 || cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkWindow {
		return nil, fmt.Errorf("invalid chunking config: CHUNK_WINDOW=%d CHUNK_OVERLAP=%d", cfg.ChunkWindow, cfg.ChunkOverlap)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
