package app

import (
	"strings"
	"time"

	"github.com/corvid-labs/corpora-backend/internal/logger"
	"github.com/corvid-labs/corpora-backend/internal/utils"
)

type Config struct {
	Port    string
	LogMode string

	DatabaseURL     string
	LocalStorageDir string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucketRaw string
	MinioUseSSL    bool

	QdrantURL        string
	QdrantHost       string
	QdrantPort       string
	QdrantAPIKey     string
	QdrantCollection string
	QdrantVectorSize int
	QdrantDistance   string

	EmbeddingURL   string
	EmbeddingModel string
	EmbeddingDim   int

	LLMURL   string
	LLMModel string

	RedisURL string

	ChunkSize         int
	ChunkOverlap      int
	MaxUploadBytes    int64
	RAGTopKDefault    int
	RAGHistoryN       int
	RAGMaxTokens      int
	WorkerConcurrency int
	QueueCapacity     int
	EnqueueTimeout    time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	llmURL := utils.GetEnv("LLM_URL", "", log)
	if llmURL == "" {
		llmURL = utils.GetEnv("OLLAMA_URL", "", log)
	}

	return Config{
		Port:    utils.GetEnv("PORT", "8080", log),
		LogMode: utils.GetEnv("LOG_MODE", "development", log),

		DatabaseURL:     utils.GetEnv("DATABASE_URL", "", log),
		LocalStorageDir: utils.GetEnv("LOCAL_STORAGE_DIR", "./local_storage", log),

		MinioEndpoint:  utils.GetEnv("MINIO_ENDPOINT", "", log),
		MinioAccessKey: utils.GetEnv("MINIO_ACCESS_KEY", "", log),
		MinioSecretKey: utils.GetEnv("MINIO_SECRET_KEY", "", log),
		MinioBucketRaw: utils.GetEnv("MINIO_BUCKET_RAW", "raw-documents", log),
		MinioUseSSL:    strings.EqualFold(utils.GetEnv("MINIO_USE_SSL", "false", log), "true"),

		QdrantURL:        utils.GetEnv("QDRANT_URL", "", log),
		QdrantHost:       utils.GetEnv("QDRANT_HOST", "", log),
		QdrantPort:       utils.GetEnv("QDRANT_PORT", "", log),
		QdrantAPIKey:     utils.GetEnv("QDRANT_API_KEY", "", log),
		QdrantCollection: utils.GetEnv("QDRANT_COLLECTION", "corpora_chunks", log),
		QdrantVectorSize: utils.GetEnvAsInt("QDRANT_VECTOR_SIZE", 384, log),
		QdrantDistance:   utils.GetEnv("QDRANT_DISTANCE", "Cosine", log),

		EmbeddingURL:   utils.GetEnv("EMBEDDING_URL", "", log),
		EmbeddingModel: utils.GetEnv("EMBEDDING_MODEL", "all-minilm", log),
		EmbeddingDim:   utils.GetEnvAsInt("EMBEDDING_DIM", 384, log),

		LLMURL:   llmURL,
		LLMModel: utils.GetEnv("LLM_MODEL", "llama3", log),

		RedisURL: utils.GetEnv("REDIS_URL", "", log),

		ChunkSize:         utils.GetEnvAsInt("CHUNK_SIZE", 1000, log),
		ChunkOverlap:      utils.GetEnvAsInt("CHUNK_OVERLAP", 150, log),
		MaxUploadBytes:    utils.GetEnvAsInt64("MAX_UPLOAD_BYTES", 50<<20, log),
		RAGTopKDefault:    utils.GetEnvAsInt("RAG_TOP_K_DEFAULT", 3, log),
		RAGHistoryN:       utils.GetEnvAsInt("RAG_HISTORY_N", 4, log),
		RAGMaxTokens:      utils.GetEnvAsInt("RAG_MAX_TOKENS", 512, log),
		WorkerConcurrency: utils.GetEnvAsInt("WORKER_CONCURRENCY", 4, log),
		QueueCapacity:     utils.GetEnvAsInt("QUEUE_CAPACITY", 64, log),
		EnqueueTimeout:    time.Duration(utils.GetEnvAsInt("ENQUEUE_TIMEOUT_MS", 2000, log)) * time.Millisecond,
	}
}
