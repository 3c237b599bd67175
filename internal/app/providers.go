package app

import (
	"path/filepath"
	"strings"

	"gorm.io/gorm"

	"github.com/corvid-labs/corpora-backend/internal/db"
	"github.com/corvid-labs/corpora-backend/internal/embed"
	"github.com/corvid-labs/corpora-backend/internal/jobs"
	"github.com/corvid-labs/corpora-backend/internal/llm"
	"github.com/corvid-labs/corpora-backend/internal/logger"
	"github.com/corvid-labs/corpora-backend/internal/storage"
	"github.com/corvid-labs/corpora-backend/internal/vector"
	"github.com/corvid-labs/corpora-backend/internal/vector/localvec"
	"github.com/corvid-labs/corpora-backend/internal/vector/qdrant"
)

// Selection policy, one mode per interface: the first matching configuration
// wins, otherwise the local fallback. Kept as pure functions so the policy is
// testable without touching any backend.

type ProviderMode string

const (
	RepositoryModePostgres ProviderMode = "postgres"
	RepositoryModeSQLite   ProviderMode = "sqlite"
	StorageModeMinio       ProviderMode = "minio"
	StorageModeLocal       ProviderMode = "local_fs"
	VectorModeQdrant       ProviderMode = "qdrant"
	VectorModeLocal        ProviderMode = "local_json"
	LLMModeOllama          ProviderMode = "ollama"
	LLMModeStub            ProviderMode = "stub"
	EmbedderModeHTTP       ProviderMode = "http"
	EmbedderModeLocal      ProviderMode = "local_hash"
	QueueModeRedis         ProviderMode = "redis"
	QueueModeMemory        ProviderMode = "memory"
)

func resolveRepositoryMode(cfg Config) ProviderMode {
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		return RepositoryModePostgres
	}
	return RepositoryModeSQLite
}

func resolveStorageMode(cfg Config) ProviderMode {
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		return StorageModeMinio
	}
	return StorageModeLocal
}

func resolveVectorMode(cfg Config) ProviderMode {
	if qdrant.ResolveURL(cfg.QdrantURL, cfg.QdrantHost, cfg.QdrantPort) != "" {
		return VectorModeQdrant
	}
	return VectorModeLocal
}

func resolveLLMMode(cfg Config) ProviderMode {
	if strings.TrimSpace(cfg.LLMURL) != "" {
		return LLMModeOllama
	}
	return LLMModeStub
}

func resolveEmbedderMode(cfg Config) ProviderMode {
	if strings.TrimSpace(cfg.EmbeddingURL) != "" {
		return EmbedderModeHTTP
	}
	return EmbedderModeLocal
}

func resolveQueueMode(cfg Config) ProviderMode {
	if strings.TrimSpace(cfg.RedisURL) != "" {
		return QueueModeRedis
	}
	return QueueModeMemory
}

func provideDatabase(log *logger.Logger, cfg Config) (*gorm.DB, error) {
	switch resolveRepositoryMode(cfg) {
	case RepositoryModePostgres:
		pg, err := db.NewPostgresService(log, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.AutoMigrateAll(); err != nil {
			return nil, err
		}
		return pg.DB(), nil
	default:
		sqlite, err := db.NewSQLiteService(log, cfg.LocalStorageDir)
		if err != nil {
			return nil, err
		}
		if err := sqlite.AutoMigrateAll(); err != nil {
			return nil, err
		}
		return sqlite.DB(), nil
	}
}

func provideRawStorage(log *logger.Logger, cfg Config) (storage.RawStorage, error) {
	switch resolveStorageMode(cfg) {
	case StorageModeMinio:
		return storage.NewMinioStorage(log, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucketRaw,
			UseSSL:    cfg.MinioUseSSL,
		})
	default:
		return storage.NewLocalStorage(log, filepath.Join(cfg.LocalStorageDir, "raw"))
	}
}

func provideVectorStore(log *logger.Logger, cfg Config) (vector.Store, error) {
	switch resolveVectorMode(cfg) {
	case VectorModeQdrant:
		return qdrant.NewStore(log, qdrant.Config{
			URL:        qdrant.ResolveURL(cfg.QdrantURL, cfg.QdrantHost, cfg.QdrantPort),
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
			VectorDim:  cfg.QdrantVectorSize,
			Distance:   cfg.QdrantDistance,
		})
	default:
		store, err := localvec.NewStore(log, filepath.Join(cfg.LocalStorageDir, "vectors"))
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

func provideLLMClient(log *logger.Logger, cfg Config) (llm.Client, error) {
	switch resolveLLMMode(cfg) {
	case LLMModeOllama:
		return llm.NewOllamaClient(log, llm.OllamaConfig{URL: cfg.LLMURL, Model: cfg.LLMModel})
	default:
		return llm.NewStubClient(log), nil
	}
}

func provideEmbedder(log *logger.Logger, cfg Config) (embed.Embedder, error) {
	switch resolveEmbedderMode(cfg) {
	case EmbedderModeHTTP:
		return embed.NewHTTPEmbedder(log, embed.HTTPConfig{
			URL:   cfg.EmbeddingURL,
			Model: cfg.EmbeddingModel,
			Dim:   cfg.EmbeddingDim,
		})
	default:
		return embed.NewLocalEmbedder(log), nil
	}
}

func provideJobQueue(log *logger.Logger, cfg Config) (jobs.Queue, error) {
	switch resolveQueueMode(cfg) {
	case QueueModeRedis:
		return jobs.NewRedisQueue(log, cfg.RedisURL, "", cfg.QueueCapacity)
	default:
		return jobs.NewMemoryQueue(log, cfg.QueueCapacity), nil
	}
}
