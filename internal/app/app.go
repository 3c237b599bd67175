package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/corvid-labs/corpora-backend/internal/handlers"
	"github.com/corvid-labs/corpora-backend/internal/ingestion/pipeline"
	"github.com/corvid-labs/corpora-backend/internal/jobs"
	"github.com/corvid-labs/corpora-backend/internal/logger"
	"github.com/corvid-labs/corpora-backend/internal/repos"
	"github.com/corvid-labs/corpora-backend/internal/server"
	"github.com/corvid-labs/corpora-backend/internal/services"
)

type Repos struct {
	Workspaces repos.WorkspaceRepo
	Documents  repos.DocumentRepo
	Events     repos.DocumentEventRepo
	Sessions   repos.ChatSessionRepo
	Messages   repos.ChatMessageRepo
	Sources    repos.ChatMessageSourceRepo
}

type Services struct {
	Workspace services.WorkspaceService
	Document  services.DocumentService
	RAG       services.RAGService
	Health    services.HealthService
}

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Services Services
	Queue    jobs.Queue
	Worker   *jobs.Worker
	cancel   context.CancelFunc
}

// New builds the whole object graph: one adapter per interface selected from
// configuration, repos, services, handlers, router. Everything is owned here
// and shared immutably; there are no mutable globals.
func New() (*App, error) {
	bootstrapLog, err := logger.New("development")
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg := LoadConfig(bootstrapLog)
	log := bootstrapLog
	if cfg.LogMode != "development" {
		bootstrapLog.Sync()
		log, err = logger.New(cfg.LogMode)
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}

	log.Info("Selecting adapters",
		"repository", resolveRepositoryMode(cfg),
		"raw_storage", resolveStorageMode(cfg),
		"vector_store", resolveVectorMode(cfg),
		"llm", resolveLLMMode(cfg),
		"embedder", resolveEmbedderMode(cfg),
		"job_queue", resolveQueueMode(cfg),
	)

	gdb, err := provideDatabase(log, cfg)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	raw, err := provideRawStorage(log, cfg)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init raw storage: %w", err)
	}
	vectors, err := provideVectorStore(log, cfg)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init vector store: %w", err)
	}
	embedder, err := provideEmbedder(log, cfg)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	client, err := provideLLMClient(log, cfg)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init llm client: %w", err)
	}
	queue, err := provideJobQueue(log, cfg)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init job queue: %w", err)
	}

	// The collection dimension and the embedder dimension must agree before
	// anything is indexed; a mismatch is fatal at startup.
	ctx := context.Background()
	if err := vectors.EnsureCollection(ctx, embedder.Dim(), cfg.QdrantDistance); err != nil {
		log.Sync()
		return nil, fmt.Errorf("ensure vector collection: %w", err)
	}
	if dim, err := vectors.Dim(ctx); err != nil {
		log.Sync()
		return nil, fmt.Errorf("read vector collection dim: %w", err)
	} else if dim != 0 && dim != embedder.Dim() {
		log.Sync()
		return nil, fmt.Errorf("embedder dim %d does not match vector collection dim %d", embedder.Dim(), dim)
	}

	reposet := Repos{
		Workspaces: repos.NewWorkspaceRepo(gdb, log),
		Documents:  repos.NewDocumentRepo(gdb, log),
		Events:     repos.NewDocumentEventRepo(gdb, log),
		Sessions:   repos.NewChatSessionRepo(gdb, log),
		Messages:   repos.NewChatMessageRepo(gdb, log),
		Sources:    repos.NewChatMessageSourceRepo(gdb, log),
	}

	workspaceService := services.NewWorkspaceService(
		gdb, log,
		reposet.Workspaces, reposet.Documents, reposet.Events,
		reposet.Sessions, reposet.Messages, reposet.Sources,
		raw, vectors,
	)
	documentService := services.NewDocumentService(
		log,
		reposet.Workspaces, reposet.Documents, reposet.Events,
		raw, vectors, queue,
		cfg.MaxUploadBytes, cfg.EnqueueTimeout,
	)
	ragService := services.NewRAGService(
		gdb, log,
		reposet.Workspaces, reposet.Sessions, reposet.Messages, reposet.Sources,
		vectors, embedder, client,
		services.RAGConfig{
			TopKDefault: cfg.RAGTopKDefault,
			HistoryN:    cfg.RAGHistoryN,
			MaxTokens:   cfg.RAGMaxTokens,
		},
	)
	healthService := services.NewHealthService(gdb, log, raw, vectors, queue)

	ingest := pipeline.New(
		log,
		reposet.Documents, reposet.Events,
		raw, vectors, embedder,
		pipeline.Config{
			ChunkSize:    cfg.ChunkSize,
			ChunkOverlap: cfg.ChunkOverlap,
		},
	)
	worker := jobs.NewWorker(log, queue, ingest, cfg.WorkerConcurrency)

	router := server.NewRouter(server.RouterConfig{
		WorkspaceHandler: handlers.NewWorkspaceHandler(log, workspaceService),
		DocumentHandler:  handlers.NewDocumentHandler(log, documentService),
		ChatHandler:      handlers.NewChatHandler(log, ragService),
		HealthHandler:    handlers.NewHealthHandler(healthService),
		MaxUploadBytes:   cfg.MaxUploadBytes,
	})

	return &App{
		Log:    log,
		DB:     gdb,
		Router: router,
		Cfg:    cfg,
		Repos:  reposet,
		Services: Services{
			Workspace: workspaceService,
			Document:  documentService,
			RAG:       ragService,
			Health:    healthService,
		},
		Queue:  queue,
		Worker: worker,
	}, nil
}

func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.Worker.Start(ctx)
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Worker != nil {
		a.Worker.Wait()
	}
	if a.Services.Workspace != nil {
		a.Services.Workspace.WaitForDeletes()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
