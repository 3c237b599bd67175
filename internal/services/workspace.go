package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/corvid-labs/corpora-backend/internal/db"
	"github.com/corvid-labs/corpora-backend/internal/faults"
	"github.com/corvid-labs/corpora-backend/internal/logger"
	"github.com/corvid-labs/corpora-backend/internal/repos"
	"github.com/corvid-labs/corpora-backend/internal/storage"
	"github.com/corvid-labs/corpora-backend/internal/types"
	"github.com/corvid-labs/corpora-backend/internal/vector"
)

type WorkspaceService interface {
	Create(ctx context.Context, name string) (*types.Workspace, error)
	List(ctx context.Context) ([]*types.Workspace, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Workspace, error)
	// Delete returns as soon as the workspace is verified; the cascade
	// (vectors, blobs, rows) runs in the background with retries. The
	// workspace row goes last so a crashed cascade can be retried by a
	// later delete.
	Delete(ctx context.Context, id uuid.UUID) error
	// WaitForDeletes blocks until in-flight background cascades finish.
	WaitForDeletes()
}

type workspaceService struct {
	gdb      *gorm.DB
	log      *logger.Logger
	repo     repos.WorkspaceRepo
	docs     repos.DocumentRepo
	events   repos.DocumentEventRepo
	sessions repos.ChatSessionRepo
	messages repos.ChatMessageRepo
	sources  repos.ChatMessageSourceRepo
	raw      storage.RawStorage
	vectors  vector.Store

	deletes sync.WaitGroup
}

func NewWorkspaceService(
	gdb *gorm.DB,
	baseLog *logger.Logger,
	repo repos.WorkspaceRepo,
	docs repos.DocumentRepo,
	events repos.DocumentEventRepo,
	sessions repos.ChatSessionRepo,
	messages repos.ChatMessageRepo,
	sources repos.ChatMessageSourceRepo,
	raw storage.RawStorage,
	vectors vector.Store,
) WorkspaceService {
	return &workspaceService{
		gdb:      gdb,
		log:      baseLog.With("service", "WorkspaceService"),
		repo:     repo,
		docs:     docs,
		events:   events,
		sessions: sessions,
		messages: messages,
		sources:  sources,
		raw:      raw,
		vectors:  vectors,
	}
}

func (s *workspaceService) Create(ctx context.Context, name string) (*types.Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, faults.Validation("create_workspace", "workspace name is required")
	}
	ws, err := s.repo.Create(ctx, nil, &types.Workspace{Name: name, CreatedAt: time.Now().UTC()})
	if err != nil {
		if repos.IsUniqueViolation(err) {
			return nil, faults.Conflict("create_workspace", "workspace name already exists", err)
		}
		return nil, err
	}
	s.log.Info("Workspace created", "workspace_id", ws.ID, "name", ws.Name)
	return ws, nil
}

func (s *workspaceService) List(ctx context.Context) ([]*types.Workspace, error) {
	return s.repo.List(ctx, nil)
}

func (s *workspaceService) Get(ctx context.Context, id uuid.UUID) (*types.Workspace, error) {
	ws, err := s.repo.GetByID(ctx, nil, id)
	if err != nil {
		if repos.IsNotFound(err) {
			return nil, faults.NotFound("get_workspace", "workspace not found")
		}
		return nil, err
	}
	return ws, nil
}

func (s *workspaceService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	s.deletes.Add(1)
	go func() {
		defer s.deletes.Done()
		s.cascade(id)
	}()
	return nil
}

func (s *workspaceService) WaitForDeletes() {
	s.deletes.Wait()
}

const (
	cascadeAttempts = 5
	cascadeBackoff  = 2 * time.Second
)

func (s *workspaceService) cascade(id uuid.UUID) {
	log := s.log.With("workspace_id", id)
	for attempt := 1; attempt <= cascadeAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		err := s.cascadeOnce(ctx, id)
		cancel()
		if err == nil {
			log.Info("Workspace cascade delete finished")
			return
		}
		log.Warn("Workspace cascade delete failed", "attempt", attempt, "error", err)
		time.Sleep(cascadeBackoff)
	}
	log.Error("Workspace cascade delete gave up; workspace row retained for retry")
}

func (s *workspaceService) cascadeOnce(ctx context.Context, id uuid.UUID) error {
	// Vectors first, then blobs, then rows; each step is idempotent.
	if err := s.vectors.DeleteByFilter(ctx, vector.Filter{WorkspaceID: id.String()}); err != nil {
		return err
	}
	if err := s.raw.DeletePrefix(ctx, id.String()+"/"); err != nil {
		if faults.KindOf(err) != faults.KindNotFound {
			return err
		}
	}

	return db.WithTransaction(ctx, s.gdb, func(tx *gorm.DB) error {
		docs, err := s.docs.ListByWorkspace(ctx, tx, id)
		if err != nil {
			return err
		}
		docIDs := make([]uuid.UUID, 0, len(docs))
		for _, d := range docs {
			docIDs = append(docIDs, d.ID)
		}
		if err := s.events.DeleteByDocumentIDs(ctx, tx, docIDs); err != nil {
			return err
		}

		messageIDs, err := s.messages.ListIDsByWorkspace(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.sources.DeleteByMessageIDs(ctx, tx, messageIDs); err != nil {
			return err
		}
		if err := s.messages.DeleteByWorkspace(ctx, tx, id); err != nil {
			return err
		}
		if err := s.sessions.DeleteByWorkspace(ctx, tx, id); err != nil {
			return err
		}
		if err := s.docs.DeleteByWorkspace(ctx, tx, id); err != nil {
			return err
		}
		return s.repo.Delete(ctx, tx, id)
	})
}
