package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/corvid-labs/corpora-backend/internal/logger"
	"github.com/corvid-labs/corpora-backend/internal/types"
)

type WorkspaceRepo interface {
	Create(ctx context.Context, tx *gorm.DB, ws *types.Workspace) (*types.Workspace, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Workspace, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.Workspace, error)
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type workspaceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWorkspaceRepo(db *gorm.DB, baseLog *logger.Logger) WorkspaceRepo {
	return &workspaceRepo{db: db, log: baseLog.With("repo", "WorkspaceRepo")}
}

func (r *workspaceRepo) Create(ctx context.Context, tx *gorm.DB, ws *types.Workspace) (*types.Workspace, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if ws.ID == uuid.Nil {
		ws.ID = uuid.New()
	}
	if err := transaction.WithContext(ctx).Create(ws).Error; err != nil {
		return nil, err
	}
	return ws, nil
}

func (r *workspaceRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Workspace, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var ws types.Workspace
	if err := transaction.WithContext(ctx).First(&ws, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &ws, nil
}

func (r *workspaceRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.Workspace, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Workspace
	if err := transaction.WithContext(ctx).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *workspaceRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Delete(&types.Workspace{}, "id = ?", id).Error
}
