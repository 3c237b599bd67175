package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/corvid-labs/corpora-backend/internal/logger"
	"github.com/corvid-labs/corpora-backend/internal/types"
)

type ChatSessionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, session *types.ChatSession) (*types.ChatSession, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ChatSession, error)
	ListByWorkspace(ctx context.Context, tx *gorm.DB, workspaceID uuid.UUID) ([]*types.ChatSession, error)
	DeleteByWorkspace(ctx context.Context, tx *gorm.DB, workspaceID uuid.UUID) error
}

type chatSessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatSessionRepo(db *gorm.DB, baseLog *logger.Logger) ChatSessionRepo {
	return &chatSessionRepo{db: db, log: baseLog.With("repo", "ChatSessionRepo")}
}

func (r *chatSessionRepo) Create(ctx context.Context, tx *gorm.DB, session *types.ChatSession) (*types.ChatSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if err := transaction.WithContext(ctx).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func (r *chatSessionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ChatSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var session types.ChatSession
	if err := transaction.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *chatSessionRepo) ListByWorkspace(ctx context.Context, tx *gorm.DB, workspaceID uuid.UUID) ([]*types.ChatSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ChatSession
	if err := transaction.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *chatSessionRepo) DeleteByWorkspace(ctx context.Context, tx *gorm.DB, workspaceID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Delete(&types.ChatSession{}).Error
}
