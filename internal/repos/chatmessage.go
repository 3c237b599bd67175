package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/corvid-labs/corpora-backend/internal/logger"
	"github.com/corvid-labs/corpora-backend/internal/types"
)

type ChatMessageRepo interface {
	Create(ctx context.Context, tx *gorm.DB, message *types.ChatMessage) (*types.ChatMessage, error)
	ListBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.ChatMessage, error)
	// Recent returns the newest n messages in oldest-first order, ready for
	// prompt assembly.
	Recent(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, n int) ([]*types.ChatMessage, error)
	ListIDsByWorkspace(ctx context.Context, tx *gorm.DB, workspaceID uuid.UUID) ([]uuid.UUID, error)
	DeleteByWorkspace(ctx context.Context, tx *gorm.DB, workspaceID uuid.UUID) error
}

type chatMessageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatMessageRepo(db *gorm.DB, baseLog *logger.Logger) ChatMessageRepo {
	return &chatMessageRepo{db: db, log: baseLog.With("repo", "ChatMessageRepo")}
}

func (r *chatMessageRepo) Create(ctx context.Context, tx *gorm.DB, message *types.ChatMessage) (*types.ChatMessage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	if err := transaction.WithContext(ctx).Create(message).Error; err != nil {
		return nil, err
	}
	return message, nil
}

func (r *chatMessageRepo) ListBySession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.ChatMessage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ChatMessage
	if err := transaction.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *chatMessageRepo) Recent(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, n int) ([]*types.ChatMessage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if n <= 0 {
		return []*types.ChatMessage{}, nil
	}
	var newest []*types.ChatMessage
	if err := transaction.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(n).
		Find(&newest).Error; err != nil {
		return nil, err
	}
	// Reverse into chronological order.
	for i, j := 0, len(newest)-1; i < j; i, j = i+1, j-1 {
		newest[i], newest[j] = newest[j], newest[i]
	}
	return newest, nil
}

func (r *chatMessageRepo) ListIDsByWorkspace(ctx context.Context, tx *gorm.DB, workspaceID uuid.UUID) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []uuid.UUID
	if err := transaction.WithContext(ctx).
		Model(&types.ChatMessage{}).
		Joins("JOIN chat_session ON chat_session.id = chat_message.session_id").
		Where("chat_session.workspace_id = ?", workspaceID).
		Pluck("chat_message.id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *chatMessageRepo) DeleteByWorkspace(ctx context.Context, tx *gorm.DB, workspaceID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("session_id IN (?)",
			transaction.Model(&types.ChatSession{}).Select("id").Where("workspace_id = ?", workspaceID)).
		Delete(&types.ChatMessage{}).Error
}
