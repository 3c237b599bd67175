package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/corvid-labs/corpora-backend/internal/logger"
	"github.com/corvid-labs/corpora-backend/internal/types"
)

type ChatMessageSourceRepo interface {
	CreateBulk(ctx context.Context, tx *gorm.DB, sources []*types.ChatMessageSource) ([]*types.ChatMessageSource, error)
	ListByMessageIDs(ctx context.Context, tx *gorm.DB, messageIDs []uuid.UUID) ([]*types.ChatMessageSource, error)
	DeleteByMessageIDs(ctx context.Context, tx *gorm.DB, messageIDs []uuid.UUID) error
}

type chatMessageSourceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatMessageSourceRepo(db *gorm.DB, baseLog *logger.Logger) ChatMessageSourceRepo {
	return &chatMessageSourceRepo{db: db, log: baseLog.With("repo", "ChatMessageSourceRepo")}
}

func (r *chatMessageSourceRepo) CreateBulk(ctx context.Context, tx *gorm.DB, sources []*types.ChatMessageSource) ([]*types.ChatMessageSource, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(sources) == 0 {
		return []*types.ChatMessageSource{}, nil
	}
	for _, src := range sources {
		if src.ID == uuid.Nil {
			src.ID = uuid.New()
		}
	}
	const batchSize = 100
	if err := transaction.WithContext(ctx).CreateInBatches(sources, batchSize).Error; err != nil {
		return nil, err
	}
	return sources, nil
}

func (r *chatMessageSourceRepo) ListByMessageIDs(ctx context.Context, tx *gorm.DB, messageIDs []uuid.UUID) ([]*types.ChatMessageSource, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ChatMessageSource
	if len(messageIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("message_id IN ?", messageIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *chatMessageSourceRepo) DeleteByMessageIDs(ctx context.Context, tx *gorm.DB, messageIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(messageIDs) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("message_id IN ?", messageIDs).
		Delete(&types.ChatMessageSource{}).Error
}
