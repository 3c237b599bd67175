package repos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/corvid-labs/corpora-backend/internal/logger"
	"github.com/corvid-labs/corpora-backend/internal/types"
)

type DocumentEventRepo interface {
	// UpsertStage writes the at-most-one row per (document, stage),
	// replacing any row left by a previous run.
	UpsertStage(ctx context.Context, tx *gorm.DB, event *types.DocumentEvent) error
	FinishStage(ctx context.Context, tx *gorm.DB, documentID uuid.UUID, stage types.PipelineStage, status types.StageStatus, finishedAt time.Time, detail map[string]any) error
	ListByDocument(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) ([]*types.DocumentEvent, error)
	DeleteByDocumentIDs(ctx context.Context, tx *gorm.DB, documentIDs []uuid.UUID) error
}

type documentEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentEventRepo(db *gorm.DB, baseLog *logger.Logger) DocumentEventRepo {
	return &documentEventRepo{db: db, log: baseLog.With("repo", "DocumentEventRepo")}
}

func (r *documentEventRepo) UpsertStage(ctx context.Context, tx *gorm.DB, event *types.DocumentEvent) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "document_id"}, {Name: "stage"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "started_at", "finished_at", "duration_ms", "detail"}),
		}).
		Create(event).Error
}

func (r *documentEventRepo) FinishStage(ctx context.Context, tx *gorm.DB, documentID uuid.UUID, stage types.PipelineStage, status types.StageStatus, finishedAt time.Time, detail map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var event types.DocumentEvent
	if err := transaction.WithContext(ctx).
		First(&event, "document_id = ? AND stage = ?", documentID, stage).Error; err != nil {
		return err
	}
	duration := finishedAt.Sub(event.StartedAt).Milliseconds()
	updates := map[string]any{
		"status":      status,
		"finished_at": finishedAt,
		"duration_ms": duration,
	}
	if len(detail) > 0 {
		raw, err := json.Marshal(detail)
		if err != nil {
			return err
		}
		updates["detail"] = raw
	}
	return transaction.WithContext(ctx).
		Model(&types.DocumentEvent{}).
		Where("document_id = ? AND stage = ?", documentID, stage).
		Updates(updates).Error
}

func (r *documentEventRepo) ListByDocument(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) ([]*types.DocumentEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.DocumentEvent
	if err := transaction.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("started_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *documentEventRepo) DeleteByDocumentIDs(ctx context.Context, tx *gorm.DB, documentIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(documentIDs) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("document_id IN ?", documentIDs).
		Delete(&types.DocumentEvent{}).Error
}
