package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/corvid-labs/corpora-backend/internal/logger"
	"github.com/corvid-labs/corpora-backend/internal/types"
)

type DocumentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, doc *types.Document) (*types.Document, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Document, error)
	ListByWorkspace(ctx context.Context, tx *gorm.DB, workspaceID uuid.UUID) ([]*types.Document, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status types.DocumentStatus, errorMessage *string) error
	CommitIngestResult(ctx context.Context, tx *gorm.DB, id uuid.UUID, result IngestResult) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	DeleteByWorkspace(ctx context.Context, tx *gorm.DB, workspaceID uuid.UUID) error
}

// IngestResult carries the metadata committed after a successful pipeline run.
type IngestResult struct {
	DetectedLanguage *string
	PageCount        int
	Author           *string
	CreationDate     *time.Time
	IngestedAt       time.Time
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	return &documentRepo{db: db, log: baseLog.With("repo", "DocumentRepo")}
}

func (r *documentRepo) Create(ctx context.Context, tx *gorm.DB, doc *types.Document) (*types.Document, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.Status == "" {
		doc.Status = types.DocumentStatusPending
	}
	if err := transaction.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *documentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Document, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var doc types.Document
	if err := transaction.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepo) ListByWorkspace(ctx context.Context, tx *gorm.DB, workspaceID uuid.UUID) ([]*types.Document, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Document
	if err := transaction.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// UpdateStatus is a single-row UPDATE so concurrent workers never interleave
// a partial transition.
func (r *documentRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status types.DocumentStatus, errorMessage *string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	updates := map[string]any{
		"status":        status,
		"error_message": errorMessage,
	}
	return transaction.WithContext(ctx).
		Model(&types.Document{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *documentRepo) CommitIngestResult(ctx context.Context, tx *gorm.DB, id uuid.UUID, result IngestResult) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	updates := map[string]any{
		"status":            types.DocumentStatusSuccess,
		"error_message":     nil,
		"detected_language": result.DetectedLanguage,
		"page_count":        result.PageCount,
		"author":            result.Author,
		"creation_date":     result.CreationDate,
		"ingested_at":       result.IngestedAt,
	}
	return transaction.WithContext(ctx).
		Model(&types.Document{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *documentRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Delete(&types.Document{}, "id = ?", id).Error
}

func (r *documentRepo) DeleteByWorkspace(ctx context.Context, tx *gorm.DB, workspaceID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Delete(&types.Document{}).Error
}
