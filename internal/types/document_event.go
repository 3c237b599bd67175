package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type PipelineStage string

const (
	StageExtracting     PipelineStage = "EXTRACTING"
	StageLangDetect     PipelineStage = "LANG_DETECT"
	StageChunking       PipelineStage = "CHUNKING"
	StageEmbedding      PipelineStage = "EMBEDDING"
	StageClassification PipelineStage = "CLASSIFICATION"
)

type StageStatus string

const (
	StageStatusProcessing StageStatus = "PROCESSING"
	StageStatusSuccess    StageStatus = "SUCCESS"
	StageStatusFailed     StageStatus = "FAILED"
	StageStatusSkipped    StageStatus = "SKIPPED"
)

// DocumentEvent records the observable progress of one pipeline stage for
// one document. Unique on (document_id, stage); re-runs overwrite in place.
type DocumentEvent struct {
	ID         uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	DocumentID uuid.UUID      `gorm:"type:uuid;not null;index;uniqueIndex:idx_document_stage" json:"document_id"`
	Document   *Document      `gorm:"constraint:OnDelete:CASCADE;foreignKey:DocumentID;references:ID" json:"document,omitempty"`
	Stage      PipelineStage  `gorm:"column:stage;not null;uniqueIndex:idx_document_stage" json:"stage"`
	Status     StageStatus    `gorm:"column:status;not null" json:"status"`
	StartedAt  time.Time      `gorm:"column:started_at;not null" json:"started_at"`
	FinishedAt *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	DurationMS *int64         `gorm:"column:duration_ms" json:"duration_ms,omitempty"`
	Detail     datatypes.JSON `gorm:"column:detail;type:jsonb" json:"detail,omitempty"`
}

func (DocumentEvent) TableName() string { return "document_event" }
