package types

import (
	"time"

	"github.com/google/uuid"
)

type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "PENDING"
	DocumentStatusQueued     DocumentStatus = "QUEUED"
	DocumentStatusProcessing DocumentStatus = "PROCESSING"
	DocumentStatusSuccess    DocumentStatus = "SUCCESS"
	DocumentStatusFailed     DocumentStatus = "FAILED"
	DocumentStatusSkipped    DocumentStatus = "SKIPPED"
)

type Document struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"workspace_id"`
	Workspace        *Workspace     `gorm:"constraint:OnDelete:CASCADE;foreignKey:WorkspaceID;references:ID" json:"workspace,omitempty"`
	DocumentName     string         `gorm:"column:document_name;not null" json:"document_name"`
	MediaType        string         `gorm:"column:media_type" json:"media_type"`
	SHA256           string         `gorm:"column:sha256" json:"sha256"`
	RawStoragePath   string         `gorm:"column:raw_storage_path;not null" json:"raw_storage_path"`
	PageCount        int            `gorm:"column:page_count" json:"page_count"`
	Author           *string        `gorm:"column:author" json:"author,omitempty"`
	CreationDate     *time.Time     `gorm:"column:creation_date" json:"creation_date,omitempty"`
	DetectedLanguage *string        `gorm:"column:detected_language" json:"detected_language,omitempty"`
	SizeBytes        int64          `gorm:"column:size_bytes" json:"size_bytes"`
	IngestedAt       *time.Time     `gorm:"column:ingested_at" json:"ingested_at,omitempty"`
	Status           DocumentStatus `gorm:"column:status;not null;default:'PENDING'" json:"status"`
	ErrorMessage     *string        `gorm:"column:error_message" json:"error_message,omitempty"`
	CreatedAt        time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null" json:"updated_at"`
}

func (Document) TableName() string { return "document" }
