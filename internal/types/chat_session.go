package types

import (
	"time"

	"github.com/google/uuid"
)

type ChatSession struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID uuid.UUID  `gorm:"type:uuid;not null;index" json:"workspace_id"`
	Workspace   *Workspace `gorm:"constraint:OnDelete:CASCADE;foreignKey:WorkspaceID;references:ID" json:"workspace,omitempty"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
}

func (ChatSession) TableName() string { return "chat_session" }
