package types

import (
	"time"

	"github.com/google/uuid"
)

type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

type ChatMessage struct {
	ID        uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID uuid.UUID    `gorm:"type:uuid;not null;index" json:"session_id"`
	Session   *ChatSession `gorm:"constraint:OnDelete:CASCADE;foreignKey:SessionID;references:ID" json:"session,omitempty"`
	Role      ChatRole     `gorm:"column:role;not null" json:"role"`
	Content   string       `gorm:"column:content;not null" json:"content"`
	CreatedAt time.Time    `gorm:"not null;index" json:"created_at"`
}

func (ChatMessage) TableName() string { return "chat_message" }
