package types

import (
	"github.com/google/uuid"
)

// ChatMessageSource ties an assistant message back to the passage that
// grounded it. page_start <= page_end always holds.
type ChatMessageSource struct {
	ID           uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	MessageID    uuid.UUID    `gorm:"type:uuid;not null;index" json:"message_id"`
	Message      *ChatMessage `gorm:"constraint:OnDelete:CASCADE;foreignKey:MessageID;references:ID" json:"message,omitempty"`
	SourceID     uuid.UUID    `gorm:"type:uuid;column:source_id" json:"source_id"`
	DocumentName string       `gorm:"column:document_name;not null" json:"document_name"`
	PageStart    int          `gorm:"column:page_start" json:"page_start"`
	PageEnd      int          `gorm:"column:page_end" json:"page_end"`
	Snippet      string       `gorm:"column:snippet" json:"snippet"`
}

func (ChatMessageSource) TableName() string { return "chat_message_source" }
