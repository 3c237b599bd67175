package db

import (
	"context"

	"gorm.io/gorm"

	"github.com/corvid-labs/corpora-backend/internal/types"
)

func AutoMigrateAll(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&types.Workspace{},
		&types.Document{},
		&types.DocumentEvent{},
		&types.ChatSession{},
		&types.ChatMessage{},
		&types.ChatMessageSource{},
	)
}

// WithTransaction runs fn inside a transaction: commit on nil, rollback on
// error or panic. Repositories accept the handle so writes compose into one
// unit of work.
func WithTransaction(ctx context.Context, gdb *gorm.DB, fn func(tx *gorm.DB) error) error {
	return gdb.WithContext(ctx).Transaction(fn)
}
