package db

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/corvid-labs/corpora-backend/internal/logger"
)

type SQLiteService struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewSQLiteService opens (creating if needed) the embedded local store used
// when DATABASE_URL is not configured.
func NewSQLiteService(log *logger.Logger, dir string) (*SQLiteService, error) {
	serviceLog := log.With("service", "SQLiteService")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create local storage dir: %w", err)
	}
	path := filepath.Join(dir, "corpora.db")

	serviceLog.Info("Opening local SQLite store", "path", path)
	gdb, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_journal_mode=WAL"), &gorm.Config{})
	if err != nil {
		serviceLog.Error("Failed to open SQLite store", "error", err)
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}

	// gorm's sqlite driver multiplexes over a single file; serialize writers.
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return &SQLiteService{db: gdb, log: serviceLog}, nil
}

func (s *SQLiteService) AutoMigrateAll() error {
	s.log.Info("Auto migrating sqlite tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed for sqlite tables", "error", err)
		return err
	}
	return nil
}

func (s *SQLiteService) DB() *gorm.DB {
	return s.db
}
