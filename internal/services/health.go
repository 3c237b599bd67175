package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/corvid-labs/corpora-backend/internal/jobs"
	"github.com/corvid-labs/corpora-backend/internal/logger"
	"github.com/corvid-labs/corpora-backend/internal/storage"
	"github.com/corvid-labs/corpora-backend/internal/vector"
)

type DependencyHealth struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type HealthReport struct {
	Status       string                      `json:"status"`
	Dependencies map[string]DependencyHealth `json:"dependencies"`
	QueueDepth   int                         `json:"queue_depth"`
}

type HealthService interface {
	Check(ctx context.Context) *HealthReport
}

type healthService struct {
	log     *logger.Logger
	gdb     *gorm.DB
	raw     storage.RawStorage
	vectors vector.Store
	queue   jobs.Queue
}

func NewHealthService(gdb *gorm.DB, baseLog *logger.Logger, raw storage.RawStorage, vectors vector.Store, queue jobs.Queue) HealthService {
	return &healthService{
		log:     baseLog.With("service", "HealthService"),
		gdb:     gdb,
		raw:     raw,
		vectors: vectors,
		queue:   queue,
	}
}

func (s *healthService) Check(ctx context.Context) *HealthReport {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	report := &HealthReport{
		Status:       "ok",
		Dependencies: map[string]DependencyHealth{},
	}
	degrade := func(name string, err error) {
		report.Status = "degraded"
		report.Dependencies[name] = DependencyHealth{Status: "down", Detail: err.Error()}
	}

	if sqlDB, err := s.gdb.DB(); err != nil {
		degrade("database", err)
	} else if err := sqlDB.PingContext(ctx); err != nil {
		degrade("database", err)
	} else {
		report.Dependencies["database"] = DependencyHealth{Status: "ok"}
	}

	if _, err := s.vectors.Dim(ctx); err != nil {
		degrade("vector_store", err)
	} else {
		report.Dependencies["vector_store"] = DependencyHealth{Status: "ok"}
	}

	if _, err := s.raw.Exists(ctx, ".healthcheck"); err != nil {
		degrade("raw_storage", err)
	} else {
		report.Dependencies["raw_storage"] = DependencyHealth{Status: "ok"}
	}

	if depth, err := s.queue.Depth(ctx); err != nil {
		degrade("job_queue", err)
	} else {
		report.Dependencies["job_queue"] = DependencyHealth{Status: "ok"}
		report.QueueDepth = depth
	}

	return report
}
