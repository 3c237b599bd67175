package jobs

import (
	"context"

	"github.com/google/uuid"

	"github.com/corvid-labs/corpora-backend/internal/faults"
	"github.com/corvid-labs/corpora-backend/internal/logger"
)

// Job is one unit of pipeline work: process the document with this id.
type Job struct {
	DocumentID uuid.UUID `json:"document_id"`
}

// Queue decouples upload handlers from pipeline workers. Submit blocks when
// the queue is full until a slot frees or ctx expires, which is how
// back-pressure reaches the producer.
type Queue interface {
	Submit(ctx context.Context, job Job) error
	Consume(ctx context.Context) (Job, error)
	Depth(ctx context.Context) (int, error)
}

type memoryQueue struct {
	log *logger.Logger
	ch  chan Job
}

// NewMemoryQueue is the in-process bounded queue used when no broker is
// configured.
func NewMemoryQueue(log *logger.Logger, capacity int) Queue {
	if capacity <= 0 {
		capacity = 64
	}
	serviceLog := log.With("service", "MemoryJobQueue")
	serviceLog.Info("In-memory job queue selected", "capacity", capacity)
	return &memoryQueue{log: serviceLog, ch: make(chan Job, capacity)}
}

func (q *memoryQueue) Submit(ctx context.Context, job Job) error {
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return faults.Transient("submit", "job queue full", ctx.Err())
	}
}

func (q *memoryQueue) Consume(ctx context.Context) (Job, error) {
	select {
	case job := <-q.ch:
		return job, nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

func (q *memoryQueue) Depth(ctx context.Context) (int, error) {
	return len(q.ch), nil
}
