package jobs

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/corvid-labs/corpora-backend/internal/logger"
)

// Handler processes one job end-to-end. It must not panic; the worker still
// recovers as a safety net.
type Handler interface {
	Run(ctx context.Context, job Job) error
}

type HandlerFunc func(ctx context.Context, job Job) error

func (f HandlerFunc) Run(ctx context.Context, job Job) error { return f(ctx, job) }

// Worker drains the queue with a fixed pool of goroutines. Each job is
// handled by exactly one goroutine; ordering across jobs is not guaranteed.
type Worker struct {
	log         *logger.Logger
	queue       Queue
	handler     Handler
	concurrency int
	group       *errgroup.Group
}

func NewWorker(baseLog *logger.Logger, queue Queue, handler Handler, concurrency int) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		log:         baseLog.With("component", "JobWorker"),
		queue:       queue,
		handler:     handler,
		concurrency: concurrency,
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting job worker pool", "concurrency", w.concurrency)
	group, groupCtx := errgroup.WithContext(ctx)
	w.group = group
	for i := 0; i < w.concurrency; i++ {
		workerID := i + 1
		group.Go(func() error {
			w.runLoop(groupCtx, workerID)
			return nil
		})
	}
}

// Wait blocks until every worker goroutine has exited after ctx cancel.
func (w *Worker) Wait() {
	if w.group != nil {
		_ = w.group.Wait()
	}
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	for {
		job, err := w.queue.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.log.Info("Worker loop stopped", "worker_id", workerID)
				return
			}
			w.log.Warn("Consume failed", "worker_id", workerID, "error", err)
			continue
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					w.log.Error("Job handler panic",
						"worker_id", workerID,
						"document_id", job.DocumentID,
						"panic", r,
					)
				}
			}()
			if runErr := w.handler.Run(ctx, job); runErr != nil {
				// Pipelines record their own failure state; this is a
				// safety net for errors that escaped it.
				w.log.Warn("Job handler returned error",
					"worker_id", workerID,
					"document_id", job.DocumentID,
					"error", runErr,
				)
			}
		}()
	}
}
