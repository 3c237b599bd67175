package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/corvid-labs/corpora-backend/internal/faults"
	"github.com/corvid-labs/corpora-backend/internal/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func TestMemoryQueueRoundtrip(t *testing.T) {
	q := NewMemoryQueue(newTestLogger(t), 4)
	ctx := context.Background()

	want := Job{DocumentID: uuid.New()}
	if err := q.Submit(ctx, want); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	got, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if got.DocumentID != want.DocumentID {
		t.Fatalf("document id: want=%s got=%s", want.DocumentID, got.DocumentID)
	}
}

func TestMemoryQueueFullBlocksThenTimesOut(t *testing.T) {
	q := NewMemoryQueue(newTestLogger(t), 1)
	ctx := context.Background()

	if err := q.Submit(ctx, Job{DocumentID: uuid.New()}); err != nil {
		t.Fatalf("first Submit: %v", err)
	}

	deadlineCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := q.Submit(deadlineCtx, Job{DocumentID: uuid.New()})
	if err == nil {
		t.Fatalf("Submit on full queue: want error")
	}
	if faults.KindOf(err) != faults.KindTransient {
		t.Fatalf("kind: want=%s got=%s", faults.KindTransient, faults.KindOf(err))
	}
}

func TestMemoryQueueDepth(t *testing.T) {
	q := NewMemoryQueue(newTestLogger(t), 4)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := q.Submit(ctx, Job{DocumentID: uuid.New()}); err != nil {
			t.Fatalf("Submit #%d: %v", i, err)
		}
	}
	depth, err := q.Depth(ctx)
	if err != nil {
		t.Fatalf("Depth: %v", err)
	}
	if depth != 3 {
		t.Fatalf("depth: want=3 got=%d", depth)
	}
}

func TestWorkerProcessesJobsAndStops(t *testing.T) {
	q := NewMemoryQueue(newTestLogger(t), 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	seen := map[uuid.UUID]bool{}
	done := make(chan struct{}, 8)

	handler := HandlerFunc(func(ctx context.Context, job Job) error {
		mu.Lock()
		seen[job.DocumentID] = true
		mu.Unlock()
		done <- struct{}{}
		return nil
	})

	w := NewWorker(newTestLogger(t), q, handler, 2)
	w.Start(ctx)

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		if err := q.Submit(ctx, Job{DocumentID: id}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	for range ids {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for jobs")
		}
	}

	mu.Lock()
	for _, id := range ids {
		if !seen[id] {
			t.Fatalf("job %s never processed", id)
		}
	}
	mu.Unlock()

	cancel()
	w.Wait()
}

func TestWorkerRecoversFromPanic(t *testing.T) {
	q := NewMemoryQueue(newTestLogger(t), 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{}, 2)
	calls := 0
	handler := HandlerFunc(func(ctx context.Context, job Job) error {
		calls++
		if calls == 1 {
			defer func() { done <- struct{}{} }()
			panic("boom")
		}
		done <- struct{}{}
		return nil
	})

	w := NewWorker(newTestLogger(t), q, handler, 1)
	w.Start(ctx)

	for i := 0; i < 2; i++ {
		if err := q.Submit(ctx, Job{DocumentID: uuid.New()}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("worker did not survive panic")
		}
	}
	cancel()
	w.Wait()
}
