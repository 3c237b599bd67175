package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/corvid-labs/corpora-backend/internal/embed"
	"github.com/corvid-labs/corpora-backend/internal/faults"
	"github.com/corvid-labs/corpora-backend/internal/ingestion/chunker"
	"github.com/corvid-labs/corpora-backend/internal/ingestion/extractor"
	"github.com/corvid-labs/corpora-backend/internal/ingestion/langdetect"
	"github.com/corvid-labs/corpora-backend/internal/jobs"
	"github.com/corvid-labs/corpora-backend/internal/logger"
	"github.com/corvid-labs/corpora-backend/internal/repos"
	"github.com/corvid-labs/corpora-backend/internal/storage"
	"github.com/corvid-labs/corpora-backend/internal/types"
	"github.com/corvid-labs/corpora-backend/internal/vector"
)

// chunkPointNamespace seeds the deterministic chunk ids so re-running the
// pipeline upserts the same points instead of duplicating them.
var chunkPointNamespace = uuid.MustParse("6ba2d8a3-92f4-4c1b-97a3-8f5f2c7f3b1d")

// ChunkPointID derives the stable vector id for one chunk of one document.
func ChunkPointID(documentID uuid.UUID, chunkIndex int) string {
	return uuid.NewSHA1(chunkPointNamespace, []byte(fmt.Sprintf("%s|%d", documentID, chunkIndex))).String()
}

type Config struct {
	ChunkSize      int
	ChunkOverlap   int
	EmbedBatchSize int
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	StageTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.EmbedBatchSize <= 0 {
		c.EmbedBatchSize = 32
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 4
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 200 * time.Millisecond
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 5 * time.Second
	}
	if c.StageTimeout <= 0 {
		c.StageTimeout = 2 * time.Minute
	}
	return c
}

// Pipeline runs extract -> detect-language -> chunk -> embed -> index ->
// commit for one document per job. Stages are strictly sequential within a
// document; any failure records status=FAILED with a short message and
// leaves already-indexed vectors in place for the next retry to converge on.
type Pipeline struct {
	log       *logger.Logger
	documents repos.DocumentRepo
	events    repos.DocumentEventRepo
	raw       storage.RawStorage
	vectors   vector.Store
	embedder  embed.Embedder
	factory   *extractor.Factory
	splitter  *chunker.Splitter
	cfg       Config
}

func New(
	baseLog *logger.Logger,
	documents repos.DocumentRepo,
	events repos.DocumentEventRepo,
	raw storage.RawStorage,
	vectors vector.Store,
	embedder embed.Embedder,
	cfg Config,
) *Pipeline {
	cfg = cfg.withDefaults()
	return &Pipeline{
		log:       baseLog.With("component", "IngestionPipeline"),
		documents: documents,
		events:    events,
		raw:       raw,
		vectors:   vectors,
		embedder:  embedder,
		factory:   extractor.NewFactory(),
		splitter:  chunker.New(chunker.Config{ChunkSize: cfg.ChunkSize, ChunkOverlap: cfg.ChunkOverlap}),
		cfg:       cfg,
	}
}

// Run implements jobs.Handler.
func (p *Pipeline) Run(ctx context.Context, job jobs.Job) error {
	log := p.log.With("document_id", job.DocumentID)

	doc, err := p.documents.GetByID(ctx, nil, job.DocumentID)
	if err != nil {
		if repos.IsNotFound(err) {
			log.Warn("Job references missing document, dropping")
			return nil
		}
		return err
	}

	if err := p.documents.UpdateStatus(ctx, nil, doc.ID, types.DocumentStatusProcessing, nil); err != nil {
		return err
	}
	log.Info("Pipeline started", "document_name", doc.DocumentName)

	if err := p.process(ctx, log, doc); err != nil {
		p.fail(ctx, log, doc, err)
		return nil
	}
	return nil
}

func (p *Pipeline) process(ctx context.Context, log *logger.Logger, doc *types.Document) error {
	data, err := p.readBlob(ctx, doc)
	if err != nil {
		return err
	}

	// Extract.
	res, err := p.extract(ctx, log, doc, data)
	if err != nil {
		return err
	}

	// Detect language. Never fatal: failure just leaves the field null.
	detected := p.detectLanguage(ctx, log, doc, res.Pages)

	// Chunk.
	chunks, err := p.chunk(ctx, log, doc, res.Pages)
	if err != nil {
		return err
	}

	// Embed.
	vectors, err := p.embed(ctx, log, doc, chunks)
	if err != nil {
		return err
	}

	// Index. Same chunk ids every run, so upserts converge.
	if err := p.index(ctx, doc, chunks, vectors); err != nil {
		return err
	}

	// Topic classification is not implemented; the stage is recorded as
	// skipped so progress readers see a complete set.
	p.recordSkipped(ctx, doc, types.StageClassification)

	// Commit.
	result := repos.IngestResult{
		DetectedLanguage: detected,
		PageCount:        res.PageCount,
		Author:           res.Author,
		CreationDate:     res.CreationDate,
		IngestedAt:       time.Now().UTC(),
	}
	if err := p.documents.CommitIngestResult(ctx, nil, doc.ID, result); err != nil {
		return err
	}
	log.Info("Pipeline finished",
		"page_count", res.PageCount,
		"chunks", len(chunks),
		"detected_language", derefOr(detected, ""),
	)
	return nil
}

func (p *Pipeline) readBlob(ctx context.Context, doc *types.Document) ([]byte, error) {
	var data []byte
	err := p.retry(ctx, "read_blob", func(callCtx context.Context) error {
		rc, _, err := p.raw.Get(callCtx, doc.RawStoragePath)
		if err != nil {
			return err
		}
		defer rc.Close()
		data, err = io.ReadAll(rc)
		if err != nil {
			return faults.Transient("read_blob", "read raw object failed", err)
		}
		return nil
	})
	return data, err
}

func (p *Pipeline) extract(ctx context.Context, log *logger.Logger, doc *types.Document, data []byte) (*extractor.Result, error) {
	p.stageStart(ctx, doc, types.StageExtracting)

	mediaType := extractor.DetectMediaType(data)
	ex, err := p.factory.ForMediaType(mediaType)
	if err != nil {
		// Unsupported media also deletes the blob: nothing will ever be
		// able to process it.
		p.stageFinish(ctx, doc, types.StageExtracting, types.StageStatusFailed, nil)
		if delErr := p.raw.Delete(ctx, doc.RawStoragePath); delErr != nil {
			log.Warn("Failed to delete unsupported blob", "error", delErr)
		}
		return nil, err
	}

	res, err := ex.Extract(data)
	if err != nil {
		p.stageFinish(ctx, doc, types.StageExtracting, types.StageStatusFailed, nil)
		return nil, err
	}
	p.stageFinish(ctx, doc, types.StageExtracting, types.StageStatusSuccess, map[string]any{
		"media_type": mediaType,
		"page_count": res.PageCount,
	})
	log.Debug("Extraction complete", "media_type", mediaType, "page_count", res.PageCount)
	return res, nil
}

func (p *Pipeline) detectLanguage(ctx context.Context, log *logger.Logger, doc *types.Document, pages []extractor.Page) *string {
	p.stageStart(ctx, doc, types.StageLangDetect)

	var sample strings.Builder
	for _, page := range pages {
		if sample.Len() > 4096 {
			break
		}
		sample.WriteString(page.Text)
		sample.WriteString("\n")
	}
	code := langdetect.Detect(sample.String())
	if code == "" {
		p.stageFinish(ctx, doc, types.StageLangDetect, types.StageStatusFailed, nil)
		log.Debug("Language detection inconclusive")
		return nil
	}
	p.stageFinish(ctx, doc, types.StageLangDetect, types.StageStatusSuccess, map[string]any{"language": code})
	return &code
}

func (p *Pipeline) chunk(ctx context.Context, log *logger.Logger, doc *types.Document, pages []extractor.Page) ([]chunker.Chunk, error) {
	p.stageStart(ctx, doc, types.StageChunking)
	chunks := p.splitter.SplitPages(pages)
	if len(chunks) == 0 {
		p.stageFinish(ctx, doc, types.StageChunking, types.StageStatusFailed, nil)
		return nil, faults.Permanent("chunk", "no extractable text", nil)
	}
	p.stageFinish(ctx, doc, types.StageChunking, types.StageStatusSuccess, map[string]any{"chunks": len(chunks)})
	log.Debug("Chunking complete", "chunks", len(chunks))
	return chunks, nil
}

func (p *Pipeline) embed(ctx context.Context, log *logger.Logger, doc *types.Document, chunks []chunker.Chunk) ([][]float32, error) {
	p.stageStart(ctx, doc, types.StageEmbedding)

	out := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += p.cfg.EmbedBatchSize {
		end := start + p.cfg.EmbedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		var batch [][]float32
		err := p.retry(ctx, "embed", func(callCtx context.Context) error {
			var encodeErr error
			batch, encodeErr = p.embedder.Encode(callCtx, texts)
			return encodeErr
		})
		if err != nil {
			p.stageFinish(ctx, doc, types.StageEmbedding, types.StageStatusFailed, nil)
			return nil, err
		}
		if len(batch) != len(texts) {
			p.stageFinish(ctx, doc, types.StageEmbedding, types.StageStatusFailed, nil)
			return nil, faults.Permanent("embed",
				fmt.Sprintf("embedder returned %d vectors for %d texts", len(batch), len(texts)), nil)
		}
		out = append(out, batch...)
	}

	p.stageFinish(ctx, doc, types.StageEmbedding, types.StageStatusSuccess, map[string]any{"vectors": len(out)})
	log.Debug("Embedding complete", "vectors", len(out))
	return out, nil
}

func (p *Pipeline) index(ctx context.Context, doc *types.Document, chunks []chunker.Chunk, embeddings [][]float32) error {
	points := make([]vector.Point, 0, len(chunks))
	for i, c := range chunks {
		points = append(points, vector.Point{
			ID:     ChunkPointID(doc.ID, c.Index),
			Vector: embeddings[i],
			Payload: vector.Payload{
				WorkspaceID:  doc.WorkspaceID.String(),
				DocumentID:   doc.ID.String(),
				DocumentName: doc.DocumentName,
				PageStart:    c.PageStart,
				PageEnd:      c.PageEnd,
				Snippet:      c.Snippet,
			},
		})
	}
	return p.retry(ctx, "index", func(callCtx context.Context) error {
		return p.vectors.Upsert(callCtx, points)
	})
}

func (p *Pipeline) fail(ctx context.Context, log *logger.Logger, doc *types.Document, cause error) {
	message := shortError(cause)
	log.Warn("Pipeline failed", "error", cause)
	if err := p.documents.UpdateStatus(ctx, nil, doc.ID, types.DocumentStatusFailed, &message); err != nil {
		log.Error("Failed to record document failure", "error", err)
	}
}

func (p *Pipeline) stageStart(ctx context.Context, doc *types.Document, stage types.PipelineStage) {
	event := &types.DocumentEvent{
		DocumentID: doc.ID,
		Stage:      stage,
		Status:     types.StageStatusProcessing,
		StartedAt:  time.Now().UTC(),
	}
	if err := p.events.UpsertStage(ctx, nil, event); err != nil {
		p.log.Warn("Failed to record stage start", "stage", stage, "error", err)
	}
}

func (p *Pipeline) stageFinish(ctx context.Context, doc *types.Document, stage types.PipelineStage, status types.StageStatus, detail map[string]any) {
	if err := p.events.FinishStage(ctx, nil, doc.ID, stage, status, time.Now().UTC(), detail); err != nil {
		p.log.Warn("Failed to record stage finish", "stage", stage, "error", err)
	}
}

func (p *Pipeline) recordSkipped(ctx context.Context, doc *types.Document, stage types.PipelineStage) {
	now := time.Now().UTC()
	var zero int64
	event := &types.DocumentEvent{
		DocumentID: doc.ID,
		Stage:      stage,
		Status:     types.StageStatusSkipped,
		StartedAt:  now,
		FinishedAt: &now,
		DurationMS: &zero,
	}
	if err := p.events.UpsertStage(ctx, nil, event); err != nil {
		p.log.Warn("Failed to record skipped stage", "stage", stage, "error", err)
	}
}

// retry runs fn with a per-attempt deadline and capped exponential backoff.
// Only transient faults are retried.
func (p *Pipeline) retry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	delay := p.cfg.RetryBaseDelay
	for attempt := 1; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout)
		err := fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		if !faults.Retryable(err) || attempt >= p.cfg.MaxAttempts {
			return err
		}
		p.log.Debug("Transient failure, backing off", "op", op, "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return faults.Transient(op, "pipeline aborted during backoff", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
		if delay > p.cfg.RetryMaxDelay {
			delay = p.cfg.RetryMaxDelay
		}
	}
}

func shortError(err error) string {
	if err == nil {
		return "unknown error"
	}
	var f *faults.Fault
	if errors.As(err, &f) && f.Message != "" {
		return f.Message
	}
	msg := err.Error()
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
