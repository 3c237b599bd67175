package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/corvid-labs/corpora-backend/internal/faults"
	"github.com/corvid-labs/corpora-backend/internal/ingestion/extractor"
	"github.com/corvid-labs/corpora-backend/internal/jobs"
	"github.com/corvid-labs/corpora-backend/internal/logger"
	"github.com/corvid-labs/corpora-backend/internal/repos"
	"github.com/corvid-labs/corpora-backend/internal/storage"
	"github.com/corvid-labs/corpora-backend/internal/types"
	"github.com/corvid-labs/corpora-backend/internal/vector"
)

type DocumentService interface {
	// Upload persists the raw bytes, inserts the metadata row, and enqueues
	// the pipeline job. Returns the accepted document. Unsupported media is
	// rejected before anything is stored.
	Upload(ctx context.Context, workspaceID uuid.UUID, filename string, data []byte) (*types.Document, error)
	List(ctx context.Context, workspaceID uuid.UUID) ([]*types.Document, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Document, error)
	// Download streams the original bytes; the caller closes the reader.
	Download(ctx context.Context, id uuid.UUID) (*types.Document, io.ReadCloser, int64, error)
	Events(ctx context.Context, id uuid.UUID) ([]*types.DocumentEvent, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type documentService struct {
	log            *logger.Logger
	workspaces     repos.WorkspaceRepo
	documents      repos.DocumentRepo
	events         repos.DocumentEventRepo
	raw            storage.RawStorage
	vectors        vector.Store
	queue          jobs.Queue
	factory        *extractor.Factory
	maxUploadBytes int64
	enqueueTimeout time.Duration
}

func NewDocumentService(
	baseLog *logger.Logger,
	workspaces repos.WorkspaceRepo,
	documents repos.DocumentRepo,
	events repos.DocumentEventRepo,
	raw storage.RawStorage,
	vectors vector.Store,
	queue jobs.Queue,
	maxUploadBytes int64,
	enqueueTimeout time.Duration,
) DocumentService {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 50 << 20
	}
	if enqueueTimeout <= 0 {
		enqueueTimeout = 2 * time.Second
	}
	return &documentService{
		log:            baseLog.With("service", "DocumentService"),
		workspaces:     workspaces,
		documents:      documents,
		events:         events,
		raw:            raw,
		vectors:        vectors,
		queue:          queue,
		factory:        extractor.NewFactory(),
		maxUploadBytes: maxUploadBytes,
		enqueueTimeout: enqueueTimeout,
	}
}

func (s *documentService) Upload(ctx context.Context, workspaceID uuid.UUID, filename string, data []byte) (*types.Document, error) {
	const op = "upload"

	if _, err := s.workspaces.GetByID(ctx, nil, workspaceID); err != nil {
		if repos.IsNotFound(err) {
			return nil, faults.NotFound(op, "workspace not found")
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, faults.Validation(op, "empty file")
	}
	if int64(len(data)) > s.maxUploadBytes {
		return nil, faults.New(faults.KindPayloadTooLarge, op,
			fmt.Sprintf("file exceeds limit of %d bytes", s.maxUploadBytes), nil)
	}

	// Reject by magic bytes before anything is persisted, so unsupported
	// uploads leave no row and no blob.
	mediaType := extractor.DetectMediaType(data)
	if !s.factory.Supported(mediaType) {
		return nil, faults.UnsupportedMedia(op, "unsupported media type: "+mediaType)
	}

	sum := sha256.Sum256(data)
	doc := &types.Document{
		ID:           uuid.New(),
		WorkspaceID:  workspaceID,
		DocumentName: filename,
		MediaType:    mediaType,
		SHA256:       hex.EncodeToString(sum[:]),
		SizeBytes:    int64(len(data)),
		Status:       types.DocumentStatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	doc.RawStoragePath = storage.ObjectPath(workspaceID.String(), doc.ID.String(), filename)

	if err := s.raw.Put(ctx, doc.RawStoragePath, bytes.NewReader(data), doc.SizeBytes); err != nil {
		return nil, err
	}
	if _, err := s.documents.Create(ctx, nil, doc); err != nil {
		// Roll back the blob so a failed insert leaves no orphan.
		if delErr := s.raw.Delete(ctx, doc.RawStoragePath); delErr != nil {
			s.log.Warn("Failed to roll back blob after insert failure", "error", delErr)
		}
		return nil, err
	}

	// Back-pressure: a full queue blocks until the enqueue deadline, then
	// the upload is rejected and fully undone.
	enqueueCtx, cancel := context.WithTimeout(ctx, s.enqueueTimeout)
	defer cancel()
	if err := s.queue.Submit(enqueueCtx, jobs.Job{DocumentID: doc.ID}); err != nil {
		if delErr := s.documents.Delete(ctx, nil, doc.ID); delErr != nil {
			s.log.Warn("Failed to roll back document after enqueue failure", "error", delErr)
		}
		if delErr := s.raw.Delete(ctx, doc.RawStoragePath); delErr != nil {
			s.log.Warn("Failed to roll back blob after enqueue failure", "error", delErr)
		}
		return nil, err
	}
	if err := s.documents.UpdateStatus(ctx, nil, doc.ID, types.DocumentStatusQueued, nil); err != nil {
		s.log.Warn("Failed to mark document queued", "document_id", doc.ID, "error", err)
	} else {
		doc.Status = types.DocumentStatusQueued
	}

	s.log.Info("Document accepted",
		"document_id", doc.ID,
		"workspace_id", workspaceID,
		"media_type", mediaType,
		"size_bytes", doc.SizeBytes,
	)
	return doc, nil
}

func (s *documentService) List(ctx context.Context, workspaceID uuid.UUID) ([]*types.Document, error) {
	if _, err := s.workspaces.GetByID(ctx, nil, workspaceID); err != nil {
		if repos.IsNotFound(err) {
			return nil, faults.NotFound("list_documents", "workspace not found")
		}
		return nil, err
	}
	return s.documents.ListByWorkspace(ctx, nil, workspaceID)
}

func (s *documentService) Get(ctx context.Context, id uuid.UUID) (*types.Document, error) {
	doc, err := s.documents.GetByID(ctx, nil, id)
	if err != nil {
		if repos.IsNotFound(err) {
			return nil, faults.NotFound("get_document", "document not found")
		}
		return nil, err
	}
	return doc, nil
}

func (s *documentService) Download(ctx context.Context, id uuid.UUID) (*types.Document, io.ReadCloser, int64, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, 0, err
	}
	rc, size, err := s.raw.Get(ctx, doc.RawStoragePath)
	if err != nil {
		return nil, nil, 0, err
	}
	return doc, rc, size, nil
}

func (s *documentService) Events(ctx context.Context, id uuid.UUID) ([]*types.DocumentEvent, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.events.ListByDocument(ctx, nil, id)
}

func (s *documentService) Delete(ctx context.Context, id uuid.UUID) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.vectors.DeleteByFilter(ctx, vector.Filter{DocumentID: doc.ID.String()}); err != nil {
		return err
	}
	if err := s.raw.Delete(ctx, doc.RawStoragePath); err != nil && faults.KindOf(err) != faults.KindNotFound {
		return err
	}
	if err := s.events.DeleteByDocumentIDs(ctx, nil, []uuid.UUID{doc.ID}); err != nil {
		return err
	}
	return s.documents.Delete(ctx, nil, doc.ID)
}
