package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/corvid-labs/corpora-backend/internal/logger"
	"github.com/corvid-labs/corpora-backend/internal/services"
	"github.com/corvid-labs/corpora-backend/internal/types"
)

type DocumentMetaDTO struct {
	ID               uuid.UUID            `json:"id"`
	WorkspaceID      uuid.UUID            `json:"workspace_id"`
	DocumentName     string               `json:"document_name"`
	MediaType        string               `json:"media_type"`
	SHA256           string               `json:"sha256"`
	PageCount        int                  `json:"page_count"`
	Author           *string              `json:"author,omitempty"`
	CreationDate     *time.Time           `json:"creation_date,omitempty"`
	DetectedLanguage *string              `json:"detected_language,omitempty"`
	SizeBytes        int64                `json:"size_bytes"`
	IngestedAt       *time.Time           `json:"ingested_at,omitempty"`
	Status           types.DocumentStatus `json:"status"`
	ErrorMessage     *string              `json:"error_message,omitempty"`
}

func toDocumentMetaDTO(doc *types.Document) DocumentMetaDTO {
	return DocumentMetaDTO{
		ID:               doc.ID,
		WorkspaceID:      doc.WorkspaceID,
		DocumentName:     doc.DocumentName,
		MediaType:        doc.MediaType,
		SHA256:           doc.SHA256,
		PageCount:        doc.PageCount,
		Author:           doc.Author,
		CreationDate:     doc.CreationDate,
		DetectedLanguage: doc.DetectedLanguage,
		SizeBytes:        doc.SizeBytes,
		IngestedAt:       doc.IngestedAt,
		Status:           doc.Status,
		ErrorMessage:     doc.ErrorMessage,
	}
}

type DocumentEventDTO struct {
	Stage      types.PipelineStage `json:"stage"`
	Status     types.StageStatus   `json:"status"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
	DurationMS *int64              `json:"duration_ms,omitempty"`
}

type DocumentHandler struct {
	log     *logger.Logger
	service services.DocumentService
}

func NewDocumentHandler(log *logger.Logger, service services.DocumentService) *DocumentHandler {
	return &DocumentHandler{
		log:     log.With("handler", "DocumentHandler"),
		service: service,
	}
}

// POST /v1/documents/upload?workspace_id=...
func (h *DocumentHandler) Upload(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Query("workspace_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_workspace_id", err)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "missing_file_part", err)
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "unreadable_file_part", err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "unreadable_file_part", err)
		return
	}

	doc, err := h.service.Upload(c.Request.Context(), workspaceID, fileHeader.Filename, data)
	if err != nil {
		RespondFault(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"document_id": doc.ID})
}

// GET /v1/documents?workspace_id=...
func (h *DocumentHandler) List(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Query("workspace_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_workspace_id", err)
		return
	}
	docs, err := h.service.List(c.Request.Context(), workspaceID)
	if err != nil {
		RespondFault(c, err)
		return
	}
	out := make([]DocumentMetaDTO, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDocumentMetaDTO(doc))
	}
	RespondOK(c, out)
}

// GET /v1/documents/:id/download
func (h *DocumentHandler) Download(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}
	doc, rc, size, err := h.service.Download(c.Request.Context(), id)
	if err != nil {
		RespondFault(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.DocumentName))
	c.Header("Content-Length", strconv.FormatInt(size, 10))
	c.DataFromReader(http.StatusOK, size, doc.MediaType, rc, nil)
}

// GET /v1/documents/:id/status
func (h *DocumentHandler) Status(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}
	doc, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		RespondFault(c, err)
		return
	}
	RespondOK(c, gin.H{"document_status": doc.Status})
}

// GET /v1/documents/:id/events
func (h *DocumentHandler) Events(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}
	events, err := h.service.Events(c.Request.Context(), id)
	if err != nil {
		RespondFault(c, err)
		return
	}
	out := make([]DocumentEventDTO, 0, len(events))
	for _, e := range events {
		out = append(out, DocumentEventDTO{
			Stage:      e.Stage,
			Status:     e.Status,
			StartedAt:  e.StartedAt,
			FinishedAt: e.FinishedAt,
			DurationMS: e.DurationMS,
		})
	}
	RespondOK(c, out)
}

// DELETE /v1/documents/:id
func (h *DocumentHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		RespondFault(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
