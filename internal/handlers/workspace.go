package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/corvid-labs/corpora-backend/internal/logger"
	"github.com/corvid-labs/corpora-backend/internal/services"
	"github.com/corvid-labs/corpora-backend/internal/types"
)

type WorkspaceDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func toWorkspaceDTO(ws *types.Workspace) WorkspaceDTO {
	return WorkspaceDTO{ID: ws.ID, Name: ws.Name, CreatedAt: ws.CreatedAt}
}

type WorkspaceHandler struct {
	log     *logger.Logger
	service services.WorkspaceService
}

func NewWorkspaceHandler(log *logger.Logger, service services.WorkspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{
		log:     log.With("handler", "WorkspaceHandler"),
		service: service,
	}
}

type createWorkspaceRequest struct {
	Name string `json:"name"`
}

// POST /v1/workspaces
func (h *WorkspaceHandler) Create(c *gin.Context) {
	var req createWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Also accept ?name= the way the original upload UI sends it.
		req.Name = c.Query("name")
	}
	if req.Name == "" {
		req.Name = c.Query("name")
	}

	ws, err := h.service.Create(c.Request.Context(), req.Name)
	if err != nil {
		RespondFault(c, err)
		return
	}
	c.JSON(http.StatusCreated, toWorkspaceDTO(ws))
}

// GET /v1/workspaces
func (h *WorkspaceHandler) List(c *gin.Context) {
	workspaces, err := h.service.List(c.Request.Context())
	if err != nil {
		RespondFault(c, err)
		return
	}
	out := make([]WorkspaceDTO, 0, len(workspaces))
	for _, ws := range workspaces {
		out = append(out, toWorkspaceDTO(ws))
	}
	RespondOK(c, out)
}

// DELETE /v1/workspaces/:id
func (h *WorkspaceHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_workspace_id", err)
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		RespondFault(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
