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

type ChatSessionDTO struct {
	ID          uuid.UUID `json:"id"`
	WorkspaceID uuid.UUID `json:"workspace_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type ChatMessageDTO struct {
	ID        uuid.UUID         `json:"id"`
	SessionID uuid.UUID         `json:"session_id"`
	Role      types.ChatRole    `json:"role"`
	Content   string            `json:"content"`
	CreatedAt time.Time         `json:"created_at"`
	Sources   []services.Source `json:"sources,omitempty"`
}

type ChatHandler struct {
	log     *logger.Logger
	service services.RAGService
}

func NewChatHandler(log *logger.Logger, service services.RAGService) *ChatHandler {
	return &ChatHandler{
		log:     log.With("handler", "ChatHandler"),
		service: service,
	}
}

type askRequest struct {
	WorkspaceID uuid.UUID  `json:"workspace_id" binding:"required"`
	Question    string     `json:"question" binding:"required"`
	TopK        int        `json:"top_k"`
	SessionID   *uuid.UUID `json:"session_id"`
}

// POST /v1/chat/ask
func (h *ChatHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
		return
	}

	resp, err := h.service.Ask(c.Request.Context(), services.AskRequest{
		WorkspaceID: req.WorkspaceID,
		Question:    req.Question,
		TopK:        req.TopK,
		SessionID:   req.SessionID,
	})
	if err != nil {
		RespondFault(c, err)
		return
	}
	RespondOK(c, resp)
}

// GET /v1/chat?workspace_id=...
func (h *ChatHandler) Sessions(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Query("workspace_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_workspace_id", err)
		return
	}
	sessions, err := h.service.Sessions(c.Request.Context(), workspaceID)
	if err != nil {
		RespondFault(c, err)
		return
	}
	out := make([]ChatSessionDTO, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, ChatSessionDTO{ID: s.ID, WorkspaceID: s.WorkspaceID, CreatedAt: s.CreatedAt})
	}
	RespondOK(c, out)
}

// GET /v1/chat/:session_id/messages
func (h *ChatHandler) Messages(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	messages, sources, err := h.service.Messages(c.Request.Context(), sessionID)
	if err != nil {
		RespondFault(c, err)
		return
	}

	sourcesByMessage := map[uuid.UUID][]services.Source{}
	for _, src := range sources {
		sourcesByMessage[src.MessageID] = append(sourcesByMessage[src.MessageID], services.Source{
			SourceID:     src.SourceID,
			DocumentName: src.DocumentName,
			PageStart:    src.PageStart,
			PageEnd:      src.PageEnd,
			Snippet:      src.Snippet,
		})
	}

	out := make([]ChatMessageDTO, 0, len(messages))
	for _, m := range messages {
		out = append(out, ChatMessageDTO{
			ID:        m.ID,
			SessionID: m.SessionID,
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
			Sources:   sourcesByMessage[m.ID],
		})
	}
	RespondOK(c, out)
}
