package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/corvid-labs/corpora-backend/internal/services"
)

type HealthHandler struct {
	service services.HealthService
}

func NewHealthHandler(service services.HealthService) *HealthHandler {
	return &HealthHandler{service: service}
}

// GET /v1/ops/status
func (h *HealthHandler) Status(c *gin.Context) {
	RespondOK(c, h.service.Check(c.Request.Context()))
}
