package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/corvid-labs/corpora-backend/internal/faults"
	"github.com/corvid-labs/corpora-backend/internal/platform/ctxutil"
)

type APIError struct {
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	requestID := ""
	if td := ctxutil.GetTraceData(c.Request.Context()); td != nil {
		requestID = td.RequestID
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message:   msg,
			Code:      code,
			RequestID: requestID,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondFault maps the core error taxonomy onto HTTP statuses.
func RespondFault(c *gin.Context, err error) {
	switch faults.KindOf(err) {
	case faults.KindValidation:
		RespondError(c, http.StatusBadRequest, "validation_failed", err)
	case faults.KindNotFound:
		RespondError(c, http.StatusNotFound, "not_found", err)
	case faults.KindConflict:
		RespondError(c, http.StatusConflict, "conflict", err)
	case faults.KindUnsupportedMedia:
		RespondError(c, http.StatusUnsupportedMediaType, "unsupported_media_type", err)
	case faults.KindPayloadTooLarge:
		RespondError(c, http.StatusRequestEntityTooLarge, "payload_too_large", err)
	case faults.KindTransient:
		RespondError(c, http.StatusServiceUnavailable, "temporarily_unavailable", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
	}
}
