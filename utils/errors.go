package utils

import (
	"errors"
	"net/http"

	"rag-knowledge-platform/models"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithBadRequest sends a 400 Bad Request error
func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, "bad_request", message, details)
}

// RespondWithNotFound sends a 404 Not Found error
func RespondWithNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, "not_found", message, nil)
}

// RespondWithConflict sends a 409 Conflict error
func RespondWithConflict(c *gin.Context, message string) {
	RespondWithError(c, http.StatusConflict, "conflict", message, nil)
}

// RespondWithUnsupportedMedia sends a 415 Unsupported Media Type error
func RespondWithUnsupportedMedia(c *gin.Context, message string) {
	RespondWithError(c, http.StatusUnsupportedMediaType, "unsupported_format", message, nil)
}

// RespondWithInternalError sends a 500 Internal Server Error
func RespondWithInternalError(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusInternalServerError, "internal_error", message, details)
}

// RespondWithDomainError maps a service-layer error to the right HTTP status.
func RespondWithDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNodeNotFound):
		RespondWithNotFound(c, "node not found")
	case errors.Is(err, models.ErrDocumentNotFound):
		RespondWithNotFound(c, "document not found")
	case errors.Is(err, models.ErrDuplicateName):
		RespondWithConflict(c, err.Error())
	case errors.Is(err, models.ErrInvalidName),
		errors.Is(err, models.ErrInvalidParameters),
		errors.Is(err, models.ErrInvalidConfig):
		RespondWithBadRequest(c, err.Error(), nil)
	case errors.Is(err, models.ErrUnsupportedFormat):
		RespondWithUnsupportedMedia(c, err.Error())
	case models.IsTransientEmbeddingError(err):
		RespondWithError(c, http.StatusServiceUnavailable, "embedding_unavailable",
			"embedding provider temporarily unavailable", nil)
	default:
		RespondWithInternalError(c, "internal error", nil)
	}
}
