package utils

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"rag-knowledge-platform/models"

	"github.com/gin-gonic/gin"
)

func TestRespondWithDomainError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"node not found", models.ErrNodeNotFound, http.StatusNotFound},
		{"document not found", models.ErrDocumentNotFound, http.StatusNotFound},
		{"duplicate name", models.ErrDuplicateName, http.StatusConflict},
		{"wrapped duplicate name", fmt.Errorf("create: %w", models.ErrDuplicateName), http.StatusConflict},
		{"invalid name", models.ErrInvalidName, http.StatusBadRequest},
		{"invalid parameters", models.ErrInvalidParameters, http.StatusBadRequest},
		{"unsupported format", models.ErrUnsupportedFormat, http.StatusUnsupportedMediaType},
		{"transient embedding", &models.EmbeddingProviderError{Transient: true, Err: fmt.Errorf("rate limited")}, http.StatusServiceUnavailable},
		{"storage", models.ErrStorage, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)

			RespondWithDomainError(c, tc.err)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}
