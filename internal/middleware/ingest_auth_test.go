package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func ingestTestRouter(apiKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(IngestAuthMiddleware(apiKey))
	router.POST("/entries", func(c *gin.Context) {
		c.JSON(http.StatusAccepted, gin.H{"ok": true})
	})
	return router
}

func TestIngestAuthMiddleware(t *testing.T) {
	t.Run("valid_key", func(t *testing.T) {
		router := ingestTestRouter("sekrit")

		req := httptest.NewRequest("POST", "/entries", nil)
		req.Header.Set("X-API-Key", "sekrit")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusAccepted {
			t.Errorf("expected 202, got %d", rec.Code)
		}
	})

	t.Run("wrong_key", func(t *testing.T) {
		router := ingestTestRouter("sekrit")

		req := httptest.NewRequest("POST", "/entries", nil)
		req.Header.Set("X-API-Key", "wrong")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("missing_key", func(t *testing.T) {
		router := ingestTestRouter("sekrit")

		req := httptest.NewRequest("POST", "/entries", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("not_configured", func(t *testing.T) {
		router := ingestTestRouter("")

		req := httptest.NewRequest("POST", "/entries", nil)
		req.Header.Set("X-API-Key", "anything")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
	})
}
