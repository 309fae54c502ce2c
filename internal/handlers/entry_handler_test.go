package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "chainlog/internal/errors"
	"chainlog/internal/services"
	"chainlog/internal/validator"
)

// --- mock entry service ---

type mockEntryService struct {
	appendFn func(in services.AppendInput) (*services.AppendResult, error)
}

var _ services.EntryServicer = (*mockEntryService)(nil)

func (m *mockEntryService) Append(in services.AppendInput) (*services.AppendResult, error) {
	if m.appendFn != nil {
		return m.appendFn(in)
	}
	return &services.AppendResult{EntryID: "test-id", Recorded: true}, nil
}

// --- test helpers ---

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

func setupEntryRouter(handler *EntryHandler) *gin.Engine {
	r := gin.New()
	r.POST("/entries", handler.CreateEntry)
	return r
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}

const validEntryBody = `{
	"org_id": "org-1",
	"category": "data_modification",
	"action": "UPDATE",
	"resource_type": "property",
	"resource_id": "prop-1"
}`

// --- tests ---

func TestEntryHandler_CreateEntry(t *testing.T) {
	t.Run("returns_202_on_success", func(t *testing.T) {
		var captured services.AppendInput
		svc := &mockEntryService{
			appendFn: func(in services.AppendInput) (*services.AppendResult, error) {
				captured = in
				return &services.AppendResult{EntryID: "abc", Recorded: true}, nil
			},
		}
		r := setupEntryRouter(NewEntryHandler(svc))

		rec := doRequest(r, "POST", "/entries", validEntryBody)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if result["entry_id"] != "abc" || result["recorded"] != true {
			t.Errorf("unexpected response %v", result)
		}
		if captured.OrgID != "org-1" {
			t.Errorf("expected org-1 passed through, got %s", captured.OrgID)
		}
		if !captured.Success {
			t.Error("expected success to default to true")
		}
	})

	t.Run("fills_context_from_request", func(t *testing.T) {
		var captured services.AppendInput
		svc := &mockEntryService{
			appendFn: func(in services.AppendInput) (*services.AppendResult, error) {
				captured = in
				return &services.AppendResult{Recorded: true}, nil
			},
		}
		r := setupEntryRouter(NewEntryHandler(svc))

		req := httptest.NewRequest("POST", "/entries", strings.NewReader(validEntryBody))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "test-agent/1.0")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
		}
		if captured.UserAgent != "test-agent/1.0" {
			t.Errorf("expected user agent from request, got %q", captured.UserAgent)
		}
		if captured.IPAddress == "" {
			t.Error("expected client IP to be filled in")
		}
	})

	t.Run("explicit_context_wins", func(t *testing.T) {
		var captured services.AppendInput
		svc := &mockEntryService{
			appendFn: func(in services.AppendInput) (*services.AppendResult, error) {
				captured = in
				return &services.AppendResult{Recorded: true}, nil
			},
		}
		r := setupEntryRouter(NewEntryHandler(svc))

		body := `{
			"org_id": "org-1",
			"category": "data_modification",
			"action": "UPDATE",
			"resource_type": "property",
			"resource_id": "prop-1",
			"ip_address": "203.0.113.7",
			"success": false
		}`
		rec := doRequest(r, "POST", "/entries", body)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
		}
		if captured.IPAddress != "203.0.113.7" {
			t.Errorf("expected explicit IP preserved, got %q", captured.IPAddress)
		}
		if captured.Success {
			t.Error("expected explicit success=false to pass through")
		}
	})

	t.Run("rejects_unknown_category", func(t *testing.T) {
		r := setupEntryRouter(NewEntryHandler(&mockEntryService{}))

		body := strings.Replace(validEntryBody, "data_modification", "gossip", 1)
		rec := doRequest(r, "POST", "/entries", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("rejects_bad_email", func(t *testing.T) {
		r := setupEntryRouter(NewEntryHandler(&mockEntryService{}))

		body := `{
			"org_id": "org-1",
			"actor_email": "not-an-email",
			"category": "data_modification",
			"action": "UPDATE",
			"resource_type": "property",
			"resource_id": "prop-1"
		}`
		rec := doRequest(r, "POST", "/entries", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for bad email, got %d", rec.Code)
		}
	})

	t.Run("propagates_service_error", func(t *testing.T) {
		svc := &mockEntryService{
			appendFn: func(services.AppendInput) (*services.AppendResult, error) {
				return nil, apperrors.ErrInvalidAction
			},
		}
		r := setupEntryRouter(NewEntryHandler(svc))

		rec := doRequest(r, "POST", "/entries", validEntryBody)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_ACTION")
	})

	t.Run("malformed_json", func(t *testing.T) {
		r := setupEntryRouter(NewEntryHandler(&mockEntryService{}))

		rec := doRequest(r, "POST", "/entries", `{"org_id":`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for malformed JSON, got %d", rec.Code)
		}
	})
}
