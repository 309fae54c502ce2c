package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "chainlog/internal/errors"
	"chainlog/internal/services"
)

// --- mock verify service ---

type mockVerifyService struct {
	verifyChainFn func(orgID string, from, to time.Time) (*services.VerifyResult, error)
}

var _ services.VerifyServicer = (*mockVerifyService)(nil)

func (m *mockVerifyService) VerifyChain(orgID string, from, to time.Time) (*services.VerifyResult, error) {
	if m.verifyChainFn != nil {
		return m.verifyChainFn(orgID, from, to)
	}
	return &services.VerifyResult{Valid: true}, nil
}

func setupVerifyRouter(handler *VerifyHandler) *gin.Engine {
	r := gin.New()
	r.GET("/chain/verify", handler.VerifyChain)
	return r
}

// --- tests ---

func TestVerifyHandler_VerifyChain(t *testing.T) {
	t.Run("returns_result", func(t *testing.T) {
		svc := &mockVerifyService{
			verifyChainFn: func(orgID string, _, _ time.Time) (*services.VerifyResult, error) {
				if orgID != "org-1" {
					t.Errorf("expected org-1, got %s", orgID)
				}
				return &services.VerifyResult{Valid: true, EntriesChecked: 7}, nil
			},
		}
		r := setupVerifyRouter(NewVerifyHandler(svc))

		rec := doRequest(r, "GET", "/chain/verify?org_id=org-1", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if result["valid"] != true {
			t.Error("expected valid result")
		}
		if result["entries_checked"].(float64) != 7 {
			t.Errorf("expected 7 entries checked, got %v", result["entries_checked"])
		}
	})

	t.Run("defaults_range_to_full_history", func(t *testing.T) {
		var gotFrom, gotTo time.Time
		svc := &mockVerifyService{
			verifyChainFn: func(_ string, from, to time.Time) (*services.VerifyResult, error) {
				gotFrom, gotTo = from, to
				return &services.VerifyResult{Valid: true}, nil
			},
		}
		r := setupVerifyRouter(NewVerifyHandler(svc))

		rec := doRequest(r, "GET", "/chain/verify?org_id=org-1", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !gotFrom.Equal(time.Unix(0, 0).UTC()) {
			t.Errorf("expected from to default to epoch, got %v", gotFrom)
		}
		if time.Since(gotTo) > time.Minute {
			t.Errorf("expected to to default to now, got %v", gotTo)
		}
	})

	t.Run("parses_explicit_range", func(t *testing.T) {
		var gotFrom time.Time
		svc := &mockVerifyService{
			verifyChainFn: func(_ string, from, _ time.Time) (*services.VerifyResult, error) {
				gotFrom = from
				return &services.VerifyResult{Valid: true}, nil
			},
		}
		r := setupVerifyRouter(NewVerifyHandler(svc))

		rec := doRequest(r, "GET", "/chain/verify?org_id=org-1&from_date=2026-01-15", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		want := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
		if !gotFrom.Equal(want) {
			t.Errorf("expected from %v, got %v", want, gotFrom)
		}
	})

	t.Run("rejects_bad_date", func(t *testing.T) {
		r := setupVerifyRouter(NewVerifyHandler(&mockVerifyService{}))

		rec := doRequest(r, "GET", "/chain/verify?org_id=org-1&to_date=yesterday", "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for bad date, got %d", rec.Code)
		}
	})

	t.Run("propagates_service_error", func(t *testing.T) {
		svc := &mockVerifyService{
			verifyChainFn: func(string, time.Time, time.Time) (*services.VerifyResult, error) {
				return nil, apperrors.ErrMissingOrg
			},
		}
		r := setupVerifyRouter(NewVerifyHandler(svc))

		rec := doRequest(r, "GET", "/chain/verify", "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "MISSING_ORG")
	})
}
