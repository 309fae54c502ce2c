package integration

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"strings"
	"testing"
	"time"

	"chainlog/internal/models"
	"chainlog/internal/testutil"
)

func TestExportFlow(t *testing.T) {
	app := setupApp(t)
	token := operatorToken(t)

	app.recordEntry(t, `{
		"org_id": "org-acme",
		"actor_id": "user-1",
		"category": "authentication",
		"action": "LOGIN",
		"resource_type": "session",
		"resource_id": "s1"
	}`)
	app.recordEntry(t, `{
		"org_id": "org-acme",
		"actor_id": "user-1",
		"category": "data_access",
		"action": "READ",
		"resource_type": "report",
		"resource_id": "r1",
		"success": false,
		"error_message": "permission denied"
	}`)

	t.Run("csv", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/entries/export?org_id=org-acme&format=csv", "", token)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 exporting CSV, got %d: %s", rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
			t.Errorf("unexpected content type %s", ct)
		}
		if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
			t.Errorf("expected attachment disposition, got %s", cd)
		}

		records, err := csv.NewReader(bytes.NewReader(rec.Body.Bytes())).ReadAll()
		if err != nil {
			t.Fatalf("export is not valid CSV: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("expected header plus 2 rows, got %d", len(records))
		}
	})

	t.Run("json_default", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/entries/export?org_id=org-acme", "", token)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 exporting JSON, got %d: %s", rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			t.Errorf("unexpected content type %s", ct)
		}
	})

	t.Run("unknown_format", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/entries/export?org_id=org-acme&format=xml", "", token)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for unknown format, got %d", rec.Code)
		}
	})
}

func TestStatsFlow(t *testing.T) {
	app := setupApp(t)
	token := operatorToken(t)

	app.recordEntry(t, `{
		"org_id": "org-acme",
		"actor_id": "user-1",
		"category": "authentication",
		"action": "LOGIN",
		"resource_type": "session",
		"resource_id": "s1"
	}`)
	app.recordEntry(t, `{
		"org_id": "org-acme",
		"actor_id": "user-1",
		"category": "authentication",
		"action": "LOGIN_FAILED",
		"resource_type": "session",
		"resource_id": "s2",
		"success": false
	}`)

	from := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	to := time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")

	rec := app.request("GET",
		"/api/v1/entries/stats?org_id=org-acme&from_date="+from+"&to_date="+to, "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 getting stats, got %d: %s", rec.Code, rec.Body.String())
	}
	stats := parseJSON(t, rec)
	if stats["total_entries"].(float64) != 2 {
		t.Errorf("expected 2 entries, got %.0f", stats["total_entries"].(float64))
	}
	if stats["success_rate"].(float64) != 0.5 {
		t.Errorf("expected success rate 0.5, got %v", stats["success_rate"])
	}

	t.Run("dates_required", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/entries/stats?org_id=org-acme", "", token)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 without date window, got %d", rec.Code)
		}
	})
}

func TestArchiveFlow(t *testing.T) {
	app := setupApp(t)
	token := operatorToken(t)

	// One expired and one live entry, inserted directly with explicit expiries.
	now := time.Now().UTC().Truncate(time.Microsecond)
	testutil.CreateTestEntryAt(t, app.DB, "org-acme", now.AddDate(0, 0, -100), now.AddDate(0, 0, -1))
	testutil.CreateTestEntryAt(t, app.DB, "org-acme", now, now.AddDate(0, 0, 90))

	rec := app.request("POST", "/api/v1/archive/sweep", `{"org_id":"org-acme"}`, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 sweeping, got %d: %s", rec.Code, rec.Body.String())
	}
	if parseJSON(t, rec)["archived_count"].(float64) != 1 {
		t.Fatalf("expected 1 archived entry: %s", rec.Body.String())
	}

	var hot, cold int64
	app.DB.Model(&models.AuditEntry{}).Where("org_id = ?", "org-acme").Count(&hot)
	app.DB.Model(&models.ArchivedAuditEntry{}).Where("org_id = ?", "org-acme").Count(&cold)
	if hot != 1 || cold != 1 {
		t.Errorf("expected 1 hot and 1 cold entry, got %d hot, %d cold", hot, cold)
	}

	t.Run("missing_org", func(t *testing.T) {
		rec := app.request("POST", "/api/v1/archive/sweep", `{}`, token)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 without org_id, got %d", rec.Code)
		}
	})
}
