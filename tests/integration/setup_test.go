package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"chainlog/internal/handlers"
	"chainlog/internal/hashing"
	"chainlog/internal/logger"
	"chainlog/internal/middleware"
	"chainlog/internal/models"
	"chainlog/internal/services"
	"chainlog/internal/validator"
)

// testIngestKey is the shared API key wired into every test router.
const testIngestKey = "test-ingest-key"

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
}

// dbCounter ensures each test gets a unique in-memory database.
var dbCounter atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupIsolatedDB creates an isolated in-memory SQLite database for a single test.
func setupIsolatedDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:integdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	allModels := []interface{}{
		&models.AuditEntry{},
		&models.ArchivedAuditEntry{},
	}
	if err := db.AutoMigrate(allModels...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// setupApp creates a full application stack backed by an isolated in-memory SQLite.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := setupIsolatedDB(t)

	hasher, err := hashing.New("integration-test-secret")
	if err != nil {
		t.Fatalf("failed to create hasher: %v", err)
	}

	// Services
	entryService := services.NewEntryService(db, hasher)
	verifyService := services.NewVerifyService(db, hasher)
	queryService := services.NewQueryService(db)
	archiveService := services.NewArchiveService(db, 100)

	// Handlers
	entryHandler := handlers.NewEntryHandler(entryService)
	queryHandler := handlers.NewQueryHandler(queryService)
	verifyHandler := handlers.NewVerifyHandler(verifyService)
	archiveHandler := handlers.NewArchiveHandler(archiveService)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())

	v1 := router.Group("/api/v1")

	ingest := v1.Group("/")
	ingest.Use(middleware.IngestAuthMiddleware(testIngestKey))
	ingest.POST("/entries", entryHandler.CreateEntry)

	operator := v1.Group("/")
	operator.Use(middleware.AuthMiddleware())

	entries := operator.Group("/entries")
	entries.GET("", queryHandler.SearchEntries)
	entries.GET("/stats", queryHandler.GetStats)
	entries.GET("/export", queryHandler.ExportEntries)
	entries.GET("/:id", queryHandler.GetEntry)

	operator.GET("/chain/verify", verifyHandler.VerifyChain)
	operator.POST("/archive/sweep", archiveHandler.Sweep)

	return &testApp{DB: db, Router: router}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// ingestRequest makes a service-to-service request authenticated with the API key.
func (app *testApp) ingestRequest(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testIngestKey)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// operatorToken issues a JWT for the operator endpoints.
func operatorToken(t *testing.T) string {
	t.Helper()
	token, err := middleware.GenerateOperatorToken("ops@test.com")
	if err != nil {
		t.Fatalf("failed to generate operator token: %v", err)
	}
	return token
}

// recordEntry posts an audit event through the ingest endpoint and returns the entry ID.
func (app *testApp) recordEntry(t *testing.T, body string) string {
	t.Helper()
	rec := app.ingestRequest("POST", "/api/v1/entries", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("record entry failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	if result["recorded"] != true {
		t.Fatalf("expected entry to be recorded: %s", rec.Body.String())
	}
	return result["entry_id"].(string)
}
