package main

import (
	"fmt"
	"net/http"
	"os"

	"chainlog/internal/config"
	"chainlog/internal/database"
	"chainlog/internal/handlers"
	"chainlog/internal/hashing"
	"chainlog/internal/logger"
	"chainlog/internal/middleware"
	"chainlog/internal/services"
	"chainlog/internal/validator"

	"github.com/gin-gonic/gin"
)

// @title           Chainlog API
// @version         1.0
// @description     Chainlog is a tamper-evident audit logging service: every entry is linked into a per-tenant hash chain that can be verified end to end.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Register request validators
	validator.Register()

	hasher, err := hashing.New(appConfig.AuditHashSecret)
	if err != nil {
		return fmt.Errorf("failed to initialize hasher: %w", err)
	}

	// Initialize services
	db := dbManager.DB()
	entryService := services.NewEntryService(db, hasher)
	verifyService := services.NewVerifyService(db, hasher)
	queryService := services.NewQueryService(db)
	archiveService := services.NewArchiveService(db, appConfig.SweeperBatchSize)

	// Initialize handlers
	entryHandler := handlers.NewEntryHandler(entryService)
	queryHandler := handlers.NewQueryHandler(queryService)
	verifyHandler := handlers.NewVerifyHandler(verifyService)
	archiveHandler := handlers.NewArchiveHandler(archiveService)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 group
	v1 := router.Group("/api/v1")

	// Ingest route: services record audit events with the shared API key
	ingest := v1.Group("/")
	ingest.Use(middleware.IngestAuthMiddleware(appConfig.IngestAPIKey))
	ingest.POST("/entries", entryHandler.CreateEntry)

	// Operator routes
	operator := v1.Group("/")
	operator.Use(middleware.AuthMiddleware())

	entries := operator.Group("/entries")
	entries.GET("", queryHandler.SearchEntries)
	entries.GET("/stats", queryHandler.GetStats)
	entries.GET("/export", queryHandler.ExportEntries)
	entries.GET("/:id", queryHandler.GetEntry)

	operator.GET("/chain/verify", verifyHandler.VerifyChain)
	operator.POST("/archive/sweep", archiveHandler.Sweep)

	log.Infof("Starting Chainlog server on port %s", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
