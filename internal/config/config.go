package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server
	Env  string
	Port string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Integrity
	AuditHashSecret string

	// Auth
	JWTSecret    string
	IngestAPIKey string

	// Sweeper
	SweeperBatchSize int
}

var appConfig *Config

// Load loads configuration from environment variables. The audit hash
// secret is validated here so a misconfigured production process fails
// at startup rather than on the first write.
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		// Server
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "8080"),

		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "chainlog"),
		DBPassword: getEnv("DB_PASSWORD", "chainlog"),
		DBName:     getEnv("DB_NAME", "chainlog"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// Integrity
		AuditHashSecret: os.Getenv("AUDIT_HASH_SECRET"),

		// Auth
		JWTSecret:    getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),
		IngestAPIKey: os.Getenv("INGEST_API_KEY"),
	}

	if config.AuditHashSecret == "" {
		if config.Env == "production" {
			return nil, fmt.Errorf("AUDIT_HASH_SECRET must be set in production")
		}
		log.Println("Warning: AUDIT_HASH_SECRET not set, using insecure development secret")
		config.AuditHashSecret = "insecure-dev-audit-secret"
	}

	batchStr := getEnv("SWEEPER_BATCH_SIZE", "100")
	batch, err := strconv.Atoi(batchStr)
	if err != nil || batch < 1 {
		log.Printf("Warning: invalid SWEEPER_BATCH_SIZE value '%s', falling back to 100\n", batchStr)
		batch = 100
	}
	config.SweeperBatchSize = batch

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
