package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docutag/leadimage"
	"github.com/docutag/leadimage/api"
	"github.com/docutag/leadimage/db"
	"github.com/docutag/leadimage/models"
	"github.com/docutag/leadimage/storage"
)

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// scoreOverrides is the SCORE_CONFIG JSON shape. Absent fields keep
// their defaults.
type scoreOverrides struct {
	EligibleNamespaces []int                `json:"eligible_namespaces"`
	WidthTable         leadimage.ScoreTable `json:"width_table"`
	PositionBonuses    []int                `json:"position_bonuses"`
	RatioTable         leadimage.ScoreTable `json:"ratio_table"`
	DefaultThumbSize   int                  `json:"default_thumb_size"`
}

func main() {
	// Setup structured logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("leadimage service initializing", "version", "1.0.0")

	// Initialize tracing
	tp, err := initTracer("leadimage")
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
	} else {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Error("error shutting down tracer", "error", err)
			}
		}()
		logger.Info("tracing initialized successfully")
	}

	// Default values
	defaultPort := getEnv("PORT", "8080")
	defaultStoragePath := getEnv("STORAGE_BASE_PATH", "./storage")
	defaultBlacklistTTL := getEnv("BLACKLIST_TTL", "15m")
	defaultFetchTimeout := getEnv("FETCH_TIMEOUT", "3s")

	// Parse blacklist cache TTL
	blacklistTTL, err := time.ParseDuration(defaultBlacklistTTL)
	if err != nil {
		logger.Warn("invalid BLACKLIST_TTL value, using default",
			"provided", defaultBlacklistTTL,
			"default", "15m",
			"error", err,
		)
		blacklistTTL = 15 * time.Minute
	}

	// Parse remote fetch timeout
	fetchTimeout, err := time.ParseDuration(defaultFetchTimeout)
	if err != nil {
		logger.Warn("invalid FETCH_TIMEOUT value, using default",
			"provided", defaultFetchTimeout,
			"default", "3s",
			"error", err,
		)
		fetchTimeout = 3 * time.Second
	}

	// Command-line flags (override environment variables)
	port := flag.String("port", defaultPort, "Server port")
	storagePath := flag.String("storage-path", defaultStoragePath, "Filesystem storage base path")
	disableCORS := flag.Bool("disable-cors", false, "Disable CORS")
	flag.Parse()

	// PostgreSQL database configuration (required)
	dbHost := getEnv("DB_HOST", "")
	if dbHost == "" {
		logger.Error("DB_HOST environment variable is required")
		os.Exit(1)
	}

	dbPort := getEnv("DB_PORT", "5432")
	dbUser := getEnv("DB_USER", "docutab")
	dbPassword := getEnv("DB_PASSWORD", "docutab_dev_pass")
	dbName := getEnv("DB_NAME", "docutab")

	dbConfig := db.Config{
		DSN: fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", dbHost, dbPort, dbUser, dbPassword, dbName),
	}
	logger.Info("using PostgreSQL database", "host", dbHost, "port", dbPort, "database", dbName)

	database, err := db.New(dbConfig)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}

	// Selector configuration
	selConfig := leadimage.DefaultConfig()
	selConfig.BlacklistTTL = blacklistTTL
	selConfig.FetchTimeout = fetchTimeout

	if scoreJSON := getEnv("SCORE_CONFIG", ""); scoreJSON != "" {
		var overrides scoreOverrides
		if err := json.Unmarshal([]byte(scoreJSON), &overrides); err != nil {
			logger.Error("invalid SCORE_CONFIG", "error", err)
			os.Exit(1)
		}
		if overrides.EligibleNamespaces != nil {
			selConfig.EligibleNamespaces = overrides.EligibleNamespaces
		}
		if overrides.WidthTable != nil {
			selConfig.WidthTable = overrides.WidthTable
		}
		if overrides.PositionBonuses != nil {
			selConfig.PositionBonuses = overrides.PositionBonuses
		}
		if overrides.RatioTable != nil {
			selConfig.RatioTable = overrides.RatioTable
		}
		if overrides.DefaultThumbSize > 0 {
			selConfig.DefaultThumbSize = overrides.DefaultThumbSize
		}
		logger.Info("score configuration overridden from SCORE_CONFIG")
	}

	if sourcesJSON := getEnv("BLACKLIST_SOURCES", ""); sourcesJSON != "" {
		var sources []models.BlacklistSource
		if err := json.Unmarshal([]byte(sourcesJSON), &sources); err != nil {
			logger.Error("invalid BLACKLIST_SOURCES", "error", err)
			os.Exit(1)
		}
		selConfig.BlacklistSources = sources
		logger.Info("blacklist sources configured", "count", len(sources))
	}

	selector := leadimage.New(selConfig, database)

	// Storage backend: S3 when a bucket is configured, filesystem otherwise
	var backend storage.Backend
	if bucket := getEnv("S3_BUCKET", ""); bucket != "" {
		s3Config := storage.S3Config{
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Bucket:          bucket,
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			UsePathStyle:    getEnv("S3_USE_PATH_STYLE", "") == "true",
		}
		backend, err = storage.NewS3Storage(context.Background(), s3Config)
		if err != nil {
			logger.Error("failed to initialize S3 storage", "error", err)
			os.Exit(1)
		}
		logger.Info("using S3 storage", "bucket", bucket, "region", s3Config.Region)
	} else {
		backend, err = storage.New(storage.Config{BasePath: *storagePath})
		if err != nil {
			logger.Error("failed to initialize filesystem storage", "error", err)
			os.Exit(1)
		}
		logger.Info("using filesystem storage", "path", *storagePath)
	}

	// Create server
	server := api.NewServer(api.Config{
		Addr:        ":" + *port,
		CORSEnabled: !*disableCORS,
	}, database, selector, backend)

	// Initialize database metrics
	dbMetrics := newDatabaseMetrics("leadimage")
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			dbMetrics.UpdateDBStats(database.DB())
		}
	}()
	logger.Info("database metrics initialized")

	// Initialize stats metrics updater
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			server.UpdateStatsMetrics()
		}
	}()
	logger.Info("stats metrics initialized")

	// Start server in a goroutine
	go func() {
		logger.Info("leadimage service starting",
			"port", *port,
			"database_host", dbHost,
			"database_name", dbName,
			"blacklist_sources", len(selConfig.BlacklistSources),
			"blacklist_ttl", blacklistTTL.String(),
			"fetch_timeout", fetchTimeout.String(),
		)

		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	logger.Info("shutting down gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
