package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/itskevin-zz/testframe/internal/config"
	"github.com/itskevin-zz/testframe/internal/execution"
	"github.com/itskevin-zz/testframe/internal/handler"
	"github.com/itskevin-zz/testframe/internal/idgen"
	"github.com/itskevin-zz/testframe/internal/models"
	"github.com/itskevin-zz/testframe/internal/repository"
	"github.com/itskevin-zz/testframe/internal/runlock"
	"github.com/itskevin-zz/testframe/internal/service"
	"github.com/itskevin-zz/testframe/internal/websocket"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config.toml"
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Auto migrate models
	if err := db.AutoMigrate(
		&models.Component{},
		&models.TestCase{},
		&models.TestRun{},
		&models.TestCaseExecution{},
		&models.RunLock{},
		&models.AppMetadata{},
		&models.TestRunTemplate{},
		&models.TestRunTemplateCase{},
	); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Initialize repositories
	caseRepo := repository.NewTestCaseRepository(db)
	componentRepo := repository.NewComponentRepository(db)
	runRepo := repository.NewTestRunRepository(db)
	execRepo := repository.NewExecutionRepository(db)
	templateRepo := repository.NewTemplateRepository(db)

	// Core components
	ids := idgen.NewAllocator(db)
	locks := runlock.NewManager(db, cfg.Lock.TTL())
	execMgr := execution.NewManager(execRepo, locks)

	// WebSocket hub for live run stats
	hub := websocket.NewHub()
	go hub.Run()

	// Services
	caseSvc := service.NewTestCaseService(caseRepo, componentRepo, ids)
	runSvc := service.NewTestRunService(runRepo, caseRepo, execMgr, locks, ids, hub)
	templateSvc := service.NewTemplateService(templateRepo, runRepo, runSvc, execMgr, ids)

	// HTTP server
	router := gin.Default()

	api := router.Group("/api/v1")
	api.Use(handler.Identity(&cfg.Auth))
	handler.NewTestCaseHandler(caseSvc).RegisterRoutes(api)
	handler.NewTestRunHandler(runSvc, locks).RegisterRoutes(api)
	handler.NewTemplateHandler(templateSvc, locks).RegisterRoutes(api)
	handler.NewWebSocketHandler(hub).RegisterRoutes(router)

	addr := cfg.Server.GetAddr()
	log.Printf("Starting testframe server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	if cfg.Database.Type != "sqlite" {
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Database.Type)
	}

	// Ensure the data directory exists
	if dir := filepath.Dir(cfg.Database.DSN); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	// SQLite allows one writer; concurrent deferred transactions on a pooled
	// database deadlock on the lock upgrade and fail with "database is
	// locked". A single connection serializes them instead.
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}
