package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	importhandler "github.com/FACorreiaa/smart-import/internal/domain/import/handler"
	"github.com/FACorreiaa/smart-import/internal/domain/import/parser"
	importrepo "github.com/FACorreiaa/smart-import/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/smart-import/internal/domain/import/service"
	"github.com/FACorreiaa/smart-import/internal/vision"

	"github.com/FACorreiaa/smart-import/pkg/config"
	"github.com/FACorreiaa/smart-import/pkg/cron"
	"github.com/FACorreiaa/smart-import/pkg/db"
	"github.com/FACorreiaa/smart-import/pkg/metrics"
	"github.com/FACorreiaa/smart-import/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	// Repositories
	ImportRepo  *importrepo.PostgresStore
	FileStorage storage.Storage

	// Services
	Metrics       *metrics.Metrics
	Extractor     *parser.Extractor
	Sessions      *importservice.SessionStore
	ImportService *importservice.ImportService
	Scheduler     *cron.Scheduler

	// Handlers
	ImportHandler *importhandler.ImportHandler
	Router        http.Handler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	// Initialize database
	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	// Initialize repositories
	if err := deps.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	// Initialize services
	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	// Initialize handlers
	if err := deps.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        int32(d.Config.Database.MaxConns),
		MinConns:        1,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if !d.Config.Database.RunMigrations {
		d.Logger.Info("database connected, migrations skipped")
		return nil
	}
	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() error {
	d.ImportRepo = importrepo.NewPostgresStore(d.DB.Pool)

	fileStorage, err := storage.NewLocalStorage(d.Config.Storage.LocalPath)
	if err != nil {
		return fmt.Errorf("failed to init file storage: %w", err)
	}
	d.FileStorage = fileStorage

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() error {
	d.Metrics = metrics.New()

	d.Extractor = parser.NewExtractor(d.Logger).WithMaxPDFPages(d.Config.Import.MaxPDFPages)
	if d.Config.VisionEnabled() {
		d.Extractor.WithDocumentReader(vision.NewClient(vision.Config{
			APIKey:            d.Config.Vision.APIKey,
			BaseURL:           d.Config.Vision.BaseURL,
			Model:             d.Config.Vision.Model,
			Timeout:           d.Config.Vision.Timeout,
			RequestsPerMinute: d.Config.Vision.RequestsPerMinute,
		}, d.Logger))
		d.Logger.Info("image import enabled",
			slog.String("provider", d.Config.Vision.Provider),
			slog.String("model", d.Config.Vision.Model))
	} else {
		d.Logger.Warn("VISION_API_KEY not set, image imports are disabled")
	}

	d.Sessions = importservice.NewSessionStore(d.Config.Import.SessionTTL)
	d.ImportService = importservice.NewImportService(d.ImportRepo, d.Extractor, d.Sessions, d.Logger).
		WithFileStorage(d.FileStorage).
		WithMaxUploadBytes(d.Config.Import.MaxUploadBytes)
	if d.Config.Observability.MetricsEnabled {
		d.ImportService.WithMetrics(d.Metrics)
	}

	d.Scheduler = cron.NewScheduler(d.ImportService, d.Config.Import.SweepSchedule, d.Logger)

	d.Logger.Info("services initialized")
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() error {
	d.ImportHandler = importhandler.NewImportHandler(d.ImportService, d.Logger).
		WithMaxUploadBytes(d.Config.Import.MaxUploadBytes)

	routerCfg := importhandler.RouterConfig{
		AllowedOrigins:     d.Config.Server.AllowedOrigins,
		RateLimitPerSecond: d.Config.Server.RateLimitPerSecond,
		RateLimitBurst:     d.Config.Server.RateLimitBurst,
		Health:             d.DB.Health,
	}
	if d.Config.Observability.MetricsEnabled {
		routerCfg.Metrics = d.Metrics.Handler()
	}
	d.Router = importhandler.NewRouter(d.ImportHandler, routerCfg, d.Logger)

	d.Logger.Info("handlers initialized")
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
