package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/receipt-ledger/internal/domain/categorization"
	"github.com/FACorreiaa/receipt-ledger/internal/domain/extraction"
	"github.com/FACorreiaa/receipt-ledger/internal/domain/receipt/handler"
	"github.com/FACorreiaa/receipt-ledger/internal/domain/receipt/repository"
	"github.com/FACorreiaa/receipt-ledger/internal/domain/receipt/service"
	"github.com/FACorreiaa/receipt-ledger/pkg/config"
	"github.com/FACorreiaa/receipt-ledger/pkg/cron"
	"github.com/FACorreiaa/receipt-ledger/pkg/db"
	"github.com/FACorreiaa/receipt-ledger/pkg/interceptors"
	"github.com/FACorreiaa/receipt-ledger/pkg/metrics"
	"github.com/FACorreiaa/receipt-ledger/pkg/storage"
	"github.com/FACorreiaa/receipt-ledger/pkg/textract"
)

const accessTokenTTL = 24 * time.Hour

// Dependencies holds all application dependencies
type Dependencies struct {
	Config  *config.Config
	DB      *db.DB
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Repositories
	LedgerRepo repository.LedgerRepository

	// Services
	TokenManager   *interceptors.TokenManager
	FileStorage    *storage.LocalStorage
	TextRouter     textract.Router
	Engine         *extraction.Engine
	ReceiptService *service.ReceiptService
	Scheduler      *cron.Scheduler

	// Handlers
	ReceiptHandler *handler.ReceiptHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}

	// Initialize database
	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	// Initialize repositories
	deps.LedgerRepo = repository.NewPostgresLedgerRepository(deps.DB.Pool)

	// Initialize services
	if err := deps.initServices(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	// Initialize handlers
	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	// Run migrations
	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() error {
	d.TokenManager = interceptors.NewTokenManager([]byte(d.Config.Auth.JWTSecret), accessTokenTTL)

	fileStorage, err := storage.NewLocalStorage(d.Config.Storage.LocalPath)
	if err != nil {
		return fmt.Errorf("failed to init file storage: %w", err)
	}
	d.FileStorage = fileStorage

	d.TextRouter = NewTextRouter(d.Config.Extraction, d.Logger)
	d.Engine = extraction.NewEngine(EngineConfig(d.Config.Extraction), d.Logger)

	d.ReceiptService = service.NewReceiptService(service.Config{
		Repo:            d.LedgerRepo,
		Storage:         d.FileStorage,
		Text:            d.TextRouter,
		Engine:          d.Engine,
		Labels:          categorization.NewLabelNormalizer(),
		Metrics:         d.Metrics,
		DefaultCurrency: d.Config.Extraction.DefaultCurrency,
		Logger:          d.Logger,
	})

	d.Scheduler = cron.NewScheduler(d.FileStorage, cron.Config{
		Spec:          d.Config.Storage.RetentionCron,
		RetentionDays: d.Config.Storage.RetentionDays,
	}, d.Logger)

	d.Logger.Info("services initialized")
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() {
	health := func(ctx context.Context) error { return d.DB.Health(ctx) }
	d.ReceiptHandler = handler.NewReceiptHandler(d.ReceiptService, d.Config.Server.MaxUploadBytes, health, d.Logger)

	d.Logger.Info("handlers initialized")
}

// NewTextRouter wires the PDF reader and the OCR command.
func NewTextRouter(cfg config.ExtractionConfig, logger *slog.Logger) textract.Router {
	return textract.Router{
		PDF: textract.NewPDFExtractor(),
		Image: textract.NewCommandOCR(textract.OCRConfig{
			Command:   cfg.OCRCommand,
			Language:  cfg.OCRLanguage,
			PageModes: cfg.OCRPageModes,
		}, nil, logger),
	}
}

// EngineConfig maps extraction settings onto the engine. Zero bounds keep
// the engine defaults.
func EngineConfig(cfg config.ExtractionConfig) extraction.Config {
	ec := extraction.DefaultConfig()
	override := func(b *extraction.AmountBound, max float64) {
		if max > 0 {
			b.Max = decimal.NewFromFloat(max)
		}
	}
	override(&ec.Limits.Receipt, cfg.MaxReceiptAmount)
	override(&ec.Limits.Table, cfg.MaxTableAmount)
	override(&ec.Limits.Manual, cfg.MaxManualAmount)
	override(&ec.Limits.Generic, cfg.MaxGenericAmount)
	if cfg.MaxReceiptItems > 0 {
		ec.MaxReceiptItems = cfg.MaxReceiptItems
	}
	if cfg.InlineThreshold > 0 {
		ec.InlineThreshold = cfg.InlineThreshold
	}
	if t := categorization.TransactionType(cfg.DefaultType); t.Valid() {
		ec.Keywords.Fallback = t
	}
	return ec
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
