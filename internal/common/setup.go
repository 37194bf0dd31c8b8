package common

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"note-option-ledger-go/internal/database"
	"note-option-ledger-go/internal/ledger"
	"note-option-ledger-go/internal/metrics"
	"note-option-ledger-go/internal/models"
	"note-option-ledger-go/internal/valuation"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// init loads environment variables from .env file if it exists
func init() {
	// Try to load .env file - if it doesn't exist, that's okay
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService *database.Service
	Engine    *ledger.Engine
	Settings  *models.ProtocolSettings
}

func InitializeLogger(cfg models.LoggingConfig) (*zap.Logger, func()) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		log.Printf("Unknown LOG_LEVEL %q, using info\n", cfg.Level)
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	var rotator *lumberjack.Logger
	if cfg.File != "" {
		rotator = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(zapCfg.EncoderConfig),
			zapcore.AddSync(rotator),
			zapCfg.Level,
		)
		logger = logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, fileCore)
		}))
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
		if rotator != nil {
			if err := rotator.Close(); err != nil {
				log.Printf("Failed to close log file: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices opens the database and builds the ledger engine from the
// protocol file. The database backs the records and every collaborator.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	settings, err := LoadProtocolSettings(cfg.ProtocolFile)
	if err != nil {
		return nil, err
	}

	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	engine, err := NewEngine(dbService, settings, metrics.Ledger())
	if err != nil {
		dbService.Close()
		return nil, err
	}

	zap.L().Info("Ledger engine ready",
		zap.String("custody_account", engine.CustodyAccount()),
		zap.String("collection_id", settings.CollectionId))

	return &Services{
		DbService: dbService,
		Engine:    engine,
		Settings:  settings,
	}, nil
}

// NewEngine builds an engine over a SQLite service using the protocol settings.
func NewEngine(dbService *database.Service, settings *models.ProtocolSettings, m *metrics.LedgerMetrics) (*ledger.Engine, error) {
	var policy valuation.Policy
	if settings.NavExpression != "" {
		exprPolicy, err := valuation.NewExprPolicy(settings.NavExpression)
		if err != nil {
			return nil, fmt.Errorf("invalid nav_expression: %w", err)
		}
		zap.L().Info("Using NAV expression", zap.String("expression", exprPolicy.Expression()))
		policy = exprPolicy
	}

	assets := dbService.Assets()
	return ledger.NewEngine(dbService, ledger.Collaborators{
		Custody: assets,
		Tokens:  assets,
		Claims:  dbService.Claims(),
		Storage: assets,
	}, ledger.Options{
		AllowedDurations:   settings.AllowedDurations,
		CustodyAccount:     settings.CustodyAccount,
		Claim:              settings.Claim,
		OptionStorageUnits: settings.OptionStorageUnits,
		Valuation:          policy,
		Metrics:            m,
	})
}

func (cs *Services) Close() {
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}

var exit = os.Exit

// Exit logs the error and terminates a command-line tool.
func Exit(logger *zap.Logger, msg string, err error) {
	logger.Error(msg, zap.Error(err))
	if syncErr := logger.Sync(); syncErr != nil && !isIgnorableSyncError(syncErr) {
		fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", syncErr)
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	exit(1)
}

// ConfigError reports a configuration failure before the configured logger
// exists. A bootstrap production logger is installed globally first.
func ConfigError(err error) {
	logger, buildErr := zap.NewProduction()
	if buildErr != nil {
		logger = zap.NewNop()
	}
	zap.ReplaceGlobals(logger)
	Exit(logger, "Failed to load configuration", err)
}
