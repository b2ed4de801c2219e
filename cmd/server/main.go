package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/crestlinehotels/onboarding/internal/application/dispatcher"
	"github.com/crestlinehotels/onboarding/internal/application/orchestrator"
	"github.com/crestlinehotels/onboarding/internal/application/registry"
	"github.com/crestlinehotels/onboarding/internal/compliance"
	"github.com/crestlinehotels/onboarding/internal/config"
	"github.com/crestlinehotels/onboarding/internal/infrastructure/auth"
	"github.com/crestlinehotels/onboarding/internal/infrastructure/document"
	"github.com/crestlinehotels/onboarding/internal/infrastructure/notify"
	"github.com/crestlinehotels/onboarding/internal/infrastructure/persistence/repository"
	"github.com/crestlinehotels/onboarding/internal/infrastructure/persistence/sqlite"
	"github.com/crestlinehotels/onboarding/internal/infrastructure/storage"
	"github.com/crestlinehotels/onboarding/internal/infrastructure/worker"
	httpadapter "github.com/crestlinehotels/onboarding/internal/interfaces/http"
	"github.com/crestlinehotels/onboarding/pkg/database"
	"github.com/crestlinehotels/onboarding/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	// Local overrides from .env, if present.
	_ = gotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting onboarding workflow service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Database
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.Documents.ArchiveDir, 0755); err != nil {
		logger.Fatal("Failed to create archive directory", zap.Error(err))
	}

	// Persistence
	txManager := sqlite.NewDB(db.DB, logger)
	sessionRepo := repository.NewSessionRepository(db.DB, logger)
	formRecordRepo := repository.NewFormRecordRepository(db.DB, logger)
	updateSessionRepo := repository.NewUpdateSessionRepository(db.DB, logger)
	auditRepo := repository.NewAuditRepository(db.DB, logger)
	documentJobRepo := repository.NewDocumentJobRepository(db.DB, logger)

	kvLogger := &zapKVAdapter{logger: logger}

	// Event dispatcher
	eventDispatcher := dispatcher.NewDispatcher(dispatcher.WithLogger(kvLogger))
	defer eventDispatcher.Close()

	// Compliance gate
	calendar := compliance.NewCalendar(cfg.Onboarding.Holidays)
	gate := compliance.NewGate(calendar, compliance.WithI9Window(cfg.Onboarding.I9WindowDays))

	// Form registry and update service
	formRegistry := registry.NewRegistry(cfg.Onboarding.StateForms)
	updateService := registry.NewUpdateService(
		formRegistry,
		formRecordRepo,
		updateSessionRepo,
		auditRepo,
		txManager,
		eventDispatcher,
		registry.UpdateServiceConfig{
			DefaultTokenTTL: cfg.Onboarding.UpdateTokenTTL,
			TokenTTLByForm:  cfg.Onboarding.UpdateTokenTTLByForm,
		},
		kvLogger,
	)

	// Workflow orchestrator
	orch := orchestrator.New(
		sessionRepo,
		formRecordRepo,
		updateSessionRepo,
		auditRepo,
		documentJobRepo,
		txManager,
		gate,
		formRegistry,
		eventDispatcher,
		orchestrator.Config{
			SessionTTL:     cfg.Onboarding.SessionTTL,
			StaleBatchSize: cfg.Onboarding.StaleBatchSize,
		},
		kvLogger,
	)

	// Outbound notifications, when mail is configured.
	if cfg.SMTP.Host != "" {
		mailer, err := notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize mailer", zap.Error(err))
		}

		addresses := cfg.Auth.Addresses
		resolver := func(actorID string) (string, bool) {
			addr, ok := addresses[actorID]
			return addr, ok
		}
		eventNotifier := notify.NewEventNotifier(mailer, sessionRepo, resolver, cfg.SMTP.HRAddress, logger)
		eventNotifier.RegisterHandlers(eventDispatcher)
	} else {
		logger.Warn("SMTP not configured, notifications disabled")
	}

	// Document pipeline
	fileStorage := storage.NewLocalFileStorage(cfg.Documents.ArchiveDir, logger)
	generator := document.NewExcelGenerator(cfg.Documents.CompanyName, logger)
	inspector := document.NewInspector(logger)

	// Background workers
	workerManager := worker.NewWorkerManager(logger)
	workerManager.Register(worker.NewDocumentWorker(
		worker.DocumentWorkerConfig{
			PollInterval:   cfg.Documents.PollInterval,
			BatchSize:      cfg.Documents.BatchSize,
			ProcessTimeout: 60 * time.Second,
			MaxAttempts:    cfg.Documents.MaxAttempts,
			RetryBackoff:   cfg.Documents.RetryBackoff,
		},
		documentJobRepo,
		formRecordRepo,
		generator,
		inspector,
		fileStorage,
		orch,
		logger,
	))
	workerManager.Register(worker.NewSweepWorker(
		worker.SweepWorkerConfig{Interval: cfg.Onboarding.SweepInterval},
		orch,
		logger,
	))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := workerManager.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}

	// Credentials
	credentials := make([]auth.StaticCredential, 0, len(cfg.Auth.Credentials))
	for _, c := range cfg.Auth.Credentials {
		credentials = append(credentials, auth.StaticCredential{
			Token:      c.Token,
			ActorID:    c.ActorID,
			Role:       c.Role,
			PropertyID: c.PropertyID,
		})
	}
	verifier := auth.NewStaticVerifier(credentials, logger)

	// HTTP server
	server := httpadapter.NewServer(
		httpadapter.ServerConfig{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		orch,
		updateService,
		auditRepo,
		verifier,
		kvLogger,
	)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(ctx)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}

	cancel()

	if err := workerManager.StopAll(); err != nil {
		logger.Error("Worker shutdown error", zap.Error(err))
	}
	if err := server.Stop(); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}

// zapKVAdapter adapts zap.Logger to the key-value Logger interfaces used by
// the application layer.
type zapKVAdapter struct {
	logger *zap.Logger
}

func (a *zapKVAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapKVAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
