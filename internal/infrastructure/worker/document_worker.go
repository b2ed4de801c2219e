package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crestlinehotels/onboarding/internal/application/orchestrator"
	"github.com/crestlinehotels/onboarding/internal/application/port"
	"github.com/crestlinehotels/onboarding/internal/domain/entity"
)

// DocumentWorkerConfig holds configuration for the document worker
type DocumentWorkerConfig struct {
	PollInterval   time.Duration
	BatchSize      int
	ProcessTimeout time.Duration
	MaxAttempts    int
	RetryBackoff   time.Duration
}

// DefaultDocumentWorkerConfig returns default configuration
func DefaultDocumentWorkerConfig() DocumentWorkerConfig {
	return DocumentWorkerConfig{
		PollInterval:   10 * time.Second,
		BatchSize:      5,
		ProcessTimeout: 60 * time.Second,
		MaxAttempts:    5,
		RetryBackoff:   30 * time.Second,
	}
}

// DocumentWorker drains the document-generation queue: it renders each
// completed session's compliance forms, verifies the output is a readable
// document, and archives it. Jobs are keyed by data version, so a crash
// between attempts never produces a second document for the same data.
type DocumentWorker struct {
	config DocumentWorkerConfig

	jobs         port.DocumentJobRepository
	records      port.FormRecordRepository
	generator    port.DocumentGenerator
	inspector    port.DocumentInspector
	storage      port.FileStorage
	orchestrator orchestrator.Orchestrator
	logger       *zap.Logger

	mu             sync.RWMutex
	ctx            context.Context
	cancel         context.CancelFunc
	isRunning      bool
	processedCount int
	failedCount    int
}

// NewDocumentWorker creates a new document worker
func NewDocumentWorker(
	config DocumentWorkerConfig,
	jobs port.DocumentJobRepository,
	records port.FormRecordRepository,
	generator port.DocumentGenerator,
	inspector port.DocumentInspector,
	storage port.FileStorage,
	orch orchestrator.Orchestrator,
	logger *zap.Logger,
) *DocumentWorker {
	return &DocumentWorker{
		config:       config,
		jobs:         jobs,
		records:      records,
		generator:    generator,
		inspector:    inspector,
		storage:      storage,
		orchestrator: orch,
		logger:       logger,
	}
}

// Start begins the worker polling loop
func (w *DocumentWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("document worker already running")
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("DocumentWorker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize))

	go w.pollLoop()

	return nil
}

// Stop gracefully terminates the worker
func (w *DocumentWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}

	w.isRunning = false
	w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
	}

	w.logger.Info("DocumentWorker stopped",
		zap.Int("processed_count", w.processedCount),
		zap.Int("failed_count", w.failedCount))

	return nil
}

// Name returns the worker name for identification
func (w *DocumentWorker) Name() string {
	return "DocumentWorker"
}

func (w *DocumentWorker) pollLoop() {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.logger.Debug("Poll loop context cancelled")
			return

		case <-ticker.C:
			if err := w.processDueJobs(); err != nil {
				w.logger.Error("Failed to process document jobs", zap.Error(err))
			}
		}
	}
}

func (w *DocumentWorker) processDueJobs() error {
	ctx := w.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	due, err := w.jobs.GetDue(ctx, time.Now(), w.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to get due jobs: %w", err)
	}

	for _, job := range due {
		if err := w.processJob(ctx, job); err != nil {
			w.recordFailure(ctx, job, err)
			continue
		}

		w.mu.Lock()
		w.processedCount++
		w.mu.Unlock()

		w.maybeArchive(ctx, job.SessionID)
	}

	return nil
}

func (w *DocumentWorker) processJob(ctx context.Context, job *entity.DocumentJob) error {
	processCtx, cancel := context.WithTimeout(ctx, w.config.ProcessTimeout)
	defer cancel()

	w.logger.Info("Processing document job",
		zap.Int64("job_id", job.ID),
		zap.String("session_id", job.SessionID),
		zap.String("form_type", job.FormType),
		zap.Int("data_version", job.DataVersion))

	if err := w.jobs.MarkProcessing(processCtx, job.ID); err != nil {
		// Another poller claimed it first.
		return nil
	}

	record, err := w.records.Get(processCtx, job.EmployeeID, job.FormType)
	if err != nil {
		return fmt.Errorf("failed to load form record: %w", err)
	}
	if record == nil {
		return fmt.Errorf("no form record for employee %s form %s", job.EmployeeID, job.FormType)
	}

	var snapshot map[string]interface{}
	if err := json.Unmarshal([]byte(record.Data), &snapshot); err != nil {
		return fmt.Errorf("failed to decode form data: %w", err)
	}
	if record.Signature != "" {
		snapshot["signature"] = record.Signature
	}

	doc, err := w.generator.Generate(processCtx, job.FormType, snapshot)
	if err != nil {
		return fmt.Errorf("failed to generate document: %w", err)
	}

	pages, err := w.inspector.Inspect(processCtx, doc.Bytes)
	if err != nil {
		return fmt.Errorf("generated document failed inspection: %w", err)
	}

	outputPath := fmt.Sprintf("%s/%s_v%d%s",
		job.SessionID, strings.ToLower(job.FormType), job.DataVersion, doc.Extension)
	if err := w.storage.Save(processCtx, outputPath, doc.Bytes); err != nil {
		return fmt.Errorf("failed to archive document: %w", err)
	}

	if err := w.jobs.MarkCompleted(processCtx, job.ID, outputPath); err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}

	w.logger.Info("Document archived",
		zap.Int64("job_id", job.ID),
		zap.String("output_path", outputPath),
		zap.Int("pages", pages))

	return nil
}

func (w *DocumentWorker) recordFailure(ctx context.Context, job *entity.DocumentJob, cause error) {
	w.mu.Lock()
	w.failedCount++
	w.mu.Unlock()

	attempts := job.Attempts + 1
	terminal := attempts >= w.config.MaxAttempts

	// Exponential backoff: base * 2^(attempts-1).
	backoff := w.config.RetryBackoff << (attempts - 1)
	nextAttempt := time.Now().Add(backoff)

	w.logger.Error("Document job failed",
		zap.Int64("job_id", job.ID),
		zap.String("session_id", job.SessionID),
		zap.Int("attempts", attempts),
		zap.Bool("terminal", terminal),
		zap.Error(cause))

	if err := w.jobs.RecordFailure(ctx, job.ID, cause.Error(), nextAttempt, terminal); err != nil {
		w.logger.Error("Failed to record job failure", zap.Int64("job_id", job.ID), zap.Error(err))
		return
	}

	if terminal {
		reason := fmt.Sprintf("document generation failed for %s after %d attempts", job.FormType, attempts)
		if err := w.orchestrator.SetNeedsAttention(ctx, job.SessionID, reason); err != nil {
			w.logger.Error("Failed to flag session", zap.String("session_id", job.SessionID), zap.Error(err))
		}
	}
}

// maybeArchive marks the session's documents archived once its queue drains.
func (w *DocumentWorker) maybeArchive(ctx context.Context, sessionID string) {
	outstanding, err := w.jobs.CountOutstanding(ctx, sessionID)
	if err != nil {
		w.logger.Error("Failed to count outstanding jobs", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	if outstanding > 0 {
		return
	}

	if err := w.orchestrator.MarkDocumentsArchived(ctx, sessionID); err != nil {
		w.logger.Error("Failed to mark documents archived", zap.String("session_id", sessionID), zap.Error(err))
	}
}
