package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crestlinehotels/onboarding/internal/application/orchestrator"
)

// SweepWorkerConfig holds configuration for the expiry sweep worker
type SweepWorkerConfig struct {
	Interval time.Duration
}

// DefaultSweepWorkerConfig returns default configuration
func DefaultSweepWorkerConfig() SweepWorkerConfig {
	return SweepWorkerConfig{
		Interval: 1 * time.Hour,
	}
}

// SweepWorker periodically expires sessions past their deadline.
type SweepWorker struct {
	config       SweepWorkerConfig
	orchestrator orchestrator.Orchestrator
	logger       *zap.Logger

	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	isRunning bool
}

// NewSweepWorker creates a new expiry sweep worker
func NewSweepWorker(config SweepWorkerConfig, orch orchestrator.Orchestrator, logger *zap.Logger) *SweepWorker {
	return &SweepWorker{
		config:       config,
		orchestrator: orch,
		logger:       logger,
	}
}

// Start begins the sweep loop
func (w *SweepWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("sweep worker already running")
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("SweepWorker started", zap.Duration("interval", w.config.Interval))

	go w.sweepLoop()

	return nil
}

// Stop gracefully terminates the worker
func (w *SweepWorker) Stop() error {
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

	w.logger.Info("SweepWorker stopped")
	return nil
}

// Name returns the worker name for identification
func (w *SweepWorker) Name() string {
	return "SweepWorker"
}

func (w *SweepWorker) sweepLoop() {
	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.logger.Debug("Sweep loop context cancelled")
			return

		case <-ticker.C:
			count, err := w.orchestrator.ExpireStaleSessions(w.ctx)
			if err != nil {
				w.logger.Error("Expiry sweep failed", zap.Error(err))
				continue
			}
			if count > 0 {
				w.logger.Info("Expiry sweep completed", zap.Int("expired", count))
			}
		}
	}
}
