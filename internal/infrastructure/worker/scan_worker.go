package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hadlocna/operations/internal/domain/entity"
)

// ScanRunner executes one scan invocation
type ScanRunner interface {
	Run(ctx context.Context, req entity.ScanRequest) (*entity.ProcessingSummary, error)
}

// ScanWorkerConfig holds configuration for the scheduled scan worker
type ScanWorkerConfig struct {
	Interval   time.Duration
	RunOnStart bool
}

// DefaultScanWorkerConfig returns default configuration
func DefaultScanWorkerConfig() ScanWorkerConfig {
	return ScanWorkerConfig{
		Interval: time.Hour,
	}
}

// ScanWorker triggers a mailbox scan on a fixed interval. Ticks that fire
// while a scan is still running are dropped.
type ScanWorker struct {
	config ScanWorkerConfig
	runner ScanRunner
	logger *zap.Logger

	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
	runs      int
	failures  int
	lastRun   time.Time
	lastError error
}

// NewScanWorker creates a new scheduled scan worker
func NewScanWorker(config ScanWorkerConfig, runner ScanRunner, logger *zap.Logger) *ScanWorker {
	if config.Interval <= 0 {
		config.Interval = DefaultScanWorkerConfig().Interval
	}
	return &ScanWorker{
		config: config,
		runner: runner,
		logger: logger,
	}
}

// Start begins the schedule loop
func (w *ScanWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("scan worker already running")
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("ScanWorker started",
		zap.Duration("interval", w.config.Interval),
		zap.Bool("run_on_start", w.config.RunOnStart))

	go w.loop(ctx)

	return nil
}

// Stop cancels the schedule and waits for an in-flight scan to wind down.
// Candidates already being processed finish; no new ones are started.
func (w *ScanWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}

	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.logger.Info("ScanWorker stopped",
		zap.Int("runs", w.runs),
		zap.Int("failures", w.failures))

	return nil
}

// Name returns the worker name for identification
func (w *ScanWorker) Name() string {
	return "ScanWorker"
}

// Stats returns the number of scheduled runs, how many failed, and the last error
func (w *ScanWorker) Stats() (runs, failures int, lastErr error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.runs, w.failures, w.lastError
}

func (w *ScanWorker) loop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	if w.config.RunOnStart {
		w.scan(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Schedule loop context cancelled")
			return

		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

func (w *ScanWorker) scan(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	summary, err := w.runner.Run(ctx, entity.ScanRequest{Trigger: entity.TriggerScheduled})

	w.mu.Lock()
	w.runs++
	w.lastRun = time.Now()
	w.lastError = err
	if err != nil {
		w.failures++
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("Scheduled scan failed", zap.Error(err))
		return
	}

	w.logger.Info("Scheduled scan completed",
		zap.String("run_id", summary.RunID),
		zap.Int("processed", len(summary.Processed)),
		zap.Int("skipped", len(summary.Skipped)),
		zap.Int("errors", len(summary.Errors)))
}
