package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Worker is a background loop owned by the container
type Worker interface {
	Start(ctx context.Context) error
	Stop() error
	Name() string
}

// Status describes one registered worker
type Status struct {
	Name    string `json:"name"`
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

type managed struct {
	worker   Worker
	started  bool
	startErr error
}

// WorkerManager starts registered workers together and stops the started
// ones in reverse registration order.
type WorkerManager struct {
	mu      sync.RWMutex
	workers []*managed
	running bool
	cancel  context.CancelFunc
	logger  *zap.Logger
}

// NewWorkerManager creates a new worker manager
func NewWorkerManager(logger *zap.Logger) *WorkerManager {
	return &WorkerManager{logger: logger}
}

// Register adds a worker. Workers registered after StartAll are not started.
func (m *WorkerManager) Register(w Worker) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.workers = append(m.workers, &managed{worker: w})
	m.logger.Info("Worker registered",
		zap.String("worker_name", w.Name()),
		zap.Int("total_workers", len(m.workers)))
}

// StartAll starts every registered worker. A worker that fails to start is
// recorded and skipped; the others keep running.
func (m *WorkerManager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("workers already running")
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.running = true

	m.logger.Info("Starting workers", zap.Int("count", len(m.workers)))

	for _, mw := range m.workers {
		if err := mw.worker.Start(ctx); err != nil {
			mw.startErr = err
			m.logger.Error("Failed to start worker",
				zap.String("worker_name", mw.worker.Name()),
				zap.Error(err))
			continue
		}
		mw.started = true
		mw.startErr = nil
	}

	return nil
}

// StopAll stops started workers in reverse order and joins their errors
func (m *WorkerManager) StopAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false

	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}

	var errs []error
	for i := len(m.workers) - 1; i >= 0; i-- {
		mw := m.workers[i]
		if !mw.started {
			continue
		}
		mw.started = false

		if err := mw.worker.Stop(); err != nil {
			m.logger.Error("Failed to stop worker",
				zap.String("worker_name", mw.worker.Name()),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", mw.worker.Name(), err))
			continue
		}
		m.logger.Info("Worker stopped", zap.String("worker_name", mw.worker.Name()))
	}

	return errors.Join(errs...)
}

// Count returns the number of registered workers
func (m *WorkerManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workers)
}

// Running reports whether StartAll has been called without a matching StopAll
func (m *WorkerManager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Snapshot lists every registered worker with its state
func (m *WorkerManager) Snapshot() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Status, 0, len(m.workers))
	for _, mw := range m.workers {
		s := Status{Name: mw.worker.Name(), Running: mw.started}
		if mw.startErr != nil {
			s.Error = mw.startErr.Error()
		}
		out = append(out, s)
	}
	return out
}
