package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hadlocna/operations/internal/application/port"
	"github.com/hadlocna/operations/internal/domain/entity"
	"github.com/hadlocna/operations/internal/metrics"
	"github.com/hadlocna/operations/internal/progress"
)

const notifyTimeout = 15 * time.Second

// Scanner runs and previews scan invocations
type Scanner interface {
	Run(ctx context.Context, runID string, req entity.ScanRequest, sink progress.Sink) (*entity.ProcessingSummary, error)
	Preview(ctx context.Context, req entity.ScanRequest) (string, []entity.MessageSummary, error)
}

// ScanService wraps the orchestrator with run bookkeeping, metrics and notifications
type ScanService interface {
	// Run executes a scan and returns the aggregated summary
	Run(ctx context.Context, req entity.ScanRequest) (*entity.ProcessingSummary, error)

	// Stream starts a scan in the background and returns its event stream.
	// Cancelling ctx stops scheduling new candidates.
	Stream(ctx context.Context, req entity.ScanRequest) *progress.Stream

	// Preview lists the messages a scan would consider
	Preview(ctx context.Context, req entity.ScanRequest) (string, []entity.MessageSummary, error)

	// GetRun returns a recorded run, nil when unknown
	GetRun(ctx context.Context, id string) (*entity.ScanRun, error)

	// RecentRuns returns the latest recorded runs, newest first
	RecentRuns(ctx context.Context, limit int) ([]*entity.ScanRun, error)
}

// ScanServiceConfig holds scan service settings
type ScanServiceConfig struct {
	// SerialStreams processes streamed scans one candidate at a time so
	// progress lines arrive in candidate order
	SerialStreams bool
}

type scanServiceImpl struct {
	config   ScanServiceConfig
	scanner  Scanner
	runRepo  port.ScanRunRepository
	notifier port.Notifier
	logger   *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewScanService creates a new ScanService. notifier may be nil.
func NewScanService(
	scanner Scanner,
	runRepo port.ScanRunRepository,
	notifier port.Notifier,
	cfg ScanServiceConfig,
	logger *zap.Logger,
) ScanService {
	return &scanServiceImpl{
		config:   cfg,
		scanner:  scanner,
		runRepo:  runRepo,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (s *scanServiceImpl) Run(ctx context.Context, req entity.ScanRequest) (*entity.ProcessingSummary, error) {
	if req.Trigger == "" {
		req.Trigger = entity.TriggerAPI
	}
	return s.execute(ctx, s.begin(ctx, req), req, progress.NewLogSink(s.logger))
}

func (s *scanServiceImpl) Stream(ctx context.Context, req entity.ScanRequest) *progress.Stream {
	if req.Trigger == "" {
		req.Trigger = entity.TriggerStream
	}
	if s.config.SerialStreams {
		req.Serial = true
	}
	run := s.begin(ctx, req)
	stream := progress.NewStream(ctx, run.ID, progress.DefaultBuffer)

	go func() {
		summary, err := s.execute(ctx, run, req, stream)
		if err != nil {
			stream.Fail(err)
			return
		}
		stream.Complete(summary)
	}()

	return stream
}

func (s *scanServiceImpl) Preview(ctx context.Context, req entity.ScanRequest) (string, []entity.MessageSummary, error) {
	return s.scanner.Preview(ctx, req)
}

func (s *scanServiceImpl) GetRun(ctx context.Context, id string) (*entity.ScanRun, error) {
	return s.runRepo.GetByID(ctx, id)
}

func (s *scanServiceImpl) RecentRuns(ctx context.Context, limit int) ([]*entity.ScanRun, error) {
	return s.runRepo.ListRecent(ctx, limit)
}

// begin records a RUNNING run. A bookkeeping failure does not block the scan.
func (s *scanServiceImpl) begin(ctx context.Context, req entity.ScanRequest) *entity.ScanRun {
	run := &entity.ScanRun{
		ID:        s.newID(),
		Trigger:   req.Trigger,
		DateFrom:  req.DateFrom,
		Status:    entity.RunStatusRunning,
		StartedAt: s.now(),
	}

	if err := s.runRepo.Create(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Warn("Failed to record scan run",
			zap.String("run_id", run.ID),
			zap.Error(err))
	}

	s.logger.Info("Scan started",
		zap.String("run_id", run.ID),
		zap.String("trigger", run.Trigger))
	return run
}

func (s *scanServiceImpl) execute(ctx context.Context, run *entity.ScanRun, req entity.ScanRequest, sink progress.Sink) (*entity.ProcessingSummary, error) {
	summary, err := s.scanner.Run(ctx, run.ID, req, sink)
	s.finish(ctx, run, summary, err)
	return summary, err
}

func (s *scanServiceImpl) finish(ctx context.Context, run *entity.ScanRun, summary *entity.ProcessingSummary, runErr error) {
	finishedAt := s.now()
	run.FinishedAt = &finishedAt

	switch {
	case runErr != nil:
		run.Status = entity.RunStatusFailed
		run.Error = runErr.Error()
	case summary.Cancelled:
		run.Status = entity.RunStatusCancelled
	default:
		run.Status = entity.RunStatusCompleted
	}

	if summary != nil {
		run.Query = summary.Query
		run.Processed = len(summary.Processed)
		run.Skipped = len(summary.Skipped)
		run.Errors = len(summary.Errors)
	}

	// The caller may already be gone; bookkeeping still has to land.
	bg := context.WithoutCancel(ctx)

	if err := s.runRepo.Finish(bg, run); err != nil {
		s.logger.Warn("Failed to update scan run",
			zap.String("run_id", run.ID),
			zap.Error(err))
	}

	metrics.RecordRun(run, summary, finishedAt.Sub(run.StartedAt))

	fields := []zap.Field{
		zap.String("run_id", run.ID),
		zap.String("status", run.Status),
		zap.Int("processed", run.Processed),
		zap.Int("skipped", run.Skipped),
		zap.Int("errors", run.Errors),
		zap.Duration("duration", finishedAt.Sub(run.StartedAt)),
	}
	if runErr != nil {
		level := s.logger.Error
		if errors.Is(runErr, entity.ErrNoCredential) {
			level = s.logger.Warn
		}
		level("Scan failed", append(fields, zap.Error(runErr))...)
	} else {
		s.logger.Info("Scan finished", fields...)
	}

	if s.notifier == nil {
		return
	}
	notifyCtx, cancel := context.WithTimeout(bg, notifyTimeout)
	defer cancel()
	if err := s.notifier.NotifyRun(notifyCtx, run, summary); err != nil {
		s.logger.Warn("Failed to send run notification",
			zap.String("run_id", run.ID),
			zap.Error(err))
	}
}

// Verify interface compliance
var _ ScanService = (*scanServiceImpl)(nil)
