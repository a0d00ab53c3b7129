package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hadlocna/operations/internal/application/port"
	"github.com/hadlocna/operations/internal/domain/entity"
	"github.com/hadlocna/operations/internal/domain/event"
	"github.com/hadlocna/operations/internal/progress"
)

type mockScanner struct {
	runFunc     func(ctx context.Context, runID string, req entity.ScanRequest, sink progress.Sink) (*entity.ProcessingSummary, error)
	previewFunc func(ctx context.Context, req entity.ScanRequest) (string, []entity.MessageSummary, error)
}

func (m *mockScanner) Run(ctx context.Context, runID string, req entity.ScanRequest, sink progress.Sink) (*entity.ProcessingSummary, error) {
	return m.runFunc(ctx, runID, req, sink)
}

func (m *mockScanner) Preview(ctx context.Context, req entity.ScanRequest) (string, []entity.MessageSummary, error) {
	if m.previewFunc != nil {
		return m.previewFunc(ctx, req)
	}
	return "", nil, nil
}

type mockScanRunRepo struct {
	mu        sync.Mutex
	runs      map[string]entity.ScanRun
	createErr error
}

func newMockScanRunRepo() *mockScanRunRepo {
	return &mockScanRunRepo{runs: make(map[string]entity.ScanRun)}
}

func (m *mockScanRunRepo) Create(ctx context.Context, run *entity.ScanRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.runs[run.ID] = *run
	return nil
}

func (m *mockScanRunRepo) Finish(ctx context.Context, run *entity.ScanRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		return fmt.Errorf("scan run not found: %s", run.ID)
	}
	m.runs[run.ID] = *run
	return nil
}

func (m *mockScanRunRepo) GetByID(ctx context.Context, id string) (*entity.ScanRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

func (m *mockScanRunRepo) ListRecent(ctx context.Context, limit int) ([]*entity.ScanRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var runs []*entity.ScanRun
	for _, run := range m.runs {
		run := run
		runs = append(runs, &run)
	}
	return runs, nil
}

type mockNotifier struct {
	mu    sync.Mutex
	calls []entity.ScanRun
	err   error
}

func (m *mockNotifier) NotifyRun(ctx context.Context, run *entity.ScanRun, summary *entity.ProcessingSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, *run)
	return m.err
}

func newTestScanService(scanner Scanner, repo *mockScanRunRepo, notifier port.Notifier) *scanServiceImpl {
	svc := NewScanService(scanner, repo, notifier, ScanServiceConfig{SerialStreams: true}, zap.NewNop()).(*scanServiceImpl)
	svc.newID = func() string { return "run-1" }
	return svc
}

func summaryWith(processed, skipped, errs int) *entity.ProcessingSummary {
	s := entity.NewProcessingSummary("run-1")
	s.Query = "has:attachment filename:pdf after:1"
	for i := 0; i < processed; i++ {
		s.Add(entity.PipelineResult{Status: entity.StatusSuccess})
	}
	for i := 0; i < skipped; i++ {
		s.Add(entity.PipelineResult{Status: entity.StatusSkipped})
	}
	for i := 0; i < errs; i++ {
		s.Add(entity.PipelineResult{Status: entity.StatusError})
	}
	return s
}

func TestScanService_RunCompleted(t *testing.T) {
	repo := newMockScanRunRepo()
	notifier := &mockNotifier{}
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	var gotRunID string
	scanner := &mockScanner{
		runFunc: func(ctx context.Context, runID string, req entity.ScanRequest, sink progress.Sink) (*entity.ProcessingSummary, error) {
			gotRunID = runID
			assert.False(t, req.Serial)
			assert.Equal(t, &from, req.DateFrom)
			assert.NotNil(t, sink)

			stored, _ := repo.GetByID(ctx, runID)
			require.NotNil(t, stored)
			assert.Equal(t, entity.RunStatusRunning, stored.Status)
			return summaryWith(2, 1, 1), nil
		},
	}

	svc := newTestScanService(scanner, repo, notifier)
	summary, err := svc.Run(context.Background(), entity.ScanRequest{DateFrom: &from})
	require.NoError(t, err)
	assert.Len(t, summary.Processed, 2)
	assert.Equal(t, "run-1", gotRunID)

	run, err := svc.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, entity.RunStatusCompleted, run.Status)
	assert.Equal(t, entity.TriggerAPI, run.Trigger)
	assert.Equal(t, summary.Query, run.Query)
	assert.Equal(t, 2, run.Processed)
	assert.Equal(t, 1, run.Skipped)
	assert.Equal(t, 1, run.Errors)
	assert.NotNil(t, run.FinishedAt)

	require.Len(t, notifier.calls, 1)
	assert.Equal(t, entity.RunStatusCompleted, notifier.calls[0].Status)
}

func TestScanService_RunFailed(t *testing.T) {
	repo := newMockScanRunRepo()
	notifier := &mockNotifier{}
	authErr := fmt.Errorf("%w: %w", entity.ErrAuth, entity.ErrNoCredential)

	scanner := &mockScanner{
		runFunc: func(ctx context.Context, runID string, req entity.ScanRequest, sink progress.Sink) (*entity.ProcessingSummary, error) {
			return nil, authErr
		},
	}

	svc := newTestScanService(scanner, repo, notifier)
	summary, err := svc.Run(context.Background(), entity.ScanRequest{Trigger: entity.TriggerScheduled})
	assert.Nil(t, summary)
	assert.ErrorIs(t, err, entity.ErrAuth)

	run, _ := repo.GetByID(context.Background(), "run-1")
	require.NotNil(t, run)
	assert.Equal(t, entity.RunStatusFailed, run.Status)
	assert.Equal(t, entity.TriggerScheduled, run.Trigger)
	assert.Equal(t, authErr.Error(), run.Error)

	require.Len(t, notifier.calls, 1)
	assert.Equal(t, entity.RunStatusFailed, notifier.calls[0].Status)
}

func TestScanService_RunCancelled(t *testing.T) {
	repo := newMockScanRunRepo()
	scanner := &mockScanner{
		runFunc: func(ctx context.Context, runID string, req entity.ScanRequest, sink progress.Sink) (*entity.ProcessingSummary, error) {
			s := summaryWith(1, 0, 0)
			s.Cancelled = true
			return s, nil
		},
	}

	svc := newTestScanService(scanner, repo, nil)
	_, err := svc.Run(context.Background(), entity.ScanRequest{})
	require.NoError(t, err)

	run, _ := repo.GetByID(context.Background(), "run-1")
	require.NotNil(t, run)
	assert.Equal(t, entity.RunStatusCancelled, run.Status)
}

func TestScanService_BookkeepingAndNotifyFailuresDoNotFailRun(t *testing.T) {
	repo := newMockScanRunRepo()
	repo.createErr = errors.New("disk full")
	notifier := &mockNotifier{err: errors.New("lark unavailable")}

	scanner := &mockScanner{
		runFunc: func(ctx context.Context, runID string, req entity.ScanRequest, sink progress.Sink) (*entity.ProcessingSummary, error) {
			return summaryWith(1, 0, 0), nil
		},
	}

	svc := newTestScanService(scanner, repo, notifier)
	summary, err := svc.Run(context.Background(), entity.ScanRequest{})
	require.NoError(t, err)
	assert.Len(t, summary.Processed, 1)
	assert.Len(t, notifier.calls, 1)
}

func TestScanService_StreamCompletes(t *testing.T) {
	repo := newMockScanRunRepo()
	scanner := &mockScanner{
		runFunc: func(ctx context.Context, runID string, req entity.ScanRequest, sink progress.Sink) (*entity.ProcessingSummary, error) {
			assert.True(t, req.Serial)
			sink.Log("Authenticating")
			sink.Log("Found 1 candidate message(s)")
			return summaryWith(1, 0, 0), nil
		},
	}

	svc := newTestScanService(scanner, repo, &mockNotifier{})
	stream := svc.Stream(context.Background(), entity.ScanRequest{})
	assert.Equal(t, "run-1", stream.RunID())

	var events []event.Event
	for e := range stream.Events() {
		events = append(events, e)
	}

	require.Len(t, events, 3)
	assert.Equal(t, event.TypeLog, events[0].Type)
	assert.Equal(t, "Authenticating", events[0].Message)
	assert.Equal(t, event.TypeLog, events[1].Type)
	assert.Equal(t, event.TypeComplete, events[2].Type)
	require.NotNil(t, events[2].Summary)
	assert.Len(t, events[2].Summary.Processed, 1)

	run, _ := repo.GetByID(context.Background(), "run-1")
	require.NotNil(t, run)
	assert.Equal(t, entity.TriggerStream, run.Trigger)
	assert.Equal(t, entity.RunStatusCompleted, run.Status)
}

func TestScanService_StreamFails(t *testing.T) {
	repo := newMockScanRunRepo()
	scanner := &mockScanner{
		runFunc: func(ctx context.Context, runID string, req entity.ScanRequest, sink progress.Sink) (*entity.ProcessingSummary, error) {
			return nil, fmt.Errorf("%w: archive root folder is not set", entity.ErrConfiguration)
		},
	}

	svc := newTestScanService(scanner, repo, &mockNotifier{})
	stream := svc.Stream(context.Background(), entity.ScanRequest{})

	var events []event.Event
	for e := range stream.Events() {
		events = append(events, e)
	}

	require.Len(t, events, 1)
	assert.Equal(t, event.TypeError, events[0].Type)
	assert.Contains(t, events[0].Message, "archive root folder is not set")
}

func TestScanService_StreamDisconnectCancelsScheduling(t *testing.T) {
	repo := newMockScanRunRepo()
	started := make(chan struct{})
	finished := make(chan struct{})

	scanner := &mockScanner{
		runFunc: func(ctx context.Context, runID string, req entity.ScanRequest, sink progress.Sink) (*entity.ProcessingSummary, error) {
			close(started)
			<-ctx.Done()
			sink.Log("after disconnect")
			s := summaryWith(0, 0, 0)
			s.Cancelled = true
			close(finished)
			return s, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	svc := newTestScanService(scanner, repo, &mockNotifier{})
	svc.Stream(ctx, entity.ScanRequest{})

	<-started
	cancel()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("scan did not observe disconnect")
	}

	assert.Eventually(t, func() bool {
		run, _ := repo.GetByID(context.Background(), "run-1")
		return run != nil && run.Status == entity.RunStatusCancelled
	}, 5*time.Second, 10*time.Millisecond)
}

func TestScanService_Preview(t *testing.T) {
	scanner := &mockScanner{
		previewFunc: func(ctx context.Context, req entity.ScanRequest) (string, []entity.MessageSummary, error) {
			return "has:attachment filename:pdf after:1", []entity.MessageSummary{{ID: "m1"}}, nil
		},
	}

	svc := newTestScanService(scanner, newMockScanRunRepo(), nil)
	query, messages, err := svc.Preview(context.Background(), entity.ScanRequest{})
	require.NoError(t, err)
	assert.Equal(t, "has:attachment filename:pdf after:1", query)
	require.Len(t, messages, 1)
	assert.Equal(t, "m1", messages[0].ID)
}
