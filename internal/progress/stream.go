package progress

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/hadlocna/operations/internal/domain/entity"
	"github.com/hadlocna/operations/internal/domain/event"
)

// DefaultBuffer is the event backlog a slow client may accumulate before the producer waits
const DefaultBuffer = 64

// Sink receives human-readable progress lines from a running scan
type Sink interface {
	Log(msg string)
}

// Stream is the one-way event channel for one scan invocation. Log may be
// called from several goroutines; Fail and Complete end the stream and any
// later event is dropped.
type Stream struct {
	runID  string
	events chan event.Event
	done   <-chan struct{}

	mu      sync.Mutex
	closed  bool
	dropped int
}

// NewStream creates a stream whose sends are abandoned once ctx is done
func NewStream(ctx context.Context, runID string, buffer int) *Stream {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Stream{
		runID:  runID,
		events: make(chan event.Event, buffer),
		done:   ctx.Done(),
	}
}

// Events returns the receive side; it is closed after the terminal event
func (s *Stream) Events() <-chan event.Event {
	return s.events
}

// RunID returns the scan run this stream reports on
func (s *Stream) RunID() string {
	return s.runID
}

// Log emits a progress line
func (s *Stream) Log(msg string) {
	s.send(event.NewLog(s.runID, msg))
}

// Fail emits the terminal error event
func (s *Stream) Fail(err error) {
	s.send(event.NewError(s.runID, err))
}

// Complete emits the terminal summary event
func (s *Stream) Complete(summary *entity.ProcessingSummary) {
	s.send(event.NewComplete(s.runID, summary))
}

// Close ends the stream without a terminal event
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

// Dropped returns how many events were discarded because the client went away
func (s *Stream) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *Stream) send(e event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	select {
	case s.events <- e:
	case <-s.done:
		s.dropped++
	}

	if e.Type.IsTerminal() {
		s.closed = true
		close(s.events)
	}
}

// LogSink writes progress lines to a zap logger
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink for callers that only want the final summary
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Log writes the line at debug level
func (l *LogSink) Log(msg string) {
	l.logger.Debug("Scan progress", zap.String("line", msg))
}

// Discard drops every line
var Discard Sink = discard{}

type discard struct{}

func (discard) Log(string) {}
