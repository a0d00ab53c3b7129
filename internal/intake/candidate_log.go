package intake

import (
	"fmt"
	"sync"

	"github.com/hadlocna/operations/internal/progress"
)

// candidateLog prefixes progress lines with the candidate's position. In
// buffered mode lines are held until flush so concurrent candidates do not
// interleave on the channel.
type candidateLog struct {
	sink     progress.Sink
	position string
	subject  string
	buffered bool
	lines    []string
}

func newCandidateLog(sink progress.Sink, index, total int, buffered bool) *candidateLog {
	return &candidateLog{
		sink:     sink,
		position: fmt.Sprintf("[%d/%d]", index, total),
		buffered: buffered,
	}
}

// SetSubject names the candidate in subsequent lines
func (l *candidateLog) SetSubject(subject string) {
	l.subject = subject
}

func (l *candidateLog) Log(msg string) {
	line := l.position + " " + msg
	if l.subject != "" {
		line = fmt.Sprintf("%s %s: %s", l.position, l.subject, msg)
	}
	if l.buffered {
		l.lines = append(l.lines, line)
		return
	}
	l.sink.Log(line)
}

func (l *candidateLog) flush(mu *sync.Mutex) {
	mu.Lock()
	defer mu.Unlock()
	for _, line := range l.lines {
		l.sink.Log(line)
	}
	l.lines = nil
}
