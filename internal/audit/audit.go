// Package audit records phase transitions and error events of a migration run.
package audit

import (
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Level of an audit entry.
type Level string

const (
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

// Entry is one auditable event.
type Entry struct {
	Time        time.Time      `json:"time"`
	Level       Level          `json:"level"`
	Operation   string         `json:"operation"`
	Message     string         `json:"message"`
	Fields      map[string]any `json:"fields,omitempty"`
	Stack       string         `json:"stack,omitempty"`
	Remediation []string       `json:"remediation,omitempty"`
}

// Sink receives audit entries. Implementations must be safe for concurrent use.
type Sink interface {
	Record(e Entry)
}

// Nop discards every entry.
type Nop struct{}

func (Nop) Record(Entry) {}

// OrNop returns s, or a Nop sink when s is nil.
func OrNop(s Sink) Sink {
	if s == nil {
		return Nop{}
	}
	return s
}

// LogSink writes entries to a logrus logger under the "audit" component.
type LogSink struct {
	log *logrus.Entry
}

func NewLogSink(log *logrus.Entry) *LogSink {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &LogSink{log: log.WithField("component", "audit")}
}

func (s *LogSink) Record(e Entry) {
	l := s.log.WithField("operation", e.Operation).WithFields(logrus.Fields(e.Fields))
	if len(e.Remediation) > 0 {
		l = l.WithField("remediation", e.Remediation)
	}
	if e.Stack != "" {
		l = l.WithField("stack", e.Stack)
	}
	switch e.Level {
	case LevelCritical, LevelError:
		l.Error(e.Message)
	case LevelWarning:
		l.Warn(e.Message)
	default:
		l.Info(e.Message)
	}
}

// Recorder keeps entries in memory, optionally forwarding them.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
	next    Sink
}

// NewRecorder returns a Recorder that also forwards to next when non-nil.
func NewRecorder(next Sink) *Recorder {
	return &Recorder{next: next}
}

func (r *Recorder) Record(e Entry) {
	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()
	if r.next != nil {
		r.next.Record(e)
	}
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Phase records a phase transition.
func Phase(s Sink, operation, message string, fields map[string]any) {
	OrNop(s).Record(Entry{Time: time.Now().UTC(), Level: LevelInfo, Operation: operation, Message: message, Fields: fields})
}

// Failure records an error event with the current stack. Critical failures
// should carry remediation steps.
func Failure(s Sink, level Level, operation string, err error, fields map[string]any, remediation ...string) {
	OrNop(s).Record(Entry{
		Time:        time.Now().UTC(),
		Level:       level,
		Operation:   operation,
		Message:     err.Error(),
		Fields:      fields,
		Stack:       string(debug.Stack()),
		Remediation: remediation,
	})
}
