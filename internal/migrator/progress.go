package migrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Phases reported by Progress.
const (
	PhaseIdle      = "idle"
	PhaseExporting = "exporting"
	PhaseImporting = "importing"
	PhaseVerifying = "verifying"
	PhaseDone      = "done"
)

// Progress is updated by the migrator and may be polled concurrently via
// Snapshot. All methods are safe on a nil receiver.
type Progress struct {
	totalTables     atomic.Int64
	completedTables atomic.Int64
	totalRecords    atomic.Int64
	processed       atomic.Int64
	failed          atomic.Int64

	mu           sync.Mutex
	phase        string
	currentTable string
	tableTotal   int
	tableDone    int
	started      time.Time
}

// ProgressSnapshot is a consistent copy of Progress at one instant.
type ProgressSnapshot struct {
	Phase            string        `json:"phase"`
	CurrentTable     string        `json:"currentTable"`
	TableTotal       int           `json:"tableTotal"`
	TableProcessed   int           `json:"tableProcessed"`
	TotalTables      int           `json:"totalTables"`
	CompletedTables  int           `json:"completedTables"`
	TotalRecords     int64         `json:"totalRecords"`
	ProcessedRecords int64         `json:"processedRecords"`
	FailedRecords    int64         `json:"failedRecords"`
	Elapsed          time.Duration `json:"elapsed"`
}

func NewProgress() *Progress {
	return &Progress{phase: PhaseIdle, started: time.Now()}
}

type progressKey struct{}

// WithProgress attaches p to ctx so the migrator reports into it.
func WithProgress(ctx context.Context, p *Progress) context.Context {
	return context.WithValue(ctx, progressKey{}, p)
}

// ProgressFrom returns the Progress carried by ctx, or nil.
func ProgressFrom(ctx context.Context) *Progress {
	p, _ := ctx.Value(progressKey{}).(*Progress)
	return p
}

func (p *Progress) Snapshot() ProgressSnapshot {
	if p == nil {
		return ProgressSnapshot{Phase: PhaseIdle}
	}
	p.mu.Lock()
	s := ProgressSnapshot{
		Phase:          p.phase,
		CurrentTable:   p.currentTable,
		TableTotal:     p.tableTotal,
		TableProcessed: p.tableDone,
		Elapsed:        time.Since(p.started),
	}
	p.mu.Unlock()
	s.TotalTables = int(p.totalTables.Load())
	s.CompletedTables = int(p.completedTables.Load())
	s.TotalRecords = p.totalRecords.Load()
	s.ProcessedRecords = p.processed.Load()
	s.FailedRecords = p.failed.Load()
	return s
}

// begin resets the counters for a new phase.
func (p *Progress) begin(phase string, tables, records int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.phase = phase
	p.currentTable = ""
	p.tableTotal, p.tableDone = 0, 0
	p.mu.Unlock()
	p.totalTables.Store(int64(tables))
	p.completedTables.Store(0)
	p.totalRecords.Store(int64(records))
	p.processed.Store(0)
	p.failed.Store(0)
}

func (p *Progress) startTable(name string, total int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.currentTable = name
	p.tableTotal = total
	p.tableDone = 0
	p.mu.Unlock()
}

func (p *Progress) addRecords(ok, failed int) {
	if p == nil {
		return
	}
	p.processed.Add(int64(ok + failed))
	p.failed.Add(int64(failed))
	p.mu.Lock()
	p.tableDone += ok + failed
	p.mu.Unlock()
}

// addTotal grows the record total while exporting, when it is not known upfront.
func (p *Progress) addTotal(n int) {
	if p == nil {
		return
	}
	p.totalRecords.Add(int64(n))
}

func (p *Progress) finishTable() {
	if p == nil {
		return
	}
	p.completedTables.Add(1)
}

func (p *Progress) setPhase(phase string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.phase = phase
	p.mu.Unlock()
}
