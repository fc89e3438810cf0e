package sync

import (
	"fmt"
	"time"
)

// Result aggregates the statistics of one sync pass.
type Result struct {
	TotalProcessed    int
	Successful        int
	Conflicts         int
	DuplicatesSkipped int
	Errors            int
	Duration          time.Duration
	Incremental       bool
	LastError         string
}

func (r *Result) String() string {
	return fmt.Sprintf("processed=%d success=%d conflicts=%d duplicates=%d errors=%d duration=%s incremental=%t",
		r.TotalProcessed, r.Successful, r.Conflicts, r.DuplicatesSkipped, r.Errors, r.Duration, r.Incremental)
}

func (r *Result) recordError(err error) {
	r.Errors++
	if err != nil {
		r.LastError = err.Error()
	}
}

// Phase names one stage of a sync pass.
type Phase string

const (
	PhaseDownload Phase = "download"
	PhaseUpload   Phase = "upload"
	PhaseResolve  Phase = "resolve-conflicts"
	PhaseFinalize Phase = "finalize"
)

// State is the coarse pass state machine: Idle -> Running -> Completed or
// Failed.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
)

// Progress receives phase advancement callbacks while a pass runs.
// Implementations must be fast; they are called from the sync goroutine.
type Progress interface {
	Report(phase Phase, step, total int)
}

// NoopProgress discards all reports.
type NoopProgress struct{}

func (NoopProgress) Report(Phase, int, int) {}
