package dupes

import (
	"sync"
	"time"
)

// Stage names reported while a search runs.
const (
	StageEnumerating = "enumerating"
	StageGrouping    = "grouping"
	StageHashing     = "hashing"
	StageFinalizing  = "finalizing"
)

// Progress is a point-in-time update for one stage of a search.
// Total 0 means the total is not known for that stage.
type Progress struct {
	Stage   string
	Current int64
	Total   int64
	Message string
}

// EmitFunc receives progress updates. Implementations must not block;
// the engine calls it from worker goroutines.
type EmitFunc func(Progress)

// reporter rate-limits progress emission so a large file set cannot flood
// the caller's event channel. Stage transitions and final counts bypass
// the limit via force.
type reporter struct {
	emit   EmitFunc
	minGap time.Duration

	mu   sync.Mutex
	last time.Time
}

func newReporter(emit EmitFunc, minGap time.Duration) *reporter {
	if emit == nil {
		emit = func(Progress) {}
	}
	if minGap <= 0 {
		minGap = 100 * time.Millisecond
	}
	return &reporter{emit: emit, minGap: minGap}
}

// report emits unless the previous emission was less than minGap ago.
func (r *reporter) report(stage string, current, total int64, message string) {
	r.mu.Lock()
	now := time.Now()
	if now.Sub(r.last) < r.minGap {
		r.mu.Unlock()
		return
	}
	r.last = now
	r.mu.Unlock()

	r.emit(Progress{Stage: stage, Current: current, Total: total, Message: message})
}

// force emits unconditionally.
func (r *reporter) force(stage string, current, total int64, message string) {
	r.mu.Lock()
	r.last = time.Now()
	r.mu.Unlock()

	r.emit(Progress{Stage: stage, Current: current, Total: total, Message: message})
}
