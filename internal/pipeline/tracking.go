package pipeline

import (
	"sort"
	"sync"
	"time"

	"attendance-reconciler/internal/model"
)

// Stage names reported in StageMetrics.
const (
	StageNormalizeAttendance = "normalize_attendance"
	StageNormalizeGradebook  = "normalize_gradebook"
	StageResolve             = "resolve"
	StageSessions            = "sessions"
	StageAggregate           = "aggregate"
	StageMatrix              = "matrix"
	StageReport              = "report"
)

// stageTracker records per-stage timings for one run. Stages that run in
// parallel report concurrently, hence the mutex.
type stageTracker struct {
	mu     sync.Mutex
	now    func() time.Time
	stages []model.StageMetrics
}

func newStageTracker(now func() time.Time) *stageTracker {
	return &stageTracker{now: now}
}

// StartStage marks the start of a stage and returns the function that ends it.
func (st *stageTracker) StartStage(stage string) func(records int) {
	start := st.now()
	return func(records int) {
		end := st.now()
		st.mu.Lock()
		defer st.mu.Unlock()
		st.stages = append(st.stages, model.StageMetrics{
			Stage:     stage,
			StartTime: start,
			Duration:  end.Sub(start),
			Records:   records,
		})
	}
}

// Metrics returns the recorded stages ordered by start time.
func (st *stageTracker) Metrics() []model.StageMetrics {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]model.StageMetrics, len(st.stages))
	copy(out, st.stages)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}
