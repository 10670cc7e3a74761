package pipeline

import (
	"sync"
	"time"

	"attendance-reconciler/internal/model"

	"golang.org/x/sync/errgroup"
)

// Request is one engine invocation: the two input tables plus run parameters.
type Request struct {
	Attendance RawTable
	Gradebook  *RawTable // nil when no gradebook was supplied
	Window     Window
	JoinMode   model.JoinMode
	OutPrefix  string
	Matrix     bool
}

// Options tune normalization and supply the clock.
type Options struct {
	DomainFixes []DomainFix
	Now         func() time.Time
}

// DefaultOptions uses the built-in domain fixes and the wall clock.
func DefaultOptions() Options {
	return Options{DomainFixes: DefaultDomainFixes, Now: time.Now}
}

// Result is everything one run produces.
type Result struct {
	Report
	JoinMode model.JoinMode                   `json:"effective_join_mode"`
	Students []model.StudentAttendanceSummary `json:"students"`
	Outcomes []model.ResolvedEvent            `json:"outcomes"`
	Matrix   *Matrix                          `json:"matrix,omitempty"`
	Stages   []model.StageMetrics             `json:"stages"`
}

// ------------------- Pipeline Runner -------------------

// Run executes the join-and-aggregate engine. It is a pure function of the
// request: no I/O, no shared state, nothing to cancel. Fatal errors
// (*SchemaError, *RangeError, *DuplicateIdentityError, ErrUnknownJoinMode)
// abort the run; row-level problems end up in the report's diagnostics.
func Run(req Request, opts Options) (*Result, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	mode, err := ParseJoinMode(string(req.JoinMode))
	if err != nil {
		return nil, err
	}
	if req.Gradebook == nil {
		mode = model.JoinNone
	}
	tracker := newStageTracker(opts.Now)

	// --- NORMALIZATION STAGE ---
	// The two tables have no data dependency, so they are normalized in parallel.
	var (
		events                []model.AttendanceEvent
		identities            []model.GradebookIdentity
		attDiag, gbDiag       model.Diagnostics
		attErr, gbErr         error
		gradebookHasNameField bool
	)
	var g errgroup.Group
	g.Go(func() error {
		done := tracker.StartStage(StageNormalizeAttendance)
		events, attDiag, attErr = NormalizeAttendance(req.Attendance, opts.DomainFixes)
		done(len(events))
		return attErr
	})
	if mode != model.JoinNone {
		g.Go(func() error {
			done := tracker.StartStage(StageNormalizeGradebook)
			identities, gbDiag, gbErr = NormalizeGradebook(*req.Gradebook, opts.DomainFixes)
			gradebookHasNameField = hasNameColumn(*req.Gradebook)
			done(len(identities))
			return gbErr
		})
	}
	if err := g.Wait(); err != nil {
		// Report the attendance error first so the message does not depend on scheduling.
		if attErr != nil {
			return nil, attErr
		}
		return nil, gbErr
	}

	// --- RESOLUTION STAGE ---
	done := tracker.StartStage(StageResolve)
	outcomes := Resolve(events, identities, mode)
	done(len(outcomes))

	// --- SESSION STAGE ---
	done = tracker.StartStage(StageSessions)
	sessionSet, sessionDiag, err := ExtractSessions(events, req.Window)
	if err != nil {
		return nil, err
	}
	done(len(sessionSet.Sessions))

	resolved := make([]model.ResolvedEvent, len(events))
	for i, ev := range events {
		resolved[i] = model.ResolvedEvent{Event: ev, Outcome: outcomes[i], InWindow: sessionSet.InWindow[i]}
	}

	var roster Roster
	if mode == model.JoinNone {
		roster = AttendanceRoster(resolved)
	} else {
		roster = GradebookRoster(identities, gradebookHasNameField)
	}

	// --- AGGREGATION + MATRIX STAGES ---
	// Both only read the published resolved sequence.
	var (
		agg    Aggregation
		matrix *Matrix
	)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		done := tracker.StartStage(StageAggregate)
		agg = Aggregate(resolved, roster, sessionSet.Sessions)
		done(len(agg.Students))
	}()
	if req.Matrix {
		wg.Add(1)
		go func() {
			defer wg.Done()
			done := tracker.StartStage(StageMatrix)
			m := BuildMatrix(resolved, roster, sessionSet.Sessions)
			matrix = &m
			done(len(m.Rows))
		}()
	}
	wg.Wait()

	// --- REPORT STAGE ---
	var diag model.Diagnostics
	diag.Merge(attDiag)
	diag.Merge(gbDiag)
	diag.Merge(sessionDiag)
	diag.Merge(agg.Diagnostics)

	done = tracker.StartStage(StageReport)
	report := AssembleReport(agg, roster, sessionSet.Sessions, matrix, diag, req.OutPrefix, opts.Now().UTC())
	done(len(report.Counts.Rows))

	return &Result{
		Report:   report,
		JoinMode: mode,
		Students: agg.Students,
		Outcomes: resolved,
		Matrix:   matrix,
		Stages:   tracker.Metrics(),
	}, nil
}
