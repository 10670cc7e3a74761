package model

import "time"

// JoinMode selects the identity-matching strategy for a run.
type JoinMode string

const (
	JoinAuto  JoinMode = "auto"
	JoinID    JoinMode = "id"
	JoinEmail JoinMode = "email"
	JoinNone  JoinMode = "none"
)

// RunSummary is the run-level aggregate returned to the caller.
type RunSummary struct {
	StudentsTotal          int       `json:"students_total"`
	StudentsWithAttendance int       `json:"students_with_attendance"`
	CoveragePct            float64   `json:"coverage_pct"`
	LectureDates           []string  `json:"lecture_dates"`
	GeneratedAt            time.Time `json:"generated_at"`
}

// RowIssue records one non-fatal, row-level problem.
type RowIssue struct {
	Table  string `json:"table"` // "attendance" or "gradebook"
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Diagnostics accumulates non-fatal issues across every stage of a run.
type Diagnostics struct {
	SkippedRows    int        `json:"skipped_rows"`
	FilteredOut    int        `json:"filtered_out"`
	AmbiguousCount int        `json:"ambiguous_count"`
	UnmatchedCount int        `json:"unmatched_count"`
	Issues         []RowIssue `json:"issues,omitempty"`
}

// Merge folds other into d.
func (d *Diagnostics) Merge(other Diagnostics) {
	d.SkippedRows += other.SkippedRows
	d.FilteredOut += other.FilteredOut
	d.AmbiguousCount += other.AmbiguousCount
	d.UnmatchedCount += other.UnmatchedCount
	d.Issues = append(d.Issues, other.Issues...)
}

// Table is a rectangular output table with a header row.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Artifact describes an output table the caller is expected to persist.
type Artifact struct {
	Filename     string `json:"filename"`
	RelativePath string `json:"relative_path"`
	Table        Table  `json:"-"`
}

// Run statuses recorded in history.
const (
	RunSuccess = "success"
	RunError   = "error"
	RunPending = "pending"
)

// RunRecord is one entry in the run history.
type RunRecord struct {
	ID          string      `json:"id"`
	Course      string      `json:"course,omitempty"`
	RequestedBy string      `json:"requested_by,omitempty"`
	OutPrefix   string      `json:"out_prefix"`
	JoinMode    JoinMode    `json:"join_mode"`
	StartDate   string      `json:"start_date"`
	EndDate     string      `json:"end_date"`
	Status      string      `json:"status"`
	Notes       string      `json:"notes,omitempty"`
	Summary     *RunSummary `json:"summary,omitempty"`
	Diagnostics Diagnostics `json:"diagnostics"`
	Artifacts   []Artifact  `json:"artifacts,omitempty"`
	RunAt       time.Time   `json:"run_at"`
}
