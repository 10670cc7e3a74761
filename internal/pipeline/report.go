package pipeline

import (
	"time"

	"attendance-reconciler/internal/model"
)

// PreviewLimit is how many counts rows the preview carries.
const PreviewLimit = 20

// Report is the caller-facing package of a run.
type Report struct {
	Summary        model.RunSummary  `json:"summary"`
	Counts         model.Table       `json:"-"`
	Preview        []map[string]any  `json:"counts_preview"`
	CountsArtifact model.Artifact    `json:"counts_artifact"`
	MatrixArtifact *model.Artifact   `json:"matrix_artifact,omitempty"`
	Diagnostics    model.Diagnostics `json:"diagnostics"`
}

// AssembleReport shapes the aggregation (and the matrix, when built) for the
// caller. It copies what it exposes and never touches its inputs.
func AssembleReport(agg Aggregation, roster Roster, sessions []model.Session, matrix *Matrix,
	diag model.Diagnostics, outPrefix string, generatedAt time.Time) Report {

	summary := agg.Summary
	summary.LectureDates = append([]string(nil), agg.Summary.LectureDates...)
	summary.GeneratedAt = generatedAt

	counts := CountsTable(agg.Students, roster, len(sessions))
	countsName := CountsFilename(outPrefix)
	report := Report{
		Summary:        summary,
		Counts:         counts,
		Preview:        buildPreview(agg.Students, roster, len(sessions), PreviewLimit),
		CountsArtifact: model.Artifact{Filename: countsName, RelativePath: countsName, Table: counts},
		Diagnostics:    diag,
	}
	if matrix != nil {
		matrixName := MatrixFilename(outPrefix)
		report.MatrixArtifact = &model.Artifact{
			Filename:     matrixName,
			RelativePath: matrixName,
			Table:        MatrixTable(*matrix, roster),
		}
	}
	return report
}

// buildPreview returns the first limit counts rows, in table order, as typed maps.
func buildPreview(students []model.StudentAttendanceSummary, roster Roster, sessionsTotal, limit int) []map[string]any {
	layout := newCountsLayout(students, roster)
	n := min(limit, len(students))
	preview := make([]map[string]any, n)
	for i := 0; i < n; i++ {
		values := layout.values(students[i], sessionsTotal)
		row := make(map[string]any, len(values))
		for j, c := range layout.columns {
			row[c] = values[j]
		}
		preview[i] = row
	}
	return preview
}
