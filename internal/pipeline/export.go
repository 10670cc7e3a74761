package pipeline

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"attendance-reconciler/internal/model"
)

// Counts table columns.
const (
	ColumnStudentID        = "student_id"
	ColumnIdentity         = "identity"
	ColumnEmail            = "email"
	ColumnStudent          = "student"
	ColumnAttendedCount    = "attended_count"
	ColumnPercentage       = "percentage"
	ColumnAmbiguousEvents  = "ambiguous_events"
	ColumnDuplicateMarkers = "duplicate_markers"
	ColumnTotalCount       = "total_count"
)

// ------------------- Counts Table -------------------

// countsLayout fixes the counts table columns for one run. Diagnostic columns
// only appear when at least one student has a non-zero value.
type countsLayout struct {
	columns []string
}

func newCountsLayout(students []model.StudentAttendanceSummary, roster Roster) countsLayout {
	var columns []string
	if roster.FromGradebook {
		columns = append(columns, ColumnStudentID, ColumnEmail)
	} else {
		columns = append(columns, ColumnIdentity)
	}
	if roster.HasNames {
		columns = append(columns, ColumnStudent)
	}
	columns = append(columns, ColumnAttendedCount, ColumnPercentage)

	var anyAmbiguous, anyDuplicates bool
	for _, s := range students {
		anyAmbiguous = anyAmbiguous || s.AmbiguousEvents > 0
		anyDuplicates = anyDuplicates || s.DuplicateMarkers > 0
	}
	if anyAmbiguous {
		columns = append(columns, ColumnAmbiguousEvents)
	}
	if anyDuplicates {
		columns = append(columns, ColumnDuplicateMarkers)
	}
	return countsLayout{columns: columns}
}

// values returns the typed cell values of one student, aligned with columns.
func (l countsLayout) values(s model.StudentAttendanceSummary, sessionsTotal int) []any {
	out := make([]any, len(l.columns))
	for i, c := range l.columns {
		switch c {
		case ColumnStudentID, ColumnIdentity:
			out[i] = s.StudentID
		case ColumnEmail:
			out[i] = s.Email
		case ColumnStudent:
			out[i] = s.DisplayName
		case ColumnAttendedCount:
			out[i] = s.AttendedCount
		case ColumnPercentage:
			out[i] = round2(coverage(s.AttendedCount, sessionsTotal))
		case ColumnAmbiguousEvents:
			out[i] = s.AmbiguousEvents
		case ColumnDuplicateMarkers:
			out[i] = s.DuplicateMarkers
		}
	}
	return out
}

// CountsTable renders the per-student counts in roster order.
func CountsTable(students []model.StudentAttendanceSummary, roster Roster, sessionsTotal int) model.Table {
	layout := newCountsLayout(students, roster)
	table := model.Table{Columns: layout.columns, Rows: make([][]string, len(students))}
	for i, s := range students {
		values := layout.values(s, sessionsTotal)
		row := make([]string, len(values))
		for j, v := range values {
			row[j] = formatCell(v)
		}
		table.Rows[i] = row
	}
	return table
}

// ------------------- Matrix Table -------------------

// MatrixTable renders the presence grid: identifier columns, one 1/0 column
// per session date, then total_count.
func MatrixTable(m Matrix, roster Roster) model.Table {
	var columns []string
	if roster.FromGradebook {
		columns = append(columns, ColumnStudentID, ColumnEmail)
	} else {
		columns = append(columns, ColumnIdentity)
	}
	if roster.HasNames {
		columns = append(columns, ColumnStudent)
	}
	columns = append(columns, LectureDates(m.Sessions)...)
	columns = append(columns, ColumnTotalCount)

	table := model.Table{Columns: columns, Rows: make([][]string, len(m.Rows))}
	for i, r := range m.Rows {
		row := []string{r.Key}
		if roster.FromGradebook {
			row = append(row, r.Email)
		}
		if roster.HasNames {
			row = append(row, r.DisplayName)
		}
		for _, present := range r.Cells {
			if present {
				row = append(row, "1")
			} else {
				row = append(row, "0")
			}
		}
		row = append(row, strconv.Itoa(r.Total()))
		table.Rows[i] = row
	}
	return table
}

// ------------------- CSV Export -------------------

// WriteCSV writes the table with its header row.
func WriteCSV(w io.Writer, t model.Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range t.Rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// EncodeCSV returns the table as CSV bytes.
func EncodeCSV(t model.Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ------------------- Artifact Naming -------------------

const defaultOutPrefix = "attendance"

// SanitizePrefix keeps [A-Za-z0-9._-] and falls back to "attendance".
func SanitizePrefix(prefix string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(prefix) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	cleaned := strings.Trim(b.String(), ".")
	if cleaned == "" {
		return defaultOutPrefix
	}
	return cleaned
}

// CountsFilename is the suggested name of the counts artifact.
func CountsFilename(prefix string) string {
	return SanitizePrefix(prefix) + "_counts.csv"
}

// MatrixFilename is the suggested name of the matrix artifact.
func MatrixFilename(prefix string) string {
	return SanitizePrefix(prefix) + "_matrix.csv"
}

func formatCell(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', 2, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
