package pipeline

import (
	"testing"
	"time"

	"attendance-reconciler/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradebookFixture() []model.GradebookIdentity {
	return []model.GradebookIdentity{
		{Row: 1, StudentID: "B200", Email: "bob@x.edu", DisplayName: "Bob Lee"},
		{Row: 2, StudentID: "A100", Email: "alice@x.edu", DisplayName: "Alice Smith"},
		{Row: 3, StudentID: "T1", Email: "twin@x.edu", DisplayName: "Sam Twin"},
		{Row: 4, StudentID: "T2", Email: "twin@x.edu", DisplayName: "Sam Twin"},
	}
}

func event(hint model.IdentityHint) model.AttendanceEvent {
	return model.AttendanceEvent{Row: 1, Hint: hint, Timestamp: time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		mode      model.JoinMode
		hint      model.IdentityHint
		wantKind  model.OutcomeKind
		wantID    string
		wantStage string
		wantCands []string
	}{
		{"id match", model.JoinID, model.IdentityHint{ID: "A100"}, model.Matched, "A100", "id", nil},
		{"id mode ignores email", model.JoinID, model.IdentityHint{Email: "alice@x.edu"}, model.Unmatched, "", "", nil},
		{"email match", model.JoinEmail, model.IdentityHint{Email: "bob@x.edu"}, model.Matched, "B200", "email", nil},
		{"email tie is ambiguous", model.JoinEmail, model.IdentityHint{Email: "twin@x.edu"}, model.Ambiguous, "", "email", []string{"T1", "T2"}},
		{"auto falls through to email", model.JoinAuto, model.IdentityHint{ID: "ZZZ", Email: "bob@x.edu"}, model.Matched, "B200", "email", nil},
		{"auto name match", model.JoinAuto, model.IdentityHint{Name: "alice smith"}, model.Matched, "A100", "name", nil},
		{"auto name tie is unmatched", model.JoinAuto, model.IdentityHint{Name: "Sam Twin"}, model.Unmatched, "", "name", nil},
		{"auto email tie stops before name", model.JoinAuto, model.IdentityHint{Email: "twin@x.edu", Name: "Alice Smith"}, model.Ambiguous, "", "email", []string{"T1", "T2"}},
		{"none never matches", model.JoinNone, model.IdentityHint{ID: "A100"}, model.Unmatched, "", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcomes := Resolve([]model.AttendanceEvent{event(tt.hint)}, gradebookFixture(), tt.mode)
			require.Len(t, outcomes, 1)
			got := outcomes[0]
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantID, got.StudentID)
			assert.Equal(t, tt.wantStage, got.Stage)
			assert.Equal(t, tt.wantCands, got.Candidates)
		})
	}
}

func TestParseJoinMode(t *testing.T) {
	mode, err := ParseJoinMode("")
	require.NoError(t, err)
	assert.Equal(t, model.JoinAuto, mode)

	mode, err = ParseJoinMode(" EMAIL ")
	require.NoError(t, err)
	assert.Equal(t, model.JoinEmail, mode)

	_, err = ParseJoinMode("fuzzy")
	assert.ErrorIs(t, err, ErrUnknownJoinMode)
}

func TestExtractSessions(t *testing.T) {
	at := func(day int) model.AttendanceEvent {
		return model.AttendanceEvent{Timestamp: time.Date(2024, 1, day, 23, 59, 0, 0, time.UTC)}
	}
	events := []model.AttendanceEvent{at(10), at(1), at(10), at(15), at(16), at(8)}

	set, diag, err := ExtractSessions(events, Window{Start: "2024-01-01", End: "2024-01-15"})
	require.NoError(t, err)
	assert.Equal(t, []model.Session{"2024-01-01", "2024-01-08", "2024-01-10", "2024-01-15"}, set.Sessions)
	assert.Equal(t, []bool{true, true, true, true, false, true}, set.InWindow)
	assert.Equal(t, 1, diag.FilteredOut)

	set, _, err = ExtractSessions(nil, Window{Start: "2024-01-01", End: "2024-01-01"})
	require.NoError(t, err)
	assert.Empty(t, set.Sessions)
}

func TestExportHelpers(t *testing.T) {
	assert.Equal(t, "CSE_20W24", SanitizePrefix(" CSE 20/W24 "))
	assert.Equal(t, "attendance", SanitizePrefix("../"))
	assert.Equal(t, "attendance_counts.csv", CountsFilename(""))
	assert.Equal(t, "x_matrix.csv", MatrixFilename("x"))
}

func TestPreviewIsCappedAndOrdered(t *testing.T) {
	var identities []model.GradebookIdentity
	for i := 0; i < 25; i++ {
		identities = append(identities, model.GradebookIdentity{
			Row:       i + 1,
			StudentID: string(rune('A'+i)) + "1",
			Email:     string(rune('a'+i)) + "@x.edu",
		})
	}
	roster := GradebookRoster(identities, false)
	agg := Aggregate(nil, roster, nil)
	report := AssembleReport(agg, roster, nil, nil, model.Diagnostics{}, "p", time.Unix(0, 0).UTC())

	require.Len(t, report.Preview, PreviewLimit)
	assert.Len(t, report.Counts.Rows, 25)
	for i, row := range report.Preview {
		assert.Equal(t, report.Counts.Rows[i][0], row[ColumnStudentID])
		assert.Equal(t, 0.0, row[ColumnPercentage], "no sessions means zero percent")
	}
	assert.Equal(t, 0.0, report.Summary.CoveragePct)
}
