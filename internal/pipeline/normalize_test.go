package pipeline

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"attendance-reconciler/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadTable(t *testing.T) {
	t.Run("strips BOM and quotes from headers", func(t *testing.T) {
		table, err := ReadTable(strings.NewReader("\xef\xbb\xbf\"Join Time\", Email \n2024-01-08 09:00:00,a@x.edu\n,\n"))
		require.NoError(t, err)
		assert.Equal(t, []string{"Join Time", "Email"}, table.Headers)
		require.Len(t, table.Rows, 1, "blank records are dropped")
		assert.Equal(t, []string{"2024-01-08 09:00:00", "a@x.edu"}, table.Rows[0])
		assert.Equal(t, "", table.cell(0, 5), "out-of-range columns read as empty")
		assert.Equal(t, "", table.cell(0, -1))
	})

	t.Run("falls back to latin-1", func(t *testing.T) {
		data := []byte("Name,Email\nJos\xe9,jose@x.edu\n")
		table, err := ReadTable(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, "José", table.Rows[0][0])
	})

	t.Run("ragged rows are tolerated", func(t *testing.T) {
		table, err := ReadTable(strings.NewReader("a,b,c\n1\n1,2,3,4\n"))
		require.NoError(t, err)
		assert.Len(t, table.Rows, 2)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := ReadTable(strings.NewReader(""))
		assert.ErrorIs(t, err, ErrEmptyTable)
		assert.True(t, IsInputError(err))
	})
}

func TestFieldNormalization(t *testing.T) {
	assert.Equal(t, "alice@ucsc.edu", NormalizeEmail("  Alice @UCSCEDU ", DefaultDomainFixes))
	assert.Equal(t, "bob@gmail.com", NormalizeEmail("bob@gmail.con", DefaultDomainFixes))
	assert.Equal(t, "bob@gmail.con", NormalizeEmail("bob@gmail.con", nil))

	assert.Equal(t, "A100", NormalizeID(` "a100". `))
	assert.Equal(t, "", NormalizeID("  --  "))

	assert.Equal(t, "Ana María", NormalizeName("  Ana   María "))
	assert.Equal(t, nameKey("ALICE SMITH"), nameKey("alice  smith"))
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2024-01-08", "2024-01-08"},
		{"2024-01-08 09:00:00", "2024-01-08"},
		{"2024-01-08T23:30:00Z", "2024-01-08"},
		{"2024-01-08T23:30:00-08:00", "2024-01-08"},
		{"1/8/2024 9:05:00 PM", "2024-01-08"},
		{"01/08/2024", "2024-01-08"},
	}
	for _, tt := range tests {
		ts, ok := ParseTimestamp(tt.in)
		require.True(t, ok, tt.in)
		assert.Equal(t, model.Session(tt.want), model.SessionOf(ts), tt.in)
	}

	for _, bad := range []string{"", "yesterday", "2024-13-40"} {
		_, ok := ParseTimestamp(bad)
		assert.False(t, ok, bad)
	}
}

func TestNormalizeAttendance(t *testing.T) {
	table := mustTable(t,
		"Join Time,Student ID,E-mail,Participant",
		"2024-01-08 09:00:00,a100,ALICE@X.EDU,Alice",
		"garbage,b200,bob@x.edu,Bob",
		"2024-01-09 09:00:00,,,",
	)

	events, diag, err := NormalizeAttendance(table, DefaultDomainFixes)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.IdentityHint{Name: "Alice", Email: "alice@x.edu", ID: "A100"}, events[0].Hint)
	assert.Equal(t, 1, events[0].Row)
	assert.Equal(t, time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC), events[0].Timestamp)

	assert.Equal(t, 2, diag.SkippedRows)
	require.Len(t, diag.Issues, 2)
	assert.Equal(t, 2, diag.Issues[0].Row)
	assert.Contains(t, diag.Issues[0].Reason, "unparseable timestamp")
	assert.Equal(t, "no identifying value", diag.Issues[1].Reason)
}

func TestNormalizeAttendanceNeedsAnIdentityColumn(t *testing.T) {
	_, _, err := NormalizeAttendance(mustTable(t, "Timestamp,Room", "2024-01-08,101"), nil)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "attendance", schemaErr.Table)
	assert.Contains(t, schemaErr.Field, "identity")
	assert.Contains(t, schemaErr.Accepted, "email")
}

func TestNormalizeGradebook(t *testing.T) {
	table := mustTable(t,
		"Student,SIS User ID,SIS Login ID",
		"Alice,a100,alice@x.edu",
		"Nobody,,",
		"Email Only,,eo@x.edu",
	)

	identities, diag, err := NormalizeGradebook(table, nil)
	require.NoError(t, err)
	require.Len(t, identities, 2)
	assert.Equal(t, "A100", identities[0].Key())
	assert.Equal(t, "eo@x.edu", identities[1].Key(), "rows without an id are keyed by email")
	assert.Equal(t, 1, diag.SkippedRows)
	assert.Equal(t, "missing both email and id", diag.Issues[0].Reason)
	assert.True(t, hasNameColumn(table))
}

func TestNormalizeGradebookWithoutIDColumn(t *testing.T) {
	table := mustTable(t,
		"Student,Email",
		"Alice,Alice@X.edu",
		"Bob,bob@x.edu",
	)

	identities, diag, err := NormalizeGradebook(table, nil)
	require.NoError(t, err)
	require.Len(t, identities, 2)
	assert.Equal(t, "", identities[0].StudentID)
	assert.Equal(t, "alice@x.edu", identities[0].Key())
	assert.Zero(t, diag.SkippedRows)
}

func TestGradebookPrefersBareIDOverSISUserID(t *testing.T) {
	cols := resolveColumns([]string{"Student", "ID", "SIS User ID", "SIS Login ID"}, gradebookAliases)
	assert.Equal(t, 1, cols[fieldID])
	assert.Equal(t, 3, cols[fieldEmail])
	assert.Equal(t, 0, cols[fieldName])
}

func TestResolveColumnsBindsEachHeaderOnce(t *testing.T) {
	// "Student ID" binds to id, leaving "Student" for the name.
	cols := resolveColumns([]string{"Student ID", "Student", "Email"}, gradebookAliases)
	assert.Equal(t, 0, cols[fieldID])
	assert.Equal(t, 1, cols[fieldName])
	assert.Equal(t, 2, cols[fieldEmail])
}
