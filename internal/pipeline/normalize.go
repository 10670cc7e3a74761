package pipeline

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"attendance-reconciler/internal/model"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// DomainFix rewrites a mistyped email domain suffix.
type DomainFix struct {
	Bad  string `yaml:"bad" json:"bad"`
	Good string `yaml:"good" json:"good"`
}

// DefaultDomainFixes are the typos seen in real attendance exports.
var DefaultDomainFixes = []DomainFix{
	{Bad: "@ucscedu", Good: "@ucsc.edu"},
	{Bad: "@ucsc.efu", Good: "@ucsc.edu"},
	{Bad: "@ucsc.irg", Good: "@ucsc.edu"},
	{Bad: "@uscs.edu", Good: "@ucsc.edu"},
	{Bad: "@gmail.con", Good: "@gmail.com"},
}

// timestampLayouts are tried in order; the first that parses wins.
var timestampLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"01/02/2006 15:04:05",
	"1/2/2006 15:04:05",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 15:04",
	"01/02/2006",
}

// ------------------- Field Normalization -------------------

// NormalizeName trims, collapses internal whitespace and composes to NFC.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// nameKey is the case-insensitive comparison key for display names.
func nameKey(s string) string {
	return cases.Fold().String(NormalizeName(s))
}

// NormalizeEmail lowercases, drops spaces and repairs known domain typos.
func NormalizeEmail(s string, fixes []DomainFix) string {
	e := strings.ToLower(strings.Join(strings.Fields(s), ""))
	for _, fix := range fixes {
		if strings.HasSuffix(e, fix.Bad) {
			e = strings.TrimSuffix(e, fix.Bad) + fix.Good
		}
	}
	return e
}

// NormalizeID strips non-alphanumeric padding and uppercases.
func NormalizeID(s string) string {
	trimmed := strings.TrimFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.ToUpper(trimmed)
}

// ParseTimestamp parses an attendance join time in any accepted layout.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ------------------- Table Normalization -------------------

// NormalizeAttendance turns the attendance export into events. Rows with an
// unparseable timestamp or no identifying value are skipped, not fatal.
func NormalizeAttendance(table RawTable, fixes []DomainFix) ([]model.AttendanceEvent, model.Diagnostics, error) {
	var diag model.Diagnostics
	cols := resolveColumns(table.Headers, attendanceAliases)
	if err := requireColumns("attendance", cols, attendanceAliases, fieldTimestamp); err != nil {
		return nil, diag, err
	}
	if err := requireAnyColumn("attendance", cols, attendanceAliases, fieldID, fieldEmail, fieldName); err != nil {
		return nil, diag, err
	}

	events := make([]model.AttendanceEvent, 0, len(table.Rows))
	for i := range table.Rows {
		rowNum := i + 1
		rawTS := strings.TrimSpace(table.cell(i, cols[fieldTimestamp]))
		ts, ok := ParseTimestamp(rawTS)
		if !ok {
			diag.SkippedRows++
			diag.Issues = append(diag.Issues, model.RowIssue{
				Table: "attendance", Row: rowNum, Reason: fmt.Sprintf("unparseable timestamp %q", rawTS),
			})
			continue
		}

		hint := model.IdentityHint{
			Name:  NormalizeName(table.cell(i, cols[fieldName])),
			Email: NormalizeEmail(table.cell(i, cols[fieldEmail]), fixes),
			ID:    NormalizeID(table.cell(i, cols[fieldID])),
		}
		if hint.IsEmpty() {
			diag.SkippedRows++
			diag.Issues = append(diag.Issues, model.RowIssue{
				Table: "attendance", Row: rowNum, Reason: "no identifying value",
			})
			continue
		}

		events = append(events, model.AttendanceEvent{
			Row:          rowNum,
			Hint:         hint,
			Timestamp:    ts,
			SessionLabel: rawTS,
		})
	}
	return events, diag, nil
}

// NormalizeGradebook turns the gradebook export into identities. Rows missing
// both email and ID are skipped; a shared student ID is fatal.
func NormalizeGradebook(table RawTable, fixes []DomainFix) ([]model.GradebookIdentity, model.Diagnostics, error) {
	var diag model.Diagnostics
	cols := resolveColumns(table.Headers, gradebookAliases)
	if err := requireColumns("gradebook", cols, gradebookAliases, fieldEmail); err != nil {
		return nil, diag, err
	}

	identities := make([]model.GradebookIdentity, 0, len(table.Rows))
	seen := make(map[string]int)
	for i := range table.Rows {
		rowNum := i + 1
		identity := model.GradebookIdentity{
			Row:         rowNum,
			StudentID:   NormalizeID(table.cell(i, cols[fieldID])),
			Email:       NormalizeEmail(table.cell(i, cols[fieldEmail]), fixes),
			DisplayName: NormalizeName(table.cell(i, cols[fieldName])),
		}
		if identity.StudentID == "" && identity.Email == "" {
			diag.SkippedRows++
			diag.Issues = append(diag.Issues, model.RowIssue{
				Table: "gradebook", Row: rowNum, Reason: "missing both email and id",
			})
			continue
		}

		key := identity.Key()
		if first, dup := seen[key]; dup {
			return nil, diag, &DuplicateIdentityError{StudentID: key, FirstRow: first, SecondRow: rowNum}
		}
		seen[key] = rowNum
		identities = append(identities, identity)
	}
	return identities, diag, nil
}

// hasNameColumn reports whether the gradebook carries display names.
func hasNameColumn(table RawTable) bool {
	return resolveColumns(table.Headers, gradebookAliases).has(fieldName)
}
