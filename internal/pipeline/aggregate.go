package pipeline

import (
	"sort"

	"attendance-reconciler/internal/model"
)

// ------------------- Roster -------------------

// RosterEntry is one row of the output tables.
type RosterEntry struct {
	Key         string
	Email       string
	DisplayName string
	// NameKeyed marks attendance identities that carry neither ID nor email.
	NameKeyed bool
}

// Identity is the value written to the identity column. Name-keyed entries
// show the normalized name; Key stays case-folded for lookups.
func (e RosterEntry) Identity() string {
	if e.NameKeyed {
		return e.DisplayName
	}
	return e.Key
}

// Roster is the ordered set of students both the Aggregator and the Matrix
// Builder emit rows for. It is computed once, before they run.
type Roster struct {
	Entries       []RosterEntry
	FromGradebook bool
	HasNames      bool
}

// GradebookRoster enumerates every gradebook identity, ascending by student key.
func GradebookRoster(identities []model.GradebookIdentity, hasNames bool) Roster {
	entries := make([]RosterEntry, len(identities))
	for i, g := range identities {
		entries[i] = RosterEntry{Key: g.Key(), Email: g.Email, DisplayName: g.DisplayName}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return Roster{Entries: entries, FromGradebook: true, HasNames: hasNames}
}

// attendanceKey identifies a student from attendance data alone: ID, else
// email, else case-folded name.
func attendanceKey(hint model.IdentityHint) string {
	switch {
	case hint.ID != "":
		return hint.ID
	case hint.Email != "":
		return hint.Email
	default:
		return nameKey(hint.Name)
	}
}

// AttendanceRoster enumerates the distinct identities seen in in-window events.
// Each identity takes its name and email from its earliest event (ties go to
// the smaller name) so the result does not depend on row order. Ordering is by
// display name, then key.
func AttendanceRoster(resolved []model.ResolvedEvent) Roster {
	type pick struct {
		entry RosterEntry
		first model.AttendanceEvent
	}
	picks := make(map[string]*pick)
	hasNames := false
	for _, re := range resolved {
		if !re.InWindow {
			continue
		}
		ev := re.Event
		key := attendanceKey(ev.Hint)
		if ev.Hint.Name != "" {
			hasNames = true
		}
		p, ok := picks[key]
		if !ok || earlier(ev, p.first) {
			picks[key] = &pick{
				entry: RosterEntry{
					Key:         key,
					Email:       ev.Hint.Email,
					DisplayName: ev.Hint.Name,
					NameKeyed:   ev.Hint.ID == "" && ev.Hint.Email == "",
				},
				first: ev,
			}
		}
	}

	entries := make([]RosterEntry, 0, len(picks))
	for _, p := range picks {
		entries = append(entries, p.entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].DisplayName != entries[j].DisplayName {
			return entries[i].DisplayName < entries[j].DisplayName
		}
		return entries[i].Key < entries[j].Key
	})
	return Roster{Entries: entries, HasNames: hasNames}
}

func earlier(a, b model.AttendanceEvent) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	if a.Hint.Name != b.Hint.Name {
		return a.Hint.Name < b.Hint.Name
	}
	return a.Hint.Email < b.Hint.Email
}

// attribute returns the roster key an in-window event counts toward, if any.
// Only Matched outcomes count against a gradebook; without one every event
// counts toward its own attendance identity.
func attribute(re model.ResolvedEvent, fromGradebook bool) (string, bool) {
	if !re.InWindow {
		return "", false
	}
	if !fromGradebook {
		return attendanceKey(re.Event.Hint), true
	}
	if re.Outcome.Kind == model.Matched {
		return re.Outcome.StudentID, true
	}
	return "", false
}

// ------------------- Aggregation -------------------

// Aggregation is the Aggregator's output.
type Aggregation struct {
	Students    []model.StudentAttendanceSummary
	Summary     model.RunSummary
	Diagnostics model.Diagnostics
}

// Aggregate folds in-window resolved events into one summary per roster entry.
// Repeated markers for the same student and session count once.
func Aggregate(resolved []model.ResolvedEvent, roster Roster, sessions []model.Session) Aggregation {
	var diag model.Diagnostics
	attended := make(map[string]map[model.Session]bool, len(roster.Entries))
	markers := make(map[string]int)
	ambiguous := make(map[string]int)

	for _, re := range resolved {
		if !re.InWindow {
			continue
		}
		switch re.Outcome.Kind {
		case model.Ambiguous:
			diag.AmbiguousCount++
			for _, candidate := range re.Outcome.Candidates {
				ambiguous[candidate]++
			}
		case model.Unmatched:
			diag.UnmatchedCount++
		}

		key, ok := attribute(re, roster.FromGradebook)
		if !ok {
			continue
		}
		if attended[key] == nil {
			attended[key] = make(map[model.Session]bool)
		}
		attended[key][re.Event.Session()] = true
		markers[key]++
	}

	students := make([]model.StudentAttendanceSummary, len(roster.Entries))
	withAttendance := 0
	for i, entry := range roster.Entries {
		dates := make([]model.Session, 0, len(attended[entry.Key]))
		for s := range attended[entry.Key] {
			dates = append(dates, s)
		}
		sort.Slice(dates, func(a, b int) bool { return dates[a] < dates[b] })
		if len(dates) > 0 {
			withAttendance++
		}
		students[i] = model.StudentAttendanceSummary{
			StudentID:        entry.Identity(),
			Email:            entry.Email,
			DisplayName:      entry.DisplayName,
			SessionsAttended: dates,
			AttendedCount:    len(dates),
			AmbiguousEvents:  ambiguous[entry.Key],
			DuplicateMarkers: markers[entry.Key] - len(dates),
		}
	}

	return Aggregation{
		Students:    students,
		Diagnostics: diag,
		Summary: model.RunSummary{
			StudentsTotal:          len(students),
			StudentsWithAttendance: withAttendance,
			CoveragePct:            coverage(withAttendance, len(students)),
			LectureDates:           LectureDates(sessions),
		},
	}
}

// coverage is 100 * part / total, or 0 when total is 0.
func coverage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return 100 * float64(part) / float64(total)
}
