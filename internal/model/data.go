package model

import (
	"strings"
	"time"
)

// IdentityHint carries whatever identifying fields an attendance row had.
// Empty strings mean the field was absent or blank.
type IdentityHint struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	ID    string `json:"id,omitempty"`
}

// IsEmpty reports whether the hint carries no identifying value at all.
func (h IdentityHint) IsEmpty() bool {
	return h.Name == "" && h.Email == "" && h.ID == ""
}

// AttendanceEvent is one normalized attendance-export row.
type AttendanceEvent struct {
	Row          int          `json:"row"` // 1-based data row in the attendance table
	Hint         IdentityHint `json:"identity_hint"`
	Timestamp    time.Time    `json:"timestamp"`
	SessionLabel string       `json:"raw_session_label"`
}

// Session returns the calendar date the event was recorded on.
func (e AttendanceEvent) Session() Session {
	return SessionOf(e.Timestamp)
}

// GradebookIdentity is the canonical student identity taken from one gradebook row.
type GradebookIdentity struct {
	Row         int    `json:"row"`
	StudentID   string `json:"student_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// Key is the join key of record: the student ID, or the email for rows that
// only carry an email.
func (g GradebookIdentity) Key() string {
	if g.StudentID != "" {
		return g.StudentID
	}
	return g.Email
}

// Session is a lecture instance keyed by calendar date (YYYY-MM-DD).
// The zero-padded layout makes string order chronological order.
type Session string

const sessionLayout = "2006-01-02"

// SessionOf derives the session date from a timestamp's wall clock.
func SessionOf(t time.Time) Session {
	return Session(t.Format(sessionLayout))
}

// ParseSession parses a YYYY-MM-DD calendar date.
func ParseSession(s string) (Session, error) {
	t, err := time.Parse(sessionLayout, strings.TrimSpace(s))
	if err != nil {
		return "", err
	}
	return SessionOf(t), nil
}

func (s Session) String() string { return string(s) }

// Within reports whether s falls in the inclusive window [start, end].
func (s Session) Within(start, end Session) bool {
	return s >= start && s <= end
}

// OutcomeKind classifies a resolution outcome.
type OutcomeKind string

const (
	Matched   OutcomeKind = "matched"
	Ambiguous OutcomeKind = "ambiguous"
	Unmatched OutcomeKind = "unmatched"
)

// ResolutionOutcome is the result of matching one attendance event against
// the gradebook. StudentID is set for Matched, Candidates for Ambiguous.
type ResolutionOutcome struct {
	Kind       OutcomeKind `json:"kind"`
	StudentID  string      `json:"student_id,omitempty"`
	Candidates []string    `json:"candidates,omitempty"`
	Stage      string      `json:"stage,omitempty"` // matcher that produced the outcome
}

// ResolvedEvent pairs an event with its single outcome.
type ResolvedEvent struct {
	Event    AttendanceEvent   `json:"event"`
	Outcome  ResolutionOutcome `json:"outcome"`
	InWindow bool              `json:"in_window"`
}

// StudentAttendanceSummary is the per-student aggregate.
type StudentAttendanceSummary struct {
	StudentID        string    `json:"student_id"`
	Email            string    `json:"email,omitempty"`
	DisplayName      string    `json:"display_name,omitempty"`
	SessionsAttended []Session `json:"sessions_attended"`
	AttendedCount    int       `json:"attended_count"`
	AmbiguousEvents  int       `json:"ambiguous_events,omitempty"`
	DuplicateMarkers int       `json:"duplicate_markers,omitempty"`
}
