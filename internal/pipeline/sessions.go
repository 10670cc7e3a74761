package pipeline

import (
	"sort"

	"attendance-reconciler/internal/model"
)

// Window is an inclusive reporting window of calendar dates.
type Window struct {
	Start model.Session
	End   model.Session
}

// Validate returns a RangeError when Start is after End.
func (w Window) Validate() error {
	if w.Start > w.End {
		return &RangeError{Start: w.Start, End: w.End}
	}
	return nil
}

// SessionSet is the extractor's output: the ordered sessions plus, per event,
// whether it fell inside the window.
type SessionSet struct {
	Sessions []model.Session
	InWindow []bool
}

// ExtractSessions returns every distinct in-window event date in ascending
// order. Out-of-window events are counted in FilteredOut.
func ExtractSessions(events []model.AttendanceEvent, window Window) (SessionSet, model.Diagnostics, error) {
	var diag model.Diagnostics
	if err := window.Validate(); err != nil {
		return SessionSet{}, diag, err
	}

	set := SessionSet{InWindow: make([]bool, len(events))}
	distinct := make(map[model.Session]bool)
	for i, ev := range events {
		session := ev.Session()
		if !session.Within(window.Start, window.End) {
			diag.FilteredOut++
			continue
		}
		set.InWindow[i] = true
		distinct[session] = true
	}

	set.Sessions = make([]model.Session, 0, len(distinct))
	for s := range distinct {
		set.Sessions = append(set.Sessions, s)
	}
	sort.Slice(set.Sessions, func(i, j int) bool { return set.Sessions[i] < set.Sessions[j] })
	return set, diag, nil
}

// LectureDates formats sessions as calendar date strings.
func LectureDates(sessions []model.Session) []string {
	dates := make([]string, len(sessions))
	for i, s := range sessions {
		dates[i] = s.String()
	}
	return dates
}
