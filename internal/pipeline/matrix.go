package pipeline

import (
	"attendance-reconciler/internal/model"
)

// MatrixRow is one student's presence across the run's sessions.
type MatrixRow struct {
	Key         string `json:"key"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Cells       []bool `json:"cells"`
}

// Matrix is a student × session presence grid. Columns follow the ascending
// session order and rows follow the roster order.
type Matrix struct {
	Sessions []model.Session `json:"sessions"`
	Rows     []MatrixRow     `json:"rows"`
}

// BuildMatrix marks a cell for every attributed in-window event.
func BuildMatrix(resolved []model.ResolvedEvent, roster Roster, sessions []model.Session) Matrix {
	column := make(map[model.Session]int, len(sessions))
	for i, s := range sessions {
		column[s] = i
	}
	row := make(map[string]int, len(roster.Entries))
	m := Matrix{Sessions: sessions, Rows: make([]MatrixRow, len(roster.Entries))}
	for i, entry := range roster.Entries {
		row[entry.Key] = i
		m.Rows[i] = MatrixRow{
			Key:         entry.Identity(),
			Email:       entry.Email,
			DisplayName: entry.DisplayName,
			Cells:       make([]bool, len(sessions)),
		}
	}

	for _, re := range resolved {
		key, ok := attribute(re, roster.FromGradebook)
		if !ok {
			continue
		}
		r, inRoster := row[key]
		c, inSessions := column[re.Event.Session()]
		if inRoster && inSessions {
			m.Rows[r].Cells[c] = true
		}
	}
	return m
}

// Total returns how many sessions the row is marked present for.
func (r MatrixRow) Total() int {
	n := 0
	for _, present := range r.Cells {
		if present {
			n++
		}
	}
	return n
}
