package pipeline

import (
	"strings"
)

// field is a logical column an input table may carry.
type field string

const (
	fieldTimestamp field = "timestamp"
	fieldEmail     field = "email"
	fieldID        field = "id"
	fieldName      field = "name"
)

// aliasTable maps each logical field to the header spellings accepted for it,
// in priority order: when several are present the earliest alias wins.
type aliasTable struct {
	fields  []field
	aliases map[field][]string
}

var attendanceAliases = aliasTable{
	fields: []field{fieldTimestamp, fieldID, fieldEmail, fieldName},
	aliases: map[field][]string{
		fieldTimestamp: {"timestamp", "join time", "join_time", "joined at", "time joined", "join timestamp", "date", "date/time", "first seen"},
		fieldEmail:     {"email", "e-mail", "email address", "user email", "student email", "attendee email"},
		fieldID:        {"id", "student id", "student_id", "sid", "sis user id"},
		fieldName:      {"name", "student", "student name", "full name", "display name", "participant", "name (original name)", "user name"},
	},
}

var gradebookAliases = aliasTable{
	fields: []field{fieldID, fieldEmail, fieldName},
	aliases: map[field][]string{
		fieldID:    {"id", "sis user id", "student id", "student_id", "sid"},
		fieldEmail: {"email", "e-mail", "student email", "email address", "sis login id"},
		fieldName:  {"student", "name", "student name", "display name", "full name"},
	},
}

// columnIndex is an alias table resolved against one table's headers.
// Missing fields map to -1.
type columnIndex map[field]int

func (c columnIndex) has(f field) bool { return c[f] >= 0 }

// resolveColumns matches headers case-insensitively against the alias table,
// once per table. A header is bound to at most one field.
func resolveColumns(headers []string, table aliasTable) columnIndex {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = normalizeHeader(h)
	}

	index := make(columnIndex, len(table.fields))
	used := make(map[int]bool)
	for _, f := range table.fields {
		index[f] = -1
	aliasLoop:
		for _, alias := range table.aliases[f] {
			for i, h := range normalized {
				if h == alias && !used[i] {
					index[f] = i
					used[i] = true
					break aliasLoop
				}
			}
		}
	}
	return index
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

// requireColumns returns a SchemaError for the first required field that is missing.
func requireColumns(tableName string, index columnIndex, table aliasTable, required ...field) error {
	for _, f := range required {
		if !index.has(f) {
			return &SchemaError{Table: tableName, Field: string(f), Accepted: table.aliases[f]}
		}
	}
	return nil
}

// requireAnyColumn returns a SchemaError when none of the candidate fields is present.
func requireAnyColumn(tableName string, index columnIndex, table aliasTable, candidates ...field) error {
	var accepted []string
	names := make([]string, 0, len(candidates))
	for _, f := range candidates {
		if index.has(f) {
			return nil
		}
		names = append(names, string(f))
		accepted = append(accepted, table.aliases[f]...)
	}
	return &SchemaError{
		Table:    tableName,
		Field:    "identity (" + strings.Join(names, ", ") + ")",
		Accepted: accepted,
	}
}
