package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"attendance-reconciler/internal/model"
)

var (
	// ErrUnknownJoinMode is returned for a join mode outside auto/id/email/none.
	ErrUnknownJoinMode = errors.New("unknown join mode")
	// ErrEmptyTable is returned when an input table has no header row.
	ErrEmptyTable = errors.New("table has no header row")
)

// SchemaError reports a required column that could not be located.
type SchemaError struct {
	Table    string
	Field    string
	Accepted []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s table is missing a %s column (accepted headers: %s)",
		e.Table, e.Field, strings.Join(e.Accepted, ", "))
}

// RangeError reports a reporting window whose start is after its end.
type RangeError struct {
	Start model.Session
	End   model.Session
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("start date %s is after end date %s", e.Start, e.End)
}

// DuplicateIdentityError reports two gradebook rows sharing a normalized student ID.
type DuplicateIdentityError struct {
	StudentID string
	FirstRow  int
	SecondRow int
}

func (e *DuplicateIdentityError) Error() string {
	return fmt.Sprintf("gradebook rows %d and %d share student id %q", e.FirstRow, e.SecondRow, e.StudentID)
}

// IsInputError reports whether err is caused by bad input rather than by the system.
func IsInputError(err error) bool {
	var schemaErr *SchemaError
	var rangeErr *RangeError
	var dupErr *DuplicateIdentityError
	return errors.As(err, &schemaErr) ||
		errors.As(err, &rangeErr) ||
		errors.As(err, &dupErr) ||
		errors.Is(err, ErrUnknownJoinMode) ||
		errors.Is(err, ErrEmptyTable)
}
