package stats

import (
	"errors"
	"fmt"
)

// ErrClockSkew marks a record whose end precedes its start, or whose start
// lies in the future. Such records are kept for counts but excluded from
// runtime averages.
var ErrClockSkew = errors.New("negative runtime")

// ErrNegativeCount marks a job counter below zero.
var ErrNegativeCount = errors.New("negative count")

// MalformedRecordError reports a job or task that lacks a required field or
// carries an unparsable timestamp or a negative counter. The record is excluded from all
// aggregates.
type MalformedRecordError struct {
	Kind  string // "job" or "task"
	ID    string
	Field string
	Err   error
}

func (e *MalformedRecordError) Error() string {
	id := e.ID
	if id == "" {
		id = "<unknown>"
	}
	if e.Err != nil {
		return fmt.Sprintf("malformed %s %s: field %s: %v", e.Kind, id, e.Field, e.Err)
	}
	return fmt.Sprintf("malformed %s %s: missing %s", e.Kind, id, e.Field)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}
