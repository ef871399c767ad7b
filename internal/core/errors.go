package core

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrRunInProgress is returned when a run is requested while another holds
	// the limiter slot.
	ErrRunInProgress = errors.New("import run already in progress")

	// ErrRunNotFound is returned for an unknown run id.
	ErrRunNotFound = errors.New("import run not found")

	// ErrRunNotFinished is returned when the result of a running import is requested.
	ErrRunNotFinished = errors.New("import run has not finished")
)

// MalformedRecordError reports input that cannot be read or converted. Row and
// Line are zero for errors about the file as a whole (missing file, header).
type MalformedRecordError struct {
	Kind   Kind
	File   string
	Row    int
	Line   int
	Column string
	Value  string
	Reason string
	Err    error
}

func (e *MalformedRecordError) Error() string {
	msg := fmt.Sprintf("malformed record in %s", e.File)
	if e.Line > 0 {
		msg += fmt.Sprintf(" (row %d, line %d)", e.Row, e.Line)
	}
	if e.Column != "" {
		msg += fmt.Sprintf(": column %s=%q", e.Column, e.Value)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

// DuplicateAllocationError reports a transient id seen twice within one kind.
type DuplicateAllocationError struct {
	Kind        Kind
	TransientID string
	Row         int
}

func (e *DuplicateAllocationError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("duplicate %s id %q at row %d", e.Kind, e.TransientID, e.Row)
	}
	return fmt.Sprintf("duplicate %s id %q", e.Kind, e.TransientID)
}

// UnresolvedReferenceError reports a reference to a transient id that no
// committed stage of the target kind allocated.
type UnresolvedReferenceError struct {
	Kind        Kind // Kind of the referring record
	Row         int
	Column      string
	LineItem    int // 1-based position inside a packed column, 0 otherwise
	Target      Kind
	TransientID string
}

func (e *UnresolvedReferenceError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("unresolved %s reference %q", e.Target, e.TransientID)
	}
	column := e.Column
	if e.LineItem > 0 {
		column = fmt.Sprintf("%s line item %d", e.Column, e.LineItem)
	}
	return fmt.Sprintf("%s row %d: column %s references unknown %s id %q",
		e.Kind, e.Row, column, e.Target, e.TransientID)
}

// PartialInsertError reports a batch the store did not fully accept.
type PartialInsertError struct {
	Kind       Kind
	Collection string
	Batch      int
	Submitted  int
	Inserted   int
	Err        error
}

func (e *PartialInsertError) Error() string {
	msg := fmt.Sprintf("batch %d into %s: inserted %d of %d documents",
		e.Batch, e.Collection, e.Inserted, e.Submitted)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PartialInsertError) Unwrap() error { return e.Err }

// IndexProvisioningError reports an index the store rejected.
type IndexProvisioningError struct {
	Collection string
	Index      string
	Err        error
}

func (e *IndexProvisioningError) Error() string {
	return fmt.Sprintf("create index %s on %s: %v", e.Index, e.Collection, e.Err)
}

func (e *IndexProvisioningError) Unwrap() error { return e.Err }

// StageError ties a failure to the pipeline state it happened in.
type StageError struct {
	State State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.State, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailedState returns the pipeline state an error was raised in, or "" when
// the error did not come from a pipeline stage.
func FailedState(err error) State {
	var se *StageError
	if errors.As(err, &se) {
		return se.State
	}
	return ""
}
