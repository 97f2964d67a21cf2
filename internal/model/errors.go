package model

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrPlacement  = errors.New("placement failed")
	ErrImport     = errors.New("import failed")
)

// ValidationError reports malformed or degenerate input.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation.Error(), e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation.Error(), e.Field, e.Msg)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalidf builds a ValidationError for field.
func Invalidf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a reference to an entity that is not present.
type NotFoundError struct {
	Kind string // "todo" or "block"
	ID   string
}

func (e *NotFoundError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s %q %s", e.Kind, e.ID, ErrNotFound.Error())
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// PlacementReason enumerates why collision resolution gave up.
type PlacementReason string

const (
	NoRoomAvailable PlacementReason = "no room available"
)

// PlacementError is returned when no non-overlapping slot remains.
type PlacementError struct {
	Reason PlacementReason
	Day    Day
	Start  TimeOfDay
	End    TimeOfDay
}

func (e *PlacementError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s for %s %s-%s", ErrPlacement.Error(), e.Reason, e.Day, e.Start, e.End)
}

func (e *PlacementError) Unwrap() error { return ErrPlacement }

// ImportReason enumerates import failure classes.
type ImportReason string

const (
	ImportDecode          ImportReason = "decode failed"
	ImportEmpty           ImportReason = "no events in calendar"
	ImportNothingInWindow ImportReason = "no events in this week"
	ImportInvalid         ImportReason = "invalid imported block"
)

// ImportError wraps any failure of an import call. The week is unchanged.
type ImportError struct {
	Reason     ImportReason
	SourcePath string
	Err        error
}

func (e *ImportError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s: %s", ErrImport.Error(), e.Reason)
	if e.SourcePath != "" {
		msg += " (" + e.SourcePath + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *ImportError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrImport}
	}
	return []error{ErrImport, e.Err}
}
