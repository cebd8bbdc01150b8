package core

import (
	"errors"
	"fmt"
)

// Error taxonomy. Row-level kinds (ErrInvalidKey, ErrMissingRequiredField) and
// store-level kinds (UniqueViolation, StoreOther) never escape a batch: they
// become QuarantineEntry values. The rest surface to callers.
var (
	// ErrInvalidKey is returned when no canonical key can be derived for a row.
	ErrInvalidKey = errors.New("invalid key")

	// ErrMissingRequiredField is returned when a required value is empty
	// after normalization.
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrUndeterminedEntityType is returned when auto-detection finds no
	// matching column signature. Nothing from the upload is processed.
	ErrUndeterminedEntityType = errors.New("could not determine table type from columns")

	// ErrUnknownEntity is returned for an entity name outside the closed set.
	ErrUnknownEntity = errors.New("unknown table")

	// ErrTransportFault marks queue/poll-level errors. The streaming loop logs
	// and skips them.
	ErrTransportFault = errors.New("transport fault")
)

// RowError explains why a single row was quarantined during cleaning.
// Error returns the human-readable reason stored with the quarantine entry.
type RowError struct {
	Kind   error  // ErrInvalidKey or ErrMissingRequiredField
	Reason string // e.g. "Invalid AirlineKey", "Missing required fields"
}

func (e *RowError) Error() string { return e.Reason }

func (e *RowError) Unwrap() error { return e.Kind }

func invalidKey(reason string) *RowError {
	return &RowError{Kind: ErrInvalidKey, Reason: reason}
}

func missingField(reason string) *RowError {
	return &RowError{Kind: ErrMissingRequiredField, Reason: reason}
}

// StoreErrorKind classifies a store-side rejection of a single insert.
type StoreErrorKind int

const (
	// StoreOther is any rejection that is not a unique-key violation.
	StoreOther StoreErrorKind = iota
	// UniqueViolation means a uniquely constrained key already exists.
	UniqueViolation
)

func (k StoreErrorKind) String() string {
	switch k {
	case UniqueViolation:
		return "unique_violation"
	default:
		return "other"
	}
}

// StoreError is the structured error store adapters return from inserts.
// Adapters decide the Kind from the driver's error code; callers branch on
// Kind and never inspect the message.
type StoreError struct {
	Kind  StoreErrorKind
	Table string
	Err   error
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: store error (%s)", e.Table, e.Kind)
	}
	return e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError wraps err with a classification for table.
func NewStoreError(kind StoreErrorKind, table string, err error) *StoreError {
	return &StoreError{Kind: kind, Table: table, Err: err}
}

// classifyStoreError returns the kind carried by err, defaulting to StoreOther
// for errors that did not come from a store adapter.
func classifyStoreError(err error) StoreErrorKind {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind
	}
	return StoreOther
}
