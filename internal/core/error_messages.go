package core

// error_messages.go maps errors to user-facing messages.
//
// Each message carries a code for support reference. Users quote the code;
// support staff look it up here.
//
// # Ingestion Errors (ING001-ING099)
//
//	ING001 - Undetermined type: Could not tell which table the file is for
//	         Action: Pick the table explicitly or check the header row
//	         Matches: ErrUndeterminedEntityType
//
//	ING002 - Unknown table: The requested table is not supported
//	         Action: Use airline, airport, flight, passenger, sale or auto
//	         Matches: ErrUnknownEntity
//
//	ING003 - Empty upload: The upload contains no data rows
//	         Action: Upload a file with a header and at least one row
//	         Matches: ErrEmptyUpload
//
//	ING004 - Invalid payload: A JSON body is not a list of row objects
//	         Matches: ErrInvalidPayload
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key: A record with this key already exists
//	        Action: The row was moved to quarantine; review dirty_data
//	        Matches: *StoreError with Kind UniqueViolation
//
//	DB002 - Store rejected: The database rejected the record
//	        Action: The row was moved to quarantine; review dirty_data
//	        Matches: *StoreError with Kind StoreOther
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid key: A key column could not be normalized
//	         Matches: ErrInvalidKey
//
//	VAL002 - Required field: A required field is empty
//	         Matches: ErrMissingRequiredField
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - Invalid CSV: File is not a valid CSV
//	          Matches: ErrInvalidCSV
//
//	FILE002 - File too large: Upload exceeds the configured size limit
//	          Matches: ErrFileTooLarge
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL001 - System busy: Too many uploads in progress
//	         Matches: ErrTooManyUploads
//
//	UPL002 - Request cancelled
//	         Matches: context.Canceled
//
//	UPL003 - Request timeout
//	         Matches: context.DeadlineExceeded
//
// # Streaming Errors (STR001-STR099)
//
//	STR001 - Queue unavailable: The message queue could not be reached
//	         Matches: ErrTransportFault, ErrStreamingDisabled
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check application logs for the original
// technical error.

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyUpload is returned when an upload has no data rows.
var ErrEmptyUpload = errors.New("empty upload")

// ErrInvalidPayload is returned when a JSON ingest body is malformed.
var ErrInvalidPayload = errors.New("invalid payload")

// ErrInvalidCSV is returned when an upload cannot be parsed as CSV.
var ErrInvalidCSV = errors.New("invalid csv")

// ErrFileTooLarge is returned when an upload exceeds the size limit.
var ErrFileTooLarge = errors.New("file too large")

// ErrStreamingDisabled is returned by operations that need a queue when none
// is configured.
var ErrStreamingDisabled = errors.New("streaming is not configured")

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorMapping ties a match predicate to a user message.
type errorMapping struct {
	match func(error) bool
	msg   UserMessage
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

func storeKind(kind StoreErrorKind) func(error) bool {
	return func(err error) bool {
		var se *StoreError
		return errors.As(err, &se) && se.Kind == kind
	}
}

// errorMappings is checked in order; the first match wins.
var errorMappings = []errorMapping{
	{is(ErrUndeterminedEntityType), UserMessage{
		Message: "Could not determine table type from CSV columns",
		Action:  "Pick the table explicitly or check the header row",
		Code:    "ING001",
	}},
	{is(ErrUnknownEntity), UserMessage{
		Message: "Unknown table type",
		Action:  "Use airline, airport, flight, passenger, sale or auto",
		Code:    "ING002",
	}},
	{is(ErrEmptyUpload), UserMessage{
		Message: "The upload contains no data rows",
		Action:  "Upload a file with a header and at least one row",
		Code:    "ING003",
	}},
	{is(ErrInvalidPayload), UserMessage{
		Message: "The request body is not a list of rows",
		Action:  "Send a JSON array of objects, or {\"data\": [...]}",
		Code:    "ING004",
	}},
	{storeKind(UniqueViolation), UserMessage{
		Message: "A record with this key already exists",
		Action:  "The row was moved to quarantine; review dirty_data",
		Code:    "DB001",
	}},
	{is(ErrInvalidKey), UserMessage{
		Message: "A key column could not be normalized",
		Action:  "Check the key columns of the rejected rows",
		Code:    "VAL001",
	}},
	{is(ErrMissingRequiredField), UserMessage{
		Message: "Required field is empty",
		Action:  "Ensure all required columns have values",
		Code:    "VAL002",
	}},
	{is(ErrInvalidCSV), UserMessage{
		Message: "File is not a valid CSV",
		Action:  "Ensure file is comma-separated with a header row",
		Code:    "FILE001",
	}},
	{is(ErrFileTooLarge), UserMessage{
		Message: "File exceeds maximum size limit",
		Action:  "Split the file into smaller parts",
		Code:    "FILE002",
	}},
	{is(ErrTooManyUploads), UserMessage{
		Message: "System is busy processing other uploads",
		Action:  "Please wait a moment and try again",
		Code:    "UPL001",
	}},
	{is(context.Canceled), UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL002",
	}},
	{is(context.DeadlineExceeded), UserMessage{
		Message: "Request timed out",
		Action:  "Try uploading a smaller file or check your connection",
		Code:    "UPL003",
	}},
	{is(ErrTransportFault), UserMessage{
		Message: "The message queue could not be reached",
		Action:  "Please try again in a few moments",
		Code:    "STR001",
	}},
	{is(ErrStreamingDisabled), UserMessage{
		Message: "Streaming ingestion is not enabled",
		Action:  "Use the direct upload instead",
		Code:    "STR001",
	}},
	{storeKind(StoreOther), UserMessage{
		Message: "The database rejected the record",
		Action:  "The row was moved to quarantine; review dirty_data",
		Code:    "DB002",
	}},
}

// defaultMessage is returned when no mapping matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Returns the zero UserMessage for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	for _, m := range errorMappings {
		if m.match(err) {
			return m.msg
		}
	}
	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
