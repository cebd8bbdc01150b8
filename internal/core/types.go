package core

import (
	"context"
	"time"
)

// CleanRecord is a validated row bound for exactly one destination table.
// Fields are in insert column order.
type CleanRecord struct {
	Table  string
	Fields Record
}

// QuarantineEntry is a row that failed cleaning or commit, with its cause.
type QuarantineEntry struct {
	TableName    string    `json:"table_name"`
	OriginalData Record    `json:"original_data"`
	ErrorReason  string    `json:"error_reason"`
	CapturedAt   time.Time `json:"captured_at"`
}

// Partition is the output of cleaning one batch. Both slices keep input order.
type Partition struct {
	Clean       []CleanRecord
	Quarantined []QuarantineEntry
}

// Records returns the field sets of the clean partition.
func (p Partition) Records() []Record {
	out := make([]Record, len(p.Clean))
	for i, c := range p.Clean {
		out[i] = c.Fields
	}
	return out
}

// Summary is the result of one CleanAndCommit call.
type Summary struct {
	BatchID          string `json:"batch_id"`
	Successful       int    `json:"successful"`
	Quarantined      int    `json:"quarantined"`
	DestinationTable string `json:"destination_table"`

	// CleaningErrors counts rows rejected by the cleaner; CommitRejected
	// counts rows the store refused. Together they make up Quarantined.
	CleaningErrors int `json:"cleaning_errors"`
	CommitRejected int `json:"cleaned_but_duplicate"`

	DurationMS      int64  `json:"duration_ms"`
	Message         string `json:"message"`
	QuarantineError string `json:"quarantine_error,omitempty"`
}

// Inserter inserts one clean record. Rejections are reported as *StoreError
// so the caller can tell unique-key violations from other failures.
type Inserter interface {
	InsertOne(ctx context.Context, table string, rec Record) error
}

// QuarantineWriter persists a batch of quarantine entries in one write.
type QuarantineWriter interface {
	InsertQuarantine(ctx context.Context, entries []QuarantineEntry) error
}

// Recorder receives pipeline counts. internal/metrics provides the
// Prometheus implementation.
type Recorder interface {
	RowsCleaned(table string, n int)
	RowsQuarantined(table, stage string, n int)
	RowsCommitted(table string, n int)
	QuarantineWriteFailed(n int)
	StreamMessage(outcome string)
}

// Quarantine stages reported to a Recorder.
const (
	StageClean  = "clean"
	StageCommit = "commit"
)

// Stream message outcomes reported to a Recorder.
const (
	OutcomeProcessed = "processed"
	OutcomeDecodeErr = "decode_error"
	OutcomeUnknown   = "unknown_table"
	OutcomeTransport = "transport_error"
	OutcomePublish   = "publish_error"
)

type nopRecorder struct{}

func (nopRecorder) RowsCleaned(string, int)             {}
func (nopRecorder) RowsQuarantined(string, string, int) {}
func (nopRecorder) RowsCommitted(string, int)           {}
func (nopRecorder) QuarantineWriteFailed(int)           {}
func (nopRecorder) StreamMessage(string)                {}

// NopRecorder discards all counts.
var NopRecorder Recorder = nopRecorder{}
