package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultUploadTimeout bounds one CleanAndCommit call when ServiceDeps
// leaves Timeout unset.
const DefaultUploadTimeout = 10 * time.Minute

// Service is the ingestion entry point used by the web layer: it cleans a
// batch, commits the clean half row by row and quarantines everything else.
type Service struct {
	cleaner  *Cleaner
	store    Inserter
	sink     *QuarantineSink
	limiter  *UploadLimiter
	rec      Recorder
	pub      Publisher
	rawTopic string
	timeout  time.Duration
}

// ServiceDeps are the collaborators of a Service. Publisher may be nil when
// streaming is disabled; Limiter and Recorder get defaults when nil.
type ServiceDeps struct {
	Cleaner   *Cleaner
	Store     Inserter
	Sink      *QuarantineSink
	Limiter   *UploadLimiter
	Recorder  Recorder
	Publisher Publisher
	RawTopic  string
	Timeout   time.Duration
}

// NewService creates a Service from deps.
func NewService(deps ServiceDeps) (*Service, error) {
	if deps.Store == nil {
		return nil, errors.New("core: service requires a store")
	}
	if deps.Sink == nil {
		return nil, errors.New("core: service requires a quarantine sink")
	}
	s := &Service{
		cleaner:  deps.Cleaner,
		store:    deps.Store,
		sink:     deps.Sink,
		limiter:  deps.Limiter,
		rec:      deps.Recorder,
		pub:      deps.Publisher,
		rawTopic: deps.RawTopic,
		timeout:  deps.Timeout,
	}
	if s.timeout <= 0 {
		s.timeout = DefaultUploadTimeout
	}
	if s.rec == nil {
		s.rec = NopRecorder
	}
	if s.cleaner == nil {
		s.cleaner = NewCleaner(nil, s.rec)
	}
	if s.limiter == nil {
		s.limiter = NewUploadLimiter(DefaultMaxConcurrentUploads, DefaultMaxWaitTime)
	}
	return s, nil
}

// Limiter returns the limiter guarding CleanAndCommit.
func (s *Service) Limiter() *UploadLimiter { return s.limiter }

// StreamingEnabled reports whether PublishRaw has a queue to publish to.
func (s *Service) StreamingEnabled() bool { return s.pub != nil }

// ResolveEntity turns an entity name into a kind, detecting it from headers
// when the name is "auto" or empty.
func ResolveEntity(name string, headers []string) (EntityKind, error) {
	kind, auto, err := ParseEntityKind(name)
	if err != nil {
		return 0, err
	}
	if auto {
		return DetectEntity(headers)
	}
	return kind, nil
}

// CleanAndCommit cleans rows for entity, inserts the clean records one at a
// time and writes every rejected row to quarantine in one batch.
//
// An unknown entity or an undetectable header is returned as an error and
// nothing is processed. A failed quarantine write does not fail the call;
// it is reported in Summary.QuarantineError.
func (s *Service) CleanAndCommit(ctx context.Context, entity string, headers []string, rows []RawRecord) (Summary, error) {
	kind, err := ResolveEntity(entity, headerList(headers, rows))
	if err != nil {
		return Summary{}, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return Summary{}, err
	}
	defer s.limiter.Release()

	// Once started, a batch runs to completion even if the caller goes away:
	// rows already cleaned must end up in the table or in quarantine.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	start := time.Now()
	batchID := uuid.New().String()
	ctx = ContextWithBatchID(ctx, batchID)
	table := kind.Table()
	log := slog.With("batch_id", batchID, "table", table)

	p := s.cleaner.Clean(kind, rows)
	inserted, rejected := Commit(ctx, s.store, table, p.Clean)
	s.rec.RowsCommitted(table, inserted)
	s.rec.RowsQuarantined(table, StageCommit, len(rejected))

	quarantine := make([]QuarantineEntry, 0, len(p.Quarantined)+len(rejected))
	quarantine = append(quarantine, p.Quarantined...)
	quarantine = append(quarantine, rejected...)

	sum := Summary{
		BatchID:          batchID,
		Successful:       inserted,
		Quarantined:      len(quarantine),
		DestinationTable: table,
		CleaningErrors:   len(p.Quarantined),
		CommitRejected:   len(rejected),
	}
	if err := s.sink.Write(ctx, quarantine); err != nil {
		sum.QuarantineError = err.Error()
	}
	sum.DurationMS = time.Since(start).Milliseconds()
	sum.Message = fmt.Sprintf("Processed %d records: %d inserted, %d quarantined",
		len(rows), sum.Successful, sum.Quarantined)

	log.Info("batch committed",
		"rows", len(rows),
		"successful", sum.Successful,
		"cleaning_errors", sum.CleaningErrors,
		"commit_rejected", sum.CommitRejected,
		"duration_ms", sum.DurationMS)
	return sum, nil
}

// Preview cleans rows without committing or quarantining anything. Synthetic
// ids issued while previewing are consumed all the same.
func (s *Service) Preview(entity string, headers []string, rows []RawRecord) (EntityKind, Partition, error) {
	kind, err := ResolveEntity(entity, headerList(headers, rows))
	if err != nil {
		return 0, Partition{}, err
	}
	return kind, s.cleaner.Clean(kind, rows), nil
}

// PublishRaw sends rows to the raw topic for the streaming loop to clean.
func (s *Service) PublishRaw(ctx context.Context, entity string, headers []string, rows []RawRecord) (EntityKind, error) {
	if s.pub == nil {
		return 0, ErrStreamingDisabled
	}
	kind, err := ResolveEntity(entity, headerList(headers, rows))
	if err != nil {
		return 0, err
	}
	if err := PublishRaw(ctx, s.pub, s.rawTopic, kind, rows); err != nil {
		return 0, err
	}
	slog.Info("raw batch published", "topic", s.rawTopic, "table", kind.Table(), "rows", len(rows))
	return kind, nil
}

// headerList returns headers, or the keys of the first row when no header
// row was supplied (JSON ingest).
func headerList(headers []string, rows []RawRecord) []string {
	if len(headers) > 0 || len(rows) == 0 {
		return headers
	}
	return rows[0].Keys()
}
