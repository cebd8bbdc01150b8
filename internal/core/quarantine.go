package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// QuarantineSink persists quarantine batches. It is terminal: a failed write
// is logged and reported, never retried and never fed back into the pipeline.
type QuarantineSink struct {
	primary  QuarantineWriter
	fallback QuarantineWriter
	rec      Recorder
	now      func() time.Time
}

// SinkOption configures a QuarantineSink.
type SinkOption func(*QuarantineSink)

// WithFallback sets a writer that receives a batch the primary rejected.
func WithFallback(w QuarantineWriter) SinkOption {
	return func(s *QuarantineSink) { s.fallback = w }
}

// WithRecorder sets the Recorder told about failed writes.
func WithRecorder(r Recorder) SinkOption {
	return func(s *QuarantineSink) {
		if r != nil {
			s.rec = r
		}
	}
}

// WithClock overrides the capture timestamp source.
func WithClock(now func() time.Time) SinkOption {
	return func(s *QuarantineSink) { s.now = now }
}

// NewQuarantineSink returns a sink writing to primary.
func NewQuarantineSink(primary QuarantineWriter, opts ...SinkOption) *QuarantineSink {
	s := &QuarantineSink{
		primary: primary,
		rec:     NopRecorder,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Write stamps every entry with one capture time and persists the batch in a
// single write. An empty batch is a no-op.
//
// When the primary write fails and a fallback is configured, the batch is
// handed to the fallback once. The primary error is returned either way.
func (s *QuarantineSink) Write(ctx context.Context, entries []QuarantineEntry) error {
	if len(entries) == 0 {
		return nil
	}

	captured := s.now()
	batch := make([]QuarantineEntry, len(entries))
	for i, e := range entries {
		e.CapturedAt = captured
		batch[i] = e
	}

	err := s.primary.InsertQuarantine(ctx, batch)
	if err == nil {
		return nil
	}

	s.rec.QuarantineWriteFailed(len(batch))
	slog.Error("quarantine write failed",
		"entries", len(batch),
		"error", err)

	if s.fallback != nil {
		if ferr := s.fallback.InsertQuarantine(ctx, batch); ferr != nil {
			slog.Error("fallback quarantine write failed",
				"entries", len(batch),
				"error", ferr)
		} else {
			slog.Warn("quarantine batch saved to fallback store", "entries", len(batch))
		}
	}
	return fmt.Errorf("write quarantine: %w", err)
}
