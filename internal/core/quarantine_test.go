package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestQuarantineSink_StampsAndWritesOnce(t *testing.T) {
	store := newMemStore()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sink := NewQuarantineSink(store, WithClock(func() time.Time { return at }))

	entries := []QuarantineEntry{
		{TableName: "airlines", OriginalData: NewRecord("AirlineKey", ""), ErrorReason: "Invalid AirlineKey"},
		{TableName: "airlines", OriginalData: NewRecord("airlinekey", "BA"), ErrorReason: "Duplicate key: x"},
	}
	if err := sink.Write(context.Background(), entries); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if store.writes != 1 {
		t.Errorf("writes = %d, want 1", store.writes)
	}
	if len(store.quarantined) != 2 {
		t.Fatalf("stored = %d, want 2", len(store.quarantined))
	}
	for i, e := range store.quarantined {
		if !e.CapturedAt.Equal(at) {
			t.Errorf("entry %d captured_at = %v, want %v", i, e.CapturedAt, at)
		}
	}
	if !entries[0].CapturedAt.IsZero() {
		t.Error("Write modified the caller's slice")
	}
}

func TestQuarantineSink_EmptyIsNoop(t *testing.T) {
	store := newMemStore()
	if err := NewQuarantineSink(store).Write(context.Background(), nil); err != nil {
		t.Fatalf("Write(nil): %v", err)
	}
	if store.writes != 0 {
		t.Errorf("writes = %d, want 0", store.writes)
	}
}

func TestQuarantineSink_FailureGoesToFallbackOnce(t *testing.T) {
	primary := newMemStore()
	primary.quarErr = errors.New("relation \"dirty_data\" does not exist")
	fallback := newMemStore()
	rec := newCountingRecorder()

	sink := NewQuarantineSink(primary, WithFallback(fallback), WithRecorder(rec))
	err := sink.Write(context.Background(), []QuarantineEntry{{TableName: "flights", ErrorReason: "Invalid FlightKey"}})

	if !errors.Is(err, primary.quarErr) {
		t.Errorf("Write error = %v, want wrapped primary error", err)
	}
	if primary.writes != 1 {
		t.Errorf("primary writes = %d, want 1 (no retry)", primary.writes)
	}
	if len(fallback.quarantined) != 1 {
		t.Errorf("fallback stored = %d, want 1", len(fallback.quarantined))
	}
	if rec.writeFails != 1 {
		t.Errorf("recorded failures = %d, want 1", rec.writeFails)
	}
}

func TestQuarantineSink_FailureWithoutFallback(t *testing.T) {
	primary := newMemStore()
	primary.quarErr = errors.New("down")

	err := NewQuarantineSink(primary).Write(context.Background(), []QuarantineEntry{{TableName: "flights"}})
	if err == nil {
		t.Fatal("Write succeeded, want error")
	}
	if primary.writes != 1 {
		t.Errorf("primary writes = %d, want 1", primary.writes)
	}
}
