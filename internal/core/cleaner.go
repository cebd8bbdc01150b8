package core

import (
	"errors"
	"log/slog"
)

// Cleaner partitions raw batches into clean records and quarantine entries.
// Rows are independent: a bad row never affects its neighbours.
type Cleaner struct {
	keys *KeyNormalizer
	rec  Recorder
}

// NewCleaner returns a Cleaner drawing synthetic ids from keys.
func NewCleaner(keys *KeyNormalizer, rec Recorder) *Cleaner {
	if keys == nil {
		keys = NewKeyNormalizer(nil)
	}
	if rec == nil {
		rec = NopRecorder
	}
	return &Cleaner{keys: keys, rec: rec}
}

// Keys returns the key normalizer used by the cleaner.
func (c *Cleaner) Keys() *KeyNormalizer { return c.keys }

// Clean runs the rules for kind over rows, preserving input order in both
// halves of the partition. Quarantine entries carry the row as received.
func (c *Cleaner) Clean(kind EntityKind, rows []RawRecord) Partition {
	e := EntityFor(kind)
	table := e.Table()

	var p Partition
	for _, raw := range rows {
		fields, err := e.cleanRow(c.keys, mapColumns(e, raw))
		if err != nil {
			p.Quarantined = append(p.Quarantined, QuarantineEntry{
				TableName:    table,
				OriginalData: raw.Clone(),
				ErrorReason:  rowReason(err),
			})
			continue
		}
		p.Clean = append(p.Clean, CleanRecord{Table: table, Fields: fields})
	}

	c.rec.RowsCleaned(table, len(p.Clean))
	c.rec.RowsQuarantined(table, StageClean, len(p.Quarantined))
	if len(p.Quarantined) > 0 {
		slog.Debug("rows quarantined during cleaning",
			"table", table,
			"clean", len(p.Clean),
			"quarantined", len(p.Quarantined))
	}
	return p
}

func rowReason(err error) string {
	var re *RowError
	if errors.As(err, &re) {
		return re.Reason
	}
	return err.Error()
}
