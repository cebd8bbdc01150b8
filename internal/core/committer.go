package core

import (
	"context"
	"log/slog"
)

// DuplicateKeyPrefix starts the reason of every unique-violation entry.
const DuplicateKeyPrefix = "Duplicate key: "

// Commit inserts records into table one at a time. A rejected record becomes
// a quarantine entry and the remaining records are still attempted. There is
// no existence pre-check: the store's unique constraint decides duplicates.
//
// Commit returns the number of inserted records and the rejected ones.
func Commit(ctx context.Context, ins Inserter, table string, records []CleanRecord) (int, []QuarantineEntry) {
	var (
		inserted int
		rejected []QuarantineEntry
	)
	for _, r := range records {
		err := ins.InsertOne(ctx, table, r.Fields)
		if err == nil {
			inserted++
			continue
		}

		reason := err.Error()
		if classifyStoreError(err) == UniqueViolation {
			reason = DuplicateKeyPrefix + reason
		}
		slog.Debug("insert rejected", "table", table, "reason", reason)
		rejected = append(rejected, QuarantineEntry{
			TableName:    table,
			OriginalData: r.Fields.Clone(),
			ErrorReason:  reason,
		})
	}
	return inserted, rejected
}
