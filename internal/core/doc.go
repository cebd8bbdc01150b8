// Package core provides the business logic for airline warehouse ingestion.
//
// This package holds all domain rules independent of the HTTP layer, the
// database and the message queue. Those are reached through small
// interfaces ([Inserter], [QuarantineWriter], [Consumer], [Publisher]) so the
// same pipeline runs behind the web handlers, the streaming loop and tests.
//
// # Pipeline
//
// A batch of raw rows flows through three stages:
//
//  1. [Cleaner.Clean] maps headers to canonical fields, derives keys with a
//     [KeyNormalizer] and splits the batch into clean records and
//     quarantine entries.
//  2. [Commit] inserts the clean records one at a time. Rows the store
//     rejects become quarantine entries; a unique-key rejection is reported
//     with the "Duplicate key: " prefix.
//  3. [QuarantineSink.Write] stamps and persists every rejected row of the
//     batch in one write.
//
// [Service.CleanAndCommit] runs the three stages for the web layer.
// [StreamLoop] runs stage 1 for queue messages and republishes the clean half
// instead of committing it.
//
// # Entities
//
// The entity set is closed: airline, airport, flight, passenger and sale.
// Each [EntityKind] resolves to an [Entity] with its destination table,
// header mappings and row rules. Names such as "carrier", "sales" or
// "factairlinesales" are accepted by [ParseEntityKind]; "auto" asks
// [DetectEntity] to sniff the kind from the header row.
//
// # Synthetic keys
//
// Passenger keys and transaction ids fall back to counters in [Sequences]
// when the source value is missing or too small. The counters only move
// forward and are safe for concurrent cleaning.
//
// # Error Handling
//
// Row-level failures never escape a batch; they become quarantine entries.
// Errors that do surface are mapped to user-facing messages by [MapError].
package core
