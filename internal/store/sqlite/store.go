// Package sqlite is an embedded destination and quarantine store built on the
// pure Go modernc.org/sqlite driver. It backs local runs without PostgreSQL
// and serves as the fallback quarantine when the primary store is down.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/JonMunkholm/airwarehouse/internal/core"
)

//go:embed schema.sql
var schemaSQL string

// Store implements core.Inserter and core.QuarantineWriter.
type Store struct {
	db   *sql.DB
	path string
}

var (
	_ core.Inserter         = (*Store)(nil)
	_ core.QuarantineWriter = (*Store)(nil)
)

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = "airwarehouse.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; SQLite would otherwise answer SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the entity tables and dirty_data if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// InsertOne inserts rec into table. Each call is its own transaction.
func (s *Store) InsertOne(ctx context.Context, table string, rec core.Record) error {
	query, args, err := buildInsert(table, rec)
	if err != nil {
		return core.NewStoreError(core.StoreOther, table, err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return classify(table, err)
	}
	return nil
}

func buildInsert(table string, rec core.Record) (string, []any, error) {
	e, ok := core.EntityForTable(table)
	if !ok {
		return "", nil, fmt.Errorf("unknown destination table %q", table)
	}
	allowed := make(map[string]bool)
	for _, f := range e.Fields() {
		allowed[f] = true
	}
	keys := rec.Keys()
	if len(keys) == 0 {
		return "", nil, errors.New("empty record")
	}
	marks := make([]string, len(keys))
	for i, k := range keys {
		if !allowed[k] {
			return "", nil, fmt.Errorf("unknown column %q for %s", k, table)
		}
		marks[i] = "?"
	}
	// Table and column names come from the whitelist above.
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(keys, ", "), strings.Join(marks, ", "))
	return query, rec.Values(), nil
}

func classify(table string, err error) error {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return core.NewStoreError(core.UniqueViolation, table, err)
		}
	}
	return core.NewStoreError(core.StoreOther, table, err)
}

// InsertQuarantine writes entries to dirty_data in one transaction.
func (s *Store) InsertQuarantine(ctx context.Context, entries []core.QuarantineEntry) (retErr error) {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO dirty_data (table_name, original_data, error_reason, captured_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare dirty_data insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		data, err := json.Marshal(e.OriginalData)
		if err != nil {
			return fmt.Errorf("encode original_data: %w", err)
		}
		at := e.CapturedAt.UTC().Format(time.RFC3339Nano)
		if _, err := stmt.ExecContext(ctx, e.TableName, string(data), e.ErrorReason, at); err != nil {
			return fmt.Errorf("insert dirty_data: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit dirty_data: %w", err)
	}
	slog.Debug("quarantine batch stored",
		"store", "sqlite",
		"batch_id", core.BatchIDFromContext(ctx),
		"entries", len(entries))
	return nil
}

// Quarantined returns stored entries for table, oldest first. An empty table
// returns every entry.
func (s *Store) Quarantined(ctx context.Context, table string) ([]core.QuarantineEntry, error) {
	q := `SELECT table_name, original_data, error_reason, captured_at FROM dirty_data`
	var args []any
	if table != "" {
		q += ` WHERE table_name = ?`
		args = append(args, table)
	}
	q += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select dirty_data: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []core.QuarantineEntry
	for rows.Next() {
		var (
			e        core.QuarantineEntry
			data, at string
		)
		if err := rows.Scan(&e.TableName, &data, &e.ErrorReason, &at); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &e.OriginalData); err != nil {
			return nil, fmt.Errorf("decode original_data: %w", err)
		}
		if e.CapturedAt, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("parse captured_at: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of rows in a destination table.
func (s *Store) Count(ctx context.Context, table string) (int, error) {
	if _, ok := core.EntityForTable(table); !ok && table != core.QuarantineTable {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
