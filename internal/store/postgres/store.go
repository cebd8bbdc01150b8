// Package postgres is the PostgreSQL destination and quarantine store.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/airwarehouse/internal/config"
	"github.com/JonMunkholm/airwarehouse/internal/core"
)

//go:embed schema.sql
var schemaSQL string

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// quarantineChunk caps the rows in one multi-row INSERT.
const quarantineChunk = 500

// DBTX is the subset of *pgxpool.Pool the store uses.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store implements core.Inserter and core.QuarantineWriter.
type Store struct {
	db DBTX
}

var (
	_ core.Inserter         = (*Store)(nil)
	_ core.QuarantineWriter = (*Store)(nil)
)

// New wraps db.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// Open connects a pool sized by cfg and checks it.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the entity tables and dirty_data if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// InsertOne inserts rec into table in its own implicit transaction.
func (s *Store) InsertOne(ctx context.Context, table string, rec core.Record) error {
	query, args, err := buildInsert(table, rec)
	if err != nil {
		return core.NewStoreError(core.StoreOther, table, err)
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return classify(table, err)
	}
	return nil
}

// buildInsert renders an INSERT for the record's fields. Only destination
// tables and their known columns are accepted.
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
	cols := make([]string, len(keys))
	marks := make([]string, len(keys))
	for i, k := range keys {
		if !allowed[k] {
			return "", nil, fmt.Errorf("unknown column %q for %s", k, table)
		}
		cols[i] = pgx.Identifier{k}.Sanitize()
		marks[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pgx.Identifier{table}.Sanitize(),
		strings.Join(cols, ", "),
		strings.Join(marks, ", "))
	return query, rec.Values(), nil
}

// classify maps a driver error onto a core.StoreError.
func classify(table string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return core.NewStoreError(core.UniqueViolation, table, err)
	}
	return core.NewStoreError(core.StoreOther, table, err)
}

// InsertQuarantine writes entries to dirty_data in one transaction.
func (s *Store) InsertQuarantine(ctx context.Context, entries []core.QuarantineEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for start := 0; start < len(entries); start += quarantineChunk {
		end := min(start+quarantineChunk, len(entries))
		query, args, err := buildQuarantineInsert(entries[start:end])
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert dirty_data: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit dirty_data: %w", err)
	}
	slog.Debug("quarantine batch stored",
		"batch_id", core.BatchIDFromContext(ctx),
		"entries", len(entries))
	return nil
}

func buildQuarantineInsert(entries []core.QuarantineEntry) (string, []any, error) {
	var b strings.Builder
	b.WriteString("INSERT INTO dirty_data (table_name, original_data, error_reason, captured_at) VALUES ")
	args := make([]any, 0, len(entries)*4)
	for i, e := range entries {
		data, err := json.Marshal(e.OriginalData)
		if err != nil {
			return "", nil, fmt.Errorf("encode original_data: %w", err)
		}
		if i > 0 {
			b.WriteString(", ")
		}
		n := len(args)
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4)
		args = append(args, e.TableName, json.RawMessage(data), e.ErrorReason, e.CapturedAt)
	}
	return b.String(), args, nil
}
