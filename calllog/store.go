// Package calllog persists per-call diagnostics: which provider and
// model served a request, how long it took, and the usage the provider
// reported. It records outcomes only; it never counts tokens itself.
package calllog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Entry is one recorded gateway call.
type Entry struct {
	ID           string
	Provider     string
	Model        string
	Streamed     bool
	StopReason   string
	ErrorCode    string // empty on success
	StatusCode   int    // HTTP status for API errors, zero otherwise
	InputTokens  int64
	OutputTokens int64
	Duration     time.Duration
	CreatedAt    time.Time
}

// Store handles persistence of call log entries.
// It implements gateway.Recorder.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store over an already-migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record inserts one entry.
func (s *Store) Record(ctx context.Context, entry Entry) error {
	query := sq.Insert("calls").
		Columns("id", "provider", "model", "streamed", "stop_reason", "error_code",
			"status_code", "input_tokens", "output_tokens", "duration_ms", "created_at").
		Values(entry.ID, entry.Provider, entry.Model, entry.Streamed, entry.StopReason,
			entry.ErrorCode, entry.StatusCode, entry.InputTokens, entry.OutputTokens,
			entry.Duration.Milliseconds(), entry.CreatedAt.Unix())

	queryStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	_, err = s.db.ExecContext(ctx, queryStr, args...)
	return err
}

// Recent returns the most recent entries, newest first.
func (s *Store) Recent(ctx context.Context, limit uint64) ([]Entry, error) {
	query := sq.Select("id", "provider", "model", "streamed", "stop_reason", "error_code",
		"status_code", "input_tokens", "output_tokens", "duration_ms", "created_at").
		From("calls").
		OrderBy("created_at DESC, id").
		Limit(limit)

	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var durationMs, createdAt int64
		if err := rows.Scan(&e.ID, &e.Provider, &e.Model, &e.Streamed, &e.StopReason,
			&e.ErrorCode, &e.StatusCode, &e.InputTokens, &e.OutputTokens,
			&durationMs, &createdAt); err != nil {
			return nil, err
		}
		e.Duration = time.Duration(durationMs) * time.Millisecond
		e.CreatedAt = time.Unix(createdAt, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ProviderFailures counts errored calls per provider since the given time.
func (s *Store) ProviderFailures(ctx context.Context, since time.Time) (map[string]int64, error) {
	query := sq.Select("provider", "COUNT(*)").
		From("calls").
		Where(sq.And{
			sq.NotEq{"error_code": ""},
			sq.GtOrEq{"created_at": since.Unix()},
		}).
		GroupBy("provider")

	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var provider string
		var count int64
		if err := rows.Scan(&provider, &count); err != nil {
			return nil, err
		}
		counts[provider] = count
	}
	return counts, rows.Err()
}
