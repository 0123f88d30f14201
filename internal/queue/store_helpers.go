package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const recordColumns = "id, query, search_engine, timestamp_ms, version"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var rec Record
	if err := scanner.Scan(&rec.ID, &rec.Query, &rec.SearchEngine, &rec.Timestamp, &rec.Version); err != nil {
		return nil, err
	}
	return &rec, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()
	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func recordByID(ctx context.Context, q queryer, id string) (*Record, error) {
	rec, err := scanRecord(q.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM search_queries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// recordAt resolves a positional index in insertion order. A nil record with
// a nil error means the index is out of bounds.
func recordAt(ctx context.Context, q queryer, index int) (*Record, error) {
	if index < 0 {
		return nil, nil
	}
	rec, err := scanRecord(q.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM search_queries ORDER BY seq LIMIT 1 OFFSET ?`, index))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record at %d: %w", index, err)
	}
	return rec, nil
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}
