package queue

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Append adds rec to the end of the queue. The record receives a fresh ID
// unless it already carries one, starts at version 1, and is stamped with the
// current time when Timestamp is zero.
func (s *Store) Append(ctx context.Context, rec Record) (*Record, error) {
	ctx = ensureContext(ctx)
	prepared := s.prepare(rec)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return s.insert(ctx, tx, prepared)
	})
	if err != nil {
		return nil, fmt.Errorf("append record: %w", err)
	}
	return &prepared, nil
}

// AppendAll appends records in order inside a single transaction. When
// replace is true the queue is emptied first.
func (s *Store) AppendAll(ctx context.Context, records []Record, replace bool) ([]Record, error) {
	ctx = ensureContext(ctx)
	prepared := make([]Record, 0, len(records))
	for _, rec := range records {
		prepared = append(prepared, s.prepare(rec))
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if replace {
			if _, err := tx.ExecContext(ctx, `DELETE FROM search_queries`); err != nil {
				return err
			}
		}
		for _, rec := range prepared {
			if err := s.insert(ctx, tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("append records: %w", err)
	}
	return prepared, nil
}

func (s *Store) prepare(rec Record) Record {
	if strings.TrimSpace(rec.ID) == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = s.now().UnixMilli()
	}
	rec.Version = 1
	return rec
}

func (s *Store) insert(ctx context.Context, tx *sql.Tx, rec Record) error {
	ts := s.timestamp()
	_, err := tx.ExecContext(ctx,
		`INSERT INTO search_queries (id, query, search_engine, timestamp_ms, version, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Query, rec.SearchEngine, rec.Timestamp, rec.Version, ts, ts,
	)
	return err
}

// List returns every record in insertion order.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM search_queries ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	return records, nil
}

// Get fetches a record by ID, returning ErrNotFound when absent.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	return recordByID(ensureContext(ctx), s.db, id)
}

// At fetches the record at a positional index. It returns nil when the index
// is out of bounds.
func (s *Store) At(ctx context.Context, index int) (*Record, error) {
	return recordAt(ensureContext(ctx), s.db, index)
}

// Count returns the number of queued records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(1) FROM search_queries`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

// UpdateAt overwrites the patched fields of the record at index. An index
// outside [0, Count) is a no-op reported as false.
func (s *Store) UpdateAt(ctx context.Context, index int, patch Patch) (bool, error) {
	ctx = ensureContext(ctx)
	found := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		found = false
		rec, err := recordAt(ctx, tx, index)
		if err != nil || rec == nil {
			return err
		}
		found = true
		return s.write(ctx, tx, rec, patch)
	})
	if err != nil {
		return false, fmt.Errorf("update record %d: %w", index, err)
	}
	return found, nil
}

// Update overwrites the patched fields of the record with the given ID. A
// non-zero expectedVersion must match the stored version or the update fails
// with ErrVersionConflict.
func (s *Store) Update(ctx context.Context, id string, patch Patch, expectedVersion int64) (*Record, error) {
	ctx = ensureContext(ctx)
	var updated *Record
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rec, err := recordByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if expectedVersion != 0 && rec.Version != expectedVersion {
			return fmt.Errorf("%w: have %d, expected %d", ErrVersionConflict, rec.Version, expectedVersion)
		}
		if err := s.write(ctx, tx, rec, patch); err != nil {
			return err
		}
		updated = rec
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update record %s: %w", id, err)
	}
	return updated, nil
}

// write applies patch to rec and persists it with a bumped version. Empty
// patches leave the row untouched.
func (s *Store) write(ctx context.Context, tx *sql.Tx, rec *Record, patch Patch) error {
	if patch.Empty() {
		return nil
	}
	patch.apply(rec)
	rec.Version++
	_, err := tx.ExecContext(ctx,
		`UPDATE search_queries SET query = ?, search_engine = ?, version = ?, updated_at = ? WHERE id = ?`,
		rec.Query, rec.SearchEngine, rec.Version, s.timestamp(), rec.ID,
	)
	return err
}

// RemoveAt deletes the record at index; later records shift down by one.
// Out-of-bounds indices are a no-op reported as false.
func (s *Store) RemoveAt(ctx context.Context, index int) (bool, error) {
	ctx = ensureContext(ctx)
	removed := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		removed = false
		rec, err := recordAt(ctx, tx, index)
		if err != nil || rec == nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM search_queries WHERE id = ?`, rec.ID); err != nil {
			return err
		}
		removed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("remove record %d: %w", index, err)
	}
	return removed, nil
}

// Remove deletes the record with the given ID, returning ErrNotFound when
// absent.
func (s *Store) Remove(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM search_queries WHERE id = ?`, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("remove record %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("remove record %s: %w", id, ErrNotFound)
	}
	return nil
}

// Clear empties the queue and reports how many records were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM search_queries`)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return removed, nil
}
