package queue

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"
)

const healthTimeout = 2 * time.Second

var expectedTables = []string{"search_queries", "settings", "schema_version"}

// CheckHealth inspects the database file and connection. A missing file is
// reported as DatabaseExists=false without error. Probe failures are
// returned and also recorded in DatabaseHealth.Error.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}
	if s.path == "" {
		return health, errors.New("queue database path is unknown")
	}

	info, err := os.Stat(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return health, nil
	case err != nil:
		return health, fmt.Errorf("stat queue database: %w", err)
	case info.IsDir():
		return health, fmt.Errorf("queue database path %q is a directory", s.path)
	}
	health.DatabaseExists = true
	if s.db == nil {
		return health, errors.New("queue database connection unavailable")
	}

	probeCtx, cancel := context.WithTimeout(ensureContext(ctx), healthTimeout)
	defer cancel()
	if err := s.probe(probeCtx, &health); err != nil {
		health.Error = err.Error()
		return health, err
	}
	return health, nil
}

func (s *Store) probe(ctx context.Context, health *DatabaseHealth) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping queue database: %w", err)
	}
	health.DatabaseReadable = true

	present, err := s.tableNames(ctx)
	if err != nil {
		return err
	}
	for _, table := range expectedTables {
		if slices.Contains(present, table) {
			health.TablesPresent = append(health.TablesPresent, table)
		} else {
			health.MissingTables = append(health.MissingTables, table)
		}
	}

	scalars := []struct {
		table string
		query string
		dest  *int
	}{
		{"schema_version", `SELECT version FROM schema_version LIMIT 1`, &health.SchemaVersion},
		{"search_queries", `SELECT COUNT(*) FROM search_queries`, &health.TotalRecords},
	}
	for _, sc := range scalars {
		if !slices.Contains(present, sc.table) {
			continue
		}
		if err := s.db.QueryRowContext(ctx, sc.query).Scan(sc.dest); err != nil {
			return fmt.Errorf("query %s: %w", sc.table, err)
		}
	}

	var integrity string
	if err := s.db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&integrity); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrity, "ok")
	return nil
}

func (s *Store) tableNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
