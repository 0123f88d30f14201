package api

import (
	"searchq/internal/queue"
	"searchq/internal/settings"
)

// Arrange converts stored records into display rows. Queue ordering keeps
// insertion order; stack ordering shows the newest first. Every row keeps the
// stored index it came from, and records is never modified.
func Arrange(records []queue.Record, ordering settings.Ordering) []QueryRow {
	rows := make([]QueryRow, len(records))
	for i, rec := range records {
		rows[i] = FromRecord(i, rec)
	}
	if ordering == settings.OrderingStack {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}
	return rows
}
