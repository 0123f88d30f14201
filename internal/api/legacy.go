package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"searchq/internal/logging"
	"searchq/internal/queue"
	"searchq/internal/settings"
)

// ErrUnsupportedFormat rejects export formats other than json and yaml.
var ErrUnsupportedFormat = errors.New("format must be json or yaml")

// LegacyQuery is one entry of the browser storage dump.
type LegacyQuery struct {
	Query        string `json:"query" yaml:"query"`
	SearchEngine string `json:"searchEngine" yaml:"searchEngine"`
	Timestamp    int64  `json:"timestamp" yaml:"timestamp"`
}

// LegacyDump mirrors the extension's local storage: the query list plus the
// three settings keys, each optional.
type LegacyDump struct {
	SearchQueries     []LegacyQuery `json:"searchQueries" yaml:"searchQueries"`
	Enabled           *bool         `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Ordering          *string       `json:"ordering,omitempty" yaml:"ordering,omitempty"`
	RemoveAfterSearch *bool         `json:"removeAfterSearch,omitempty" yaml:"removeAfterSearch,omitempty"`
}

// ParseLegacy decodes a storage dump in JSON or YAML. JSON is read leniently:
// entries that are not objects are skipped and wrongly typed settings are
// ignored.
func ParseLegacy(data []byte) (LegacyDump, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return LegacyDump{}, errors.New("legacy dump is empty")
	}
	if gjson.ValidBytes(trimmed) {
		return parseLegacyJSON(trimmed)
	}
	var dump LegacyDump
	if err := yaml.Unmarshal(trimmed, &dump); err != nil {
		return LegacyDump{}, fmt.Errorf("decode legacy dump: %w", err)
	}
	return dump, nil
}

func parseLegacyJSON(data []byte) (LegacyDump, error) {
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return LegacyDump{}, errors.New("legacy dump must be a JSON object")
	}
	var dump LegacyDump
	if list := root.Get("searchQueries"); list.Exists() {
		if !list.IsArray() {
			return LegacyDump{}, errors.New("searchQueries must be an array")
		}
		list.ForEach(func(_, entry gjson.Result) bool {
			if !entry.IsObject() {
				return true
			}
			dump.SearchQueries = append(dump.SearchQueries, LegacyQuery{
				Query:        entry.Get("query").String(),
				SearchEngine: entry.Get("searchEngine").String(),
				Timestamp:    entry.Get("timestamp").Int(),
			})
			return true
		})
	}
	if v := root.Get("enabled"); v.IsBool() {
		b := v.Bool()
		dump.Enabled = &b
	}
	if v := root.Get("ordering"); v.Type == gjson.String {
		str := v.String()
		dump.Ordering = &str
	}
	if v := root.Get("removeAfterSearch"); v.IsBool() {
		b := v.Bool()
		dump.RemoveAfterSearch = &b
	}
	return dump, nil
}

// EncodeLegacy renders dump as json or yaml.
func EncodeLegacy(dump LegacyDump, format string) ([]byte, error) {
	if dump.SearchQueries == nil {
		dump.SearchQueries = []LegacyQuery{}
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		out, err := json.MarshalIndent(dump, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	case "yaml", "yml":
		return yaml.Marshal(dump)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// Export snapshots the queue and settings as a storage dump.
func (s *QueueService) Export(ctx context.Context) (LegacyDump, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return LegacyDump{}, err
	}
	current, err := settings.Load(ctx, s.store)
	if err != nil {
		return LegacyDump{}, err
	}
	dump := LegacyDump{SearchQueries: make([]LegacyQuery, 0, len(records))}
	for _, rec := range records {
		dump.SearchQueries = append(dump.SearchQueries, LegacyQuery{
			Query:        rec.Query,
			SearchEngine: rec.SearchEngine,
			Timestamp:    rec.Timestamp,
		})
	}
	ordering := string(current.Ordering)
	dump.Enabled = &current.Enabled
	dump.Ordering = &ordering
	dump.RemoveAfterSearch = &current.RemoveAfterSearch
	return dump, nil
}

// Import appends the dump's queries in order, replacing the queue when
// replace is set, and applies any settings the dump carries. An unknown
// ordering is skipped rather than failing the import.
func (s *QueueService) Import(ctx context.Context, dump LegacyDump, replace bool) (ImportResult, error) {
	records := make([]queue.Record, 0, len(dump.SearchQueries))
	for _, q := range dump.SearchQueries {
		records = append(records, queue.Record{
			Query:        q.Query,
			SearchEngine: q.SearchEngine,
			Timestamp:    q.Timestamp,
		})
	}
	if _, err := s.store.AppendAll(ctx, records, replace); err != nil {
		return ImportResult{}, err
	}

	update := settings.Update{Enabled: dump.Enabled, RemoveAfterSearch: dump.RemoveAfterSearch}
	if dump.Ordering != nil {
		if _, err := settings.ParseOrdering(*dump.Ordering); err == nil {
			update.Ordering = dump.Ordering
		} else {
			logging.WarnWithContext(s.logger, "ignoring unknown ordering in import", "import_ordering_ignored",
				logging.String("ordering", *dump.Ordering),
				logging.String(logging.FieldImpact, "the current ordering setting is kept"),
			)
		}
	}
	current, err := settings.Apply(ctx, s.store, update)
	if err != nil {
		return ImportResult{}, err
	}
	s.logger.Info("legacy dump imported",
		logging.Int("records", len(records)),
		logging.Bool("replaced", replace),
		logging.String(logging.FieldEventType, "legacy_import"),
	)
	return ImportResult{Imported: len(records), Replaced: replace, Settings: current}, nil
}
