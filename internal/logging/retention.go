package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"searchq/internal/config"
)

// prunablePatterns are the files searchq writes into log_dir: one file per
// daemon run plus the native host's shared log.
var prunablePatterns = []string{"searchq-*.log", "native-host*.log"}

// PruneLogs removes searchq log files in cfg's log directory whose last write
// is older than logging.retention_days. Symlinks and the keep paths are never
// removed. A retention of zero days disables pruning. It returns the number
// of files removed.
func PruneLogs(logger *slog.Logger, cfg *config.Config, keep ...string) int {
	if cfg == nil || cfg.Logging.RetentionDays <= 0 || cfg.Paths.LogDir == "" {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -cfg.Logging.RetentionDays)

	kept := make(map[string]struct{}, len(keep))
	for _, path := range keep {
		if abs, err := filepath.Abs(path); err == nil {
			kept[abs] = struct{}{}
		}
	}

	removed := 0
	for _, pattern := range prunablePatterns {
		matches, err := filepath.Glob(filepath.Join(cfg.Paths.LogDir, pattern))
		if err != nil {
			continue
		}
		for _, path := range matches {
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
			if _, skip := kept[path]; skip {
				continue
			}
			info, err := os.Lstat(path)
			if err != nil || !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
				continue
			}
			if err := os.Remove(path); err != nil {
				WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
					String("path", path),
					Error(err),
					String(FieldErrorHint, "check file permissions and log_dir ownership"),
					String(FieldImpact, "old log file remains on disk"),
				)
				continue
			}
			removed++
			if logger != nil {
				logger.Debug("log pruned", String("path", path), String(FieldEventType, "log_pruned"))
			}
		}
	}
	if removed > 0 && logger != nil {
		logger.Info("old logs pruned",
			Int("count", removed),
			Int("retention_days", cfg.Logging.RetentionDays),
			String(FieldEventType, "logs_pruned"),
		)
	}
	return removed
}
