package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWatcher()
	c.normalizeUI()
	c.normalizeEngines()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = ExpandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("SEARCHQ_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeWatcher() {
	types := make([]string, 0, len(c.Watcher.TransitionTypes))
	seen := make(map[string]struct{}, len(c.Watcher.TransitionTypes))
	for _, value := range c.Watcher.TransitionTypes {
		normalized := strings.ToLower(strings.TrimSpace(value))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		types = append(types, normalized)
	}
	if len(types) == 0 {
		types = []string{TransitionGenerated}
	}
	c.Watcher.TransitionTypes = types

	c.Watcher.QueryParam = strings.TrimSpace(c.Watcher.QueryParam)
	if c.Watcher.QueryParam == "" {
		c.Watcher.QueryParam = defaultQueryParam
	}
	c.Watcher.InjectCode = strings.TrimSpace(c.Watcher.InjectCode)
	if c.Watcher.InjectCode == "" {
		c.Watcher.InjectCode = defaultInjectCode
	}
	c.Watcher.InjectTiming = strings.ToLower(strings.TrimSpace(c.Watcher.InjectTiming))
	if c.Watcher.InjectTiming == "" {
		c.Watcher.InjectTiming = defaultInjectTiming
	}
	if c.Watcher.DedupWindowSeconds < 0 {
		c.Watcher.DedupWindowSeconds = 0
	}
	if c.Watcher.SettingsRefreshSeconds <= 0 {
		c.Watcher.SettingsRefreshSeconds = defaultSettingsRefreshSeconds
	}
	if c.Watcher.HostReplyTimeout <= 0 {
		c.Watcher.HostReplyTimeout = defaultHostReplyTimeout
	}
}

func (c *Config) normalizeUI() {
	c.UI.ManagerURL = strings.TrimSpace(c.UI.ManagerURL)
}

func (c *Config) normalizeEngines() {
	if len(c.Engines) == 0 {
		c.Engines = DefaultEngines()
		return
	}
	engines := make([]Engine, 0, len(c.Engines))
	for _, engine := range c.Engines {
		engine.Name = strings.TrimSpace(engine.Name)
		engine.SearchURL = strings.TrimSpace(engine.SearchURL)
		if engine.Name == "" && engine.SearchURL == "" {
			continue
		}
		engines = append(engines, engine)
	}
	c.Engines = engines
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
