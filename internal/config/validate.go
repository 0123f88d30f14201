package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// SearchTermsPlaceholder marks where the query goes in an engine search URL.
const SearchTermsPlaceholder = "{searchTerms}"

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWatcher(); err != nil {
		return err
	}
	if err := c.validateUI(); err != nil {
		return err
	}
	if err := c.validateEngines(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind: %w", err)
	}
	return nil
}

func (c *Config) validateWatcher() error {
	if strings.ContainsAny(c.Watcher.QueryParam, "&=? ") {
		return fmt.Errorf("watcher.query_param %q must be a bare parameter name", c.Watcher.QueryParam)
	}
	if _, ok := validInjectTimings[c.Watcher.InjectTiming]; !ok {
		return fmt.Errorf("watcher.inject_timing %q must be one of document_start, document_end, document_idle", c.Watcher.InjectTiming)
	}
	return nil
}

func (c *Config) validateUI() error {
	if c.UI.ManagerURL == "" {
		return nil
	}
	parsed, err := url.Parse(c.UI.ManagerURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("ui.manager_url %q must be an absolute URL", c.UI.ManagerURL)
	}
	return nil
}

func (c *Config) validateEngines() error {
	seen := make(map[string]struct{}, len(c.Engines))
	for i, engine := range c.Engines {
		if engine.Name == "" {
			return fmt.Errorf("engines[%d].name must be set", i)
		}
		key := strings.ToLower(engine.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("engines[%d].name %q is duplicated", i, engine.Name)
		}
		seen[key] = struct{}{}
		if !strings.Contains(engine.SearchURL, SearchTermsPlaceholder) {
			return fmt.Errorf("engines[%d].search_url must contain %s", i, SearchTermsPlaceholder)
		}
		probe := strings.ReplaceAll(engine.SearchURL, SearchTermsPlaceholder, "probe")
		parsed, err := url.Parse(probe)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("engines[%d].search_url %q must be an absolute URL", i, engine.SearchURL)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
}
