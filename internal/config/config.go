package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths holds storage locations and the management API listener.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Watcher controls which committed navigations are treated as searches and
// how intercepted pages are halted.
type Watcher struct {
	TransitionTypes        []string `toml:"transition_types"`
	QueryParam             string   `toml:"query_param"`
	InjectCode             string   `toml:"inject_code"`
	InjectTiming           string   `toml:"inject_timing"`
	DedupWindowSeconds     int      `toml:"dedup_window_seconds"`
	SettingsRefreshSeconds int      `toml:"settings_refresh_seconds"`
	HostReplyTimeout       int      `toml:"host_reply_timeout"`
}

type UI struct {
	OpenPinnedTab bool   `toml:"open_pinned_tab"`
	ManagerURL    string `toml:"manager_url"`
}

// Engine describes a search provider the queue can replay queries against.
// SearchURL must contain the {searchTerms} placeholder.
type Engine struct {
	Name      string `toml:"name"`
	SearchURL string `toml:"search_url"`
}

type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config is the decoded searchq.toml. Sections:
//   - Paths: data and log directories plus the management API listener
//   - Watcher: navigation filters, the injected halt script and dedup window
//   - UI: pinned management tab
//   - Engines: providers used to resolve captured URLs and replay queries
//   - Logging: format, level and retention
type Config struct {
	Paths   Paths    `toml:"paths"`
	Watcher Watcher  `toml:"watcher"`
	UI      UI       `toml:"ui"`
	Engines []Engine `toml:"engines"`
	Logging Logging  `toml:"logging"`
}

// Load finds the configuration file, decodes it over the defaults, then
// normalizes and validates the result. It returns the resolved path and
// whether a file was actually read. Unknown keys are rejected so typos do
// not silently fall back to defaults.
func Load(path string) (*Config, string, bool, error) {
	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	if exists {
		data, err := os.ReadFile(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func (c *Config) decode(data []byte) error {
	// A file that declares [[engines]] replaces the default list entirely.
	c.Engines = nil
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	err := decoder.Decode(c)
	var strict *toml.StrictMissingError
	if errors.As(err, &strict) {
		return fmt.Errorf("unknown keys:\n%s", strict.String())
	}
	return err
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() (string, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(data), nil
}

// CreateSample writes the commented sample configuration to path, creating
// its parent directory.
func CreateSample(path string) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
