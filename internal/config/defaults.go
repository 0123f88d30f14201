package config

const (
	defaultConfigPath             = "~/.config/searchq/config.toml"
	defaultDataDir                = "~/.local/share/searchq"
	defaultLogDir                 = "~/.local/share/searchq/logs"
	defaultAPIBind                = "127.0.0.1:7488"
	defaultQueryParam             = "q"
	defaultInjectCode             = "window.stop();"
	defaultInjectTiming           = "document_start"
	defaultDedupWindowSeconds     = 2
	defaultSettingsRefreshSeconds = 5
	defaultHostReplyTimeout       = 5
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogRetentionDays       = 30
)

// TransitionGenerated is the committed-navigation transition type reported for
// address-bar searches and generated suggestions.
const TransitionGenerated = "generated"

var validInjectTimings = map[string]struct{}{
	"document_start": {},
	"document_end":   {},
	"document_idle":  {},
}

// DefaultEngines returns the built-in search providers.
func DefaultEngines() []Engine {
	return []Engine{
		{Name: "Google", SearchURL: "https://www.google.com/search?q={searchTerms}"},
		{Name: "Bing", SearchURL: "https://www.bing.com/search?q={searchTerms}"},
		{Name: "DuckDuckGo", SearchURL: "https://duckduckgo.com/?q={searchTerms}"},
		{Name: "Wikipedia (en)", SearchURL: "https://en.wikipedia.org/wiki/Special:Search?search={searchTerms}"},
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Watcher: Watcher{
			TransitionTypes:        []string{TransitionGenerated},
			QueryParam:             defaultQueryParam,
			InjectCode:             defaultInjectCode,
			InjectTiming:           defaultInjectTiming,
			DedupWindowSeconds:     defaultDedupWindowSeconds,
			SettingsRefreshSeconds: defaultSettingsRefreshSeconds,
			HostReplyTimeout:       defaultHostReplyTimeout,
		},
		UI: UI{
			OpenPinnedTab: true,
		},
		Engines: DefaultEngines(),
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
