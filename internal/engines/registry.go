package engines

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"searchq/internal/config"
)

// ErrUnknownEngine indicates no registered provider carries the requested name.
var ErrUnknownEngine = errors.New("unknown search engine")

// Engine is a search provider. SearchURL may be empty for providers that the
// browser reported but the configuration does not describe.
type Engine struct {
	Name      string `json:"name"`
	SearchURL string `json:"searchUrl,omitempty"`
}

// Registry lists the available search providers in host order.
type Registry interface {
	List(ctx context.Context) ([]Engine, error)
}

// Catalog is a Registry built from configuration, optionally reordered and
// extended by the provider list the browser reports.
type Catalog struct {
	mu         sync.RWMutex
	configured []Engine
	reported   []string
}

// NewCatalog builds a catalog from the configured engines.
func NewCatalog(cfg []config.Engine) *Catalog {
	configured := make([]Engine, 0, len(cfg))
	for _, e := range cfg {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			continue
		}
		configured = append(configured, Engine{Name: name, SearchURL: strings.TrimSpace(e.SearchURL)})
	}
	return &Catalog{configured: configured}
}

// SetReported records the provider names the browser exposes. Reported
// providers come first, in the browser's order; configured engines the
// browser did not report follow.
func (c *Catalog) SetReported(names []string) {
	cleaned := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		cleaned = append(cleaned, name)
	}
	c.mu.Lock()
	c.reported = cleaned
	c.mu.Unlock()
}

// List implements Registry.
func (c *Catalog) List(context.Context) ([]Engine, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	byName := make(map[string]Engine, len(c.configured))
	for _, e := range c.configured {
		byName[e.Name] = e
	}

	out := make([]Engine, 0, len(c.configured)+len(c.reported))
	listed := make(map[string]struct{}, cap(out))
	for _, name := range c.reported {
		engine, ok := byName[name]
		if !ok {
			engine = Engine{Name: name}
		}
		out = append(out, engine)
		listed[name] = struct{}{}
	}
	for _, e := range c.configured {
		if _, ok := listed[e.Name]; ok {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Lookup returns the engine with the exact name.
func Lookup(ctx context.Context, reg Registry, name string) (Engine, error) {
	list, err := reg.List(ctx)
	if err != nil {
		return Engine{}, err
	}
	for _, e := range list {
		if e.Name == name {
			return e, nil
		}
	}
	return Engine{}, ErrUnknownEngine
}

// Resolve names the provider behind hostname: the first engine whose
// lowercased first word appears in the hostname wins. With no match the
// hostname itself is returned.
func Resolve(hostname string, engines []Engine) string {
	lower := cases.Lower(language.Und)
	host := lower.String(hostname)
	for _, e := range engines {
		word := FirstWord(e.Name)
		// An empty word is contained in every hostname.
		if word == "" {
			continue
		}
		if strings.Contains(host, lower.String(word)) {
			return e.Name
		}
	}
	return hostname
}

// ResolveWith lists the registry and resolves hostname against it. When the
// registry fails, the hostname is returned along with the error.
func ResolveWith(ctx context.Context, reg Registry, hostname string) (string, error) {
	if reg == nil {
		return hostname, nil
	}
	list, err := reg.List(ctx)
	if err != nil {
		return hostname, err
	}
	return Resolve(hostname, list), nil
}

// FirstWord returns the name up to its first space. A name that starts
// with a space has an empty first word.
func FirstWord(name string) string {
	if i := strings.IndexByte(name, ' '); i >= 0 {
		return name[:i]
	}
	return name
}
