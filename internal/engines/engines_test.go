package engines_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"searchq/internal/config"
	"searchq/internal/engines"
	"searchq/internal/logging"
)

func TestResolve(t *testing.T) {
	list := []engines.Engine{
		{Name: "Google"},
		{Name: "Bing"},
		{Name: "DuckDuckGo"},
		{Name: "Wikipedia (en)"},
	}
	cases := []struct {
		host string
		want string
	}{
		{"www.google.com", "Google"},
		{"www.bing.com", "Bing"},
		{"duckduckgo.com", "DuckDuckGo"},
		{"en.wikipedia.org", "Wikipedia (en)"},
		{"search.example.org", "search.example.org"},
	}
	for _, tc := range cases {
		if got := engines.Resolve(tc.host, list); got != tc.want {
			t.Fatalf("Resolve(%q) = %q, want %q", tc.host, got, tc.want)
		}
	}
}

func TestResolveFirstMatchWins(t *testing.T) {
	list := []engines.Engine{{Name: "Go Search"}, {Name: "Google"}}
	if got := engines.Resolve("www.google.com", list); got != "Go Search" {
		t.Fatalf("expected first engine in host order, got %q", got)
	}
}

func TestFirstWord(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"Google Search", "Google"},
		{"DuckDuckGo", "DuckDuckGo"},
		{"Wikipedia (en)", "Wikipedia"},
		{" Google", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := engines.FirstWord(tc.name); got != tc.want {
			t.Fatalf("FirstWord(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestResolveSkipsEmptyFirstWord(t *testing.T) {
	list := []engines.Engine{{Name: " Leading"}, {Name: "Google Search"}}
	if got := engines.Resolve("www.google.com", list); got != "Google Search" {
		t.Fatalf("engine with empty first word must not match, got %q", got)
	}
	if got := engines.Resolve("search.example.org", list); got != "search.example.org" {
		t.Fatalf("expected hostname fallback, got %q", got)
	}
}

func TestResolveWithRegistryFailureFallsBackToHost(t *testing.T) {
	got, err := engines.ResolveWith(context.Background(), failingRegistry{}, "www.google.com")
	if err == nil {
		t.Fatal("expected registry error")
	}
	if got != "www.google.com" {
		t.Fatalf("expected hostname fallback, got %q", got)
	}
}

func TestCatalogReportedOrderTakesPrecedence(t *testing.T) {
	catalog := engines.NewCatalog(config.DefaultEngines())
	catalog.SetReported([]string{"DuckDuckGo", "Ecosia", "DuckDuckGo", ""})

	list, err := catalog.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	var names []string
	for _, e := range list {
		names = append(names, e.Name)
	}
	want := []string{"DuckDuckGo", "Ecosia", "Google", "Bing", "Wikipedia (en)"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	if list[0].SearchURL == "" {
		t.Fatal("reported engine should keep configured search url")
	}
	if list[1].SearchURL != "" {
		t.Fatal("unconfigured engine should have no search url")
	}
}

func TestBrowserExecutorOpensSearchURL(t *testing.T) {
	catalog := engines.NewCatalog([]config.Engine{{Name: "Example", SearchURL: "https://example.com/s?q={searchTerms}"}})
	var opened []string
	exec := engines.NewBrowserExecutor(catalog, logging.NewNop()).WithOpener(func(u string) error {
		opened = append(opened, u)
		return nil
	})

	err := exec.Execute(context.Background(), engines.Request{Engine: "Example", Query: "cats & dogs", Disposition: engines.DispositionNewTab})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(opened) != 1 || opened[0] != "https://example.com/s?q=cats+%26+dogs" {
		t.Fatalf("unexpected opened urls %v", opened)
	}
}

func TestBrowserExecutorErrors(t *testing.T) {
	catalog := engines.NewCatalog([]config.Engine{{Name: "Example", SearchURL: "https://example.com/s?q={searchTerms}"}})
	catalog.SetReported([]string{"Reported"})
	exec := engines.NewBrowserExecutor(catalog, logging.NewNop()).WithOpener(func(string) error {
		return errors.New("no display")
	})
	ctx := context.Background()

	if err := exec.Execute(ctx, engines.Request{Engine: "www.example.org", Query: "x"}); !errors.Is(err, engines.ErrUnknownEngine) {
		t.Fatalf("expected ErrUnknownEngine, got %v", err)
	}
	if err := exec.Execute(ctx, engines.Request{Engine: "Reported", Query: "x"}); !errors.Is(err, engines.ErrNoSearchURL) {
		t.Fatalf("expected ErrNoSearchURL, got %v", err)
	}
	if err := exec.Execute(ctx, engines.Request{Engine: "Example", Query: "x"}); err == nil {
		t.Fatal("expected opener error")
	}
}

type recordingHost struct {
	requests []engines.Request
	err      error
}

func (h *recordingHost) Execute(_ context.Context, req engines.Request) error {
	h.requests = append(h.requests, req)
	return h.err
}

func TestBrowserExecutorRoutesReportedEngineToHost(t *testing.T) {
	catalog := engines.NewCatalog(config.DefaultEngines())
	catalog.SetReported([]string{"Google Search", "Startpage"})
	var opened []string
	host := &recordingHost{}
	exec := engines.NewBrowserExecutor(catalog, logging.NewNop()).
		WithOpener(func(u string) error {
			opened = append(opened, u)
			return nil
		}).
		WithHostSearch(host)
	ctx := context.Background()

	if err := exec.Execute(ctx, engines.Request{Engine: "Google Search", Query: "cats"}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	want := []engines.Request{{Engine: "Google Search", Query: "cats", Disposition: engines.DispositionNewTab}}
	if !reflect.DeepEqual(host.requests, want) {
		t.Fatalf("host requests = %+v, want %+v", host.requests, want)
	}
	if len(opened) != 0 {
		t.Fatalf("reported engine must not open a url, got %v", opened)
	}

	if err := exec.Execute(ctx, engines.Request{Engine: "Bing", Query: "dogs"}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(opened) != 1 || len(host.requests) != 1 {
		t.Fatalf("configured engine should open its url, opened=%v host=%+v", opened, host.requests)
	}

	host.err = errors.New("browser said no")
	if err := exec.Execute(ctx, engines.Request{Engine: "Startpage", Query: "x"}); err == nil || !errors.Is(err, host.err) {
		t.Fatalf("expected host error, got %v", err)
	}
}

type failingRegistry struct{}

func (failingRegistry) List(context.Context) ([]engines.Engine, error) {
	return nil, errors.New("registry unavailable")
}
