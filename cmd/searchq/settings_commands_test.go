package main

import (
	"encoding/json"
	"testing"

	"searchq/internal/settings"
	"searchq/internal/testsupport"
)

func TestSettingsSetAndShow(t *testing.T) {
	env := setupOfflineEnv(t)

	out, _, err := runCLI(t, []string{"settings", "show", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("settings show: %v", err)
	}
	var current settings.Settings
	if err := json.Unmarshal([]byte(out), &current); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if current != settings.Defaults() {
		t.Fatalf("expected defaults, got %#v", current)
	}

	if _, _, err := runCLI(t, []string{"settings", "set", "--ordering", "stack", "--remove-after-search"}, env.configPath); err != nil {
		t.Fatalf("settings set: %v", err)
	}
	out, _, err = runCLI(t, []string{"settings", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("settings show: %v", err)
	}
	requireContains(t, out, "stack")

	if _, _, err := runCLI(t, []string{"settings", "set", "--ordering", "sideways"}, env.configPath); err == nil {
		t.Fatal("expected invalid ordering to fail")
	}
	if _, _, err := runCLI(t, []string{"settings", "set"}, env.configPath); err == nil {
		t.Fatal("expected empty update to fail")
	}
}

func TestEnginesList(t *testing.T) {
	env := setupOfflineEnv(t)

	out, _, err := runCLI(t, []string{"engines", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("engines list: %v", err)
	}
	requireContains(t, out, "Google")
	requireContains(t, out, "duckduckgo.com")
}

func TestInterceptRecordsGeneratedSearch(t *testing.T) {
	env := setupOfflineEnv(t)

	out, _, err := runCLI(t, []string{"intercept", "--url", "https://www.google.com/search?q=cats", "--tab", "7"}, env.configPath)
	if err != nil {
		t.Fatalf("intercept: %v", err)
	}
	requireContains(t, out, "Inject into tab 7")
	requireContains(t, out, "Cancelled navigation and queued the search")

	out, _, err = runCLI(t, []string{"intercept", "--url", "https://example.org/", "--transition", "typed"}, env.configPath)
	if err != nil {
		t.Fatalf("intercept typed: %v", err)
	}
	requireContains(t, out, "Navigation passes through")

	if _, _, err := runCLI(t, []string{"settings", "set", "--enabled=false"}, env.configPath); err != nil {
		t.Fatalf("settings set: %v", err)
	}
	out, _, err = runCLI(t, []string{"intercept", "--url", "https://www.bing.com/search?q=dogs"}, env.configPath)
	if err != nil {
		t.Fatalf("intercept disabled: %v", err)
	}
	requireContains(t, out, "Interception is disabled")

	store := testsupport.MustOpenStore(t, env.cfg)
	if got := testsupport.Queries(t, store); len(got) != 1 || got[0] != "cats" {
		t.Fatalf("queued queries = %v", got)
	}
}
