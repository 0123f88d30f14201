package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"searchq/internal/api"
	"searchq/internal/testsupport"
)

func TestQueueCommandsThroughDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"queue", "add", "cute", "cats", "-e", "Google"}, env.configPath)
	if err != nil {
		t.Fatalf("queue add: %v", err)
	}
	requireContains(t, out, `Queued "cute cats" for Google`)

	if _, _, err := runCLI(t, []string{"queue", "add", "dogs", "-e", "Bing"}, env.configPath); err != nil {
		t.Fatalf("queue add: %v", err)
	}
	if got := testsupport.Queries(t, env.store); !reflect.DeepEqual(got, []string{"cute cats", "dogs"}) {
		t.Fatalf("store queries = %v", got)
	}

	out, _, err = runCLI(t, []string{"queue", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "cute cats")
	requireContains(t, out, "2 queued (queue order)")

	out, _, err = runCLI(t, []string{"queue", "edit", "0", "small", "cats"}, env.configPath)
	if err != nil {
		t.Fatalf("queue edit: %v", err)
	}
	requireContains(t, out, `"small cats"`)

	out, _, err = runCLI(t, []string{"queue", "search", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("queue search: %v", err)
	}
	requireContains(t, out, `Searched "dogs" on Bing`)
	requests := env.executor.Requests()
	if len(requests) != 1 || requests[0].Query != "dogs" || requests[0].Engine != "Bing" {
		t.Fatalf("executor requests = %#v", requests)
	}

	if _, _, err := runCLI(t, []string{"queue", "rm", "0"}, env.configPath); err != nil {
		t.Fatalf("queue rm: %v", err)
	}
	if got := testsupport.Queries(t, env.store); !reflect.DeepEqual(got, []string{"dogs"}) {
		t.Fatalf("store queries after remove = %v", got)
	}

	out, _, err = runCLI(t, []string{"queue", "clear"}, env.configPath)
	if err != nil {
		t.Fatalf("queue clear: %v", err)
	}
	requireContains(t, out, "Cleared 1 queued searches")

	out, _, err = runCLI(t, []string{"queue", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "Queue is empty")
}

func TestQueueCommandsFallBackToStore(t *testing.T) {
	env := setupOfflineEnv(t)

	out, _, err := runCLI(t, []string{"queue", "add", "owls"}, env.configPath)
	if err != nil {
		t.Fatalf("queue add: %v", err)
	}
	// No daemon has reported engines, so the first configured one is used.
	requireContains(t, out, `Queued "owls" for Google`)

	if _, _, err := runCLI(t, []string{"queue", "add", "bats", "-e", "DuckDuckGo"}, env.configPath); err != nil {
		t.Fatalf("queue add: %v", err)
	}

	out, _, err = runCLI(t, []string{"queue", "list", "--ordering", "stack", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	var view api.QueueView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode list output: %v\n%s", err, out)
	}
	if view.Count != 2 || len(view.Rows) != 2 || view.Rows[0].Query != "bats" {
		t.Fatalf("unexpected stack view %#v", view)
	}

	out, _, err = runCLI(t, []string{"queue", "show", view.Rows[1].ID}, env.configPath)
	if err != nil {
		t.Fatalf("queue show: %v", err)
	}
	requireContains(t, out, `"query": "owls"`)

	if _, _, err := runCLI(t, []string{"queue", "retag", view.Rows[1].ID, "Bing"}, env.configPath); err != nil {
		t.Fatalf("queue retag: %v", err)
	}
	out, _, err = runCLI(t, []string{"queue", "show", "0"}, env.configPath)
	if err != nil {
		t.Fatalf("queue show: %v", err)
	}
	requireContains(t, out, `"searchEngine": "Bing"`)
}

func TestQueueEditRejectsStaleVersion(t *testing.T) {
	env := setupOfflineEnv(t)

	if _, _, err := runCLI(t, []string{"queue", "add", "moths"}, env.configPath); err != nil {
		t.Fatalf("queue add: %v", err)
	}
	if _, _, err := runCLI(t, []string{"queue", "edit", "0", "moths", "again", "--version", "99"}, env.configPath); err == nil {
		t.Fatal("expected stale version to be rejected")
	}
}

func TestQueueExportImportRoundTrip(t *testing.T) {
	env := setupOfflineEnv(t)

	for _, query := range []string{"alpha", "beta"} {
		if _, _, err := runCLI(t, []string{"queue", "add", query}, env.configPath); err != nil {
			t.Fatalf("queue add %s: %v", query, err)
		}
	}

	target := filepath.Join(t.TempDir(), "dump.yaml")
	_, stderr, err := runCLI(t, []string{"queue", "export", "-f", "yaml", "-o", target}, env.configPath)
	if err != nil {
		t.Fatalf("queue export: %v", err)
	}
	requireContains(t, stderr, "Exported 2 queries")
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	requireContains(t, string(data), "searchQueries:")

	out, _, err := runCLI(t, []string{"queue", "import", target, "--replace"}, env.configPath)
	if err != nil {
		t.Fatalf("queue import: %v", err)
	}
	requireContains(t, out, "Replaced queue with 2 queries")

	legacy := `{"searchQueries":[{"query":"gamma","searchEngine":"Bing","timestamp":1700000000000}, 7]}`
	out, _, err = runCLIWithInput(t, []string{"queue", "import", "-"}, env.configPath, legacy)
	if err != nil {
		t.Fatalf("queue import stdin: %v", err)
	}
	requireContains(t, out, "Appended 1 queries")

	out, _, err = runCLI(t, []string{"queue", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	var view api.QueueView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode list output: %v", err)
	}
	var queries []string
	for _, row := range view.Rows {
		queries = append(queries, row.Query)
	}
	if !reflect.DeepEqual(queries, []string{"alpha", "beta", "gamma"}) {
		t.Fatalf("queries after import = %v", queries)
	}
}

func TestSortRefsForRemoval(t *testing.T) {
	refs := sortRefsForRemoval([]string{"1", "abc", "4", "0", "def"})
	var got []string
	for _, ref := range refs {
		got = append(got, ref.String())
	}
	want := []string{"#4", "#1", "#0", "abc", "def"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("sortRefsForRemoval = %v, want %v", got, want)
	}
}

func TestBuildQueueRows(t *testing.T) {
	rows := buildQueueRows([]api.QueryRow{{Index: 3, ID: "id-1", Query: "q", SearchEngine: "Google"}})
	if len(rows) != 1 || rows[0][0] != "3" || rows[0][3] != "" || rows[0][4] != "id-1" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

