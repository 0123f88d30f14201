package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"searchq/internal/api"
	"searchq/internal/engines"
	"searchq/internal/queue"
	"searchq/internal/settings"
	"searchq/internal/testsupport"
)

func settingsRemoveAfterSearch() settings.Update {
	return settings.Update{RemoveAfterSearch: settings.Bool(true)}
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestAPIServerQueueLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, store := startTestDaemon(t, cfg, &fakeExecutor{})
	h := d.api

	for _, q := range []string{"A", "B", "C"} {
		w := doRequest(t, h, http.MethodPost, "/api/queue", api.AddRequest{Query: q, SearchEngine: "Google"})
		if w.Code != http.StatusCreated {
			t.Fatalf("add %s: expected 201, got %d: %s", q, w.Code, w.Body.String())
		}
	}

	w := doRequest(t, h, http.MethodGet, "/api/queue?ordering=stack", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	view := decodeBody[api.QueueView](t, w)
	if len(view.Rows) != 3 || view.Rows[0].Query != "C" || view.Rows[0].Index != 2 || view.Rows[2].Query != "A" {
		t.Fatalf("unexpected stack view: %+v", view.Rows)
	}
	if got := testsupport.Queries(t, store); strings.Join(got, ",") != "A,B,C" {
		t.Fatalf("stored order changed: %v", got)
	}

	w = doRequest(t, h, http.MethodPatch, "/api/queue/1", map[string]any{"query": "cats"})
	if w.Code != http.StatusOK {
		t.Fatalf("edit: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	row := decodeBody[api.QueryRow](t, w)
	if row.Query != "cats" || row.SearchEngine != "Google" || row.Version != 2 {
		t.Fatalf("unexpected edited row: %+v", row)
	}

	w = doRequest(t, h, http.MethodDelete, "/api/queue/0", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("remove: expected 204, got %d", w.Code)
	}
	if got := testsupport.Queries(t, store); strings.Join(got, ",") != "cats,C" {
		t.Fatalf("unexpected queue after remove: %v", got)
	}

	w = doRequest(t, h, http.MethodDelete, "/api/queue", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("clear: expected 200, got %d", w.Code)
	}
	if cleared := decodeBody[api.ClearResult](t, w); cleared.Removed != 2 {
		t.Fatalf("expected 2 removed, got %d", cleared.Removed)
	}
}

func TestAPIServerEditConflictAndMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, store := startTestDaemon(t, cfg, &fakeExecutor{})
	rec := testsupport.MustAppend(t, store, "dogs", "Bing")

	w := doRequest(t, d.api, http.MethodPatch, "/api/queue/"+rec.ID, map[string]any{"query": "cats", "version": 5})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	w = doRequest(t, d.api, http.MethodPatch, "/api/queue/7", map[string]any{"query": "cats"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	w = doRequest(t, d.api, http.MethodPatch, "/api/queue/0", map[string]any{"query": "   "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty query, got %d", w.Code)
	}
	w = doRequest(t, d.api, http.MethodPatch, "/api/queue/0", `{"bogus":1}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", w.Code)
	}
}

func TestAPIServerSearch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	exec := &fakeExecutor{}
	d, store := startTestDaemon(t, cfg, exec)
	testsupport.MustAppend(t, store, "A", "Google")
	testsupport.MustAppend(t, store, "B", "Google")

	w := doRequest(t, d.api, http.MethodPatch, "/api/settings", map[string]any{"removeAfterSearch": true})
	if w.Code != http.StatusOK {
		t.Fatalf("settings: expected 200, got %d", w.Code)
	}
	w = doRequest(t, d.api, http.MethodPost, "/api/queue/1/search", map[string]any{"searchEngine": "DuckDuckGo"})
	if w.Code != http.StatusOK {
		t.Fatalf("search: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	result := decodeBody[api.SearchResult](t, w)
	if !result.Removed || result.Engine != "DuckDuckGo" {
		t.Fatalf("unexpected search result: %+v", result)
	}
	if calls := exec.calls(); len(calls) != 1 || calls[0].Engine != "DuckDuckGo" || calls[0].Query != "B" {
		t.Fatalf("unexpected executor calls: %+v", calls)
	}

	w = doRequest(t, d.api, http.MethodPost, "/api/queue/0/search", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search without body: expected 200, got %d", w.Code)
	}
	if got := testsupport.Queries(t, store); len(got) != 0 {
		t.Fatalf("expected empty queue, got %v", got)
	}
}

func TestAPIServerSettingsValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := startTestDaemon(t, cfg, &fakeExecutor{})

	w := doRequest(t, d.api, http.MethodPatch, "/api/settings", map[string]any{"ordering": "random"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	w = doRequest(t, d.api, http.MethodGet, "/api/settings", nil)
	current := decodeBody[settings.Settings](t, w)
	if current != settings.Defaults() {
		t.Fatalf("settings changed by rejected update: %+v", current)
	}
	w = doRequest(t, d.api, http.MethodGet, "/api/queue?ordering=random", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad ordering query, got %d", w.Code)
	}
}

func TestAPIServerExportImport(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, store := startTestDaemon(t, cfg, &fakeExecutor{})
	testsupport.MustAppend(t, store, "old", "Bing")

	payload := `{"searchQueries":[{"query":"x","searchEngine":"Google","timestamp":1700000000000}],"ordering":"stack"}`
	w := doRequest(t, d.api, http.MethodPost, "/api/import?replace=true", payload)
	if w.Code != http.StatusOK {
		t.Fatalf("import: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	result := decodeBody[api.ImportResult](t, w)
	if result.Imported != 1 || !result.Replaced || result.Settings.Ordering != settings.OrderingStack {
		t.Fatalf("unexpected import result: %+v", result)
	}

	w = doRequest(t, d.api, http.MethodGet, "/api/export?format=yaml", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export: expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/yaml" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(w.Body.String(), "query: x") {
		t.Fatalf("unexpected export body: %s", w.Body.String())
	}
	w = doRequest(t, d.api, http.MethodGet, "/api/export?format=xml", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for xml export, got %d", w.Code)
	}
}

func TestAPIServerPageRenders(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, store := startTestDaemon(t, cfg, &fakeExecutor{})
	testsupport.MustAppend(t, store, "<b>cats</b>", "Google")

	w := doRequest(t, d.api, http.MethodGet, "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "&lt;b&gt;cats&lt;/b&gt;") {
		t.Fatalf("expected escaped query in page")
	}
	if strings.Contains(body, "<b>cats</b>") {
		t.Fatalf("query rendered unescaped")
	}
}

func TestAPIServerBearerAuth(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken("s3cret"))
	d, _ := startTestDaemon(t, cfg, &fakeExecutor{})

	cases := []struct {
		name    string
		path    string
		headers []string
		want    int
	}{
		{name: "missing header", path: "/api/status", want: http.StatusUnauthorized},
		{name: "wrong token", path: "/api/status", headers: []string{"Authorization", "Bearer nope"}, want: http.StatusUnauthorized},
		{name: "valid token", path: "/api/status", headers: []string{"Authorization", "Bearer s3cret"}, want: http.StatusOK},
		{name: "query token on api", path: "/api/status?token=s3cret", want: http.StatusUnauthorized},
		{name: "query token on page", path: "/?token=s3cret", want: http.StatusOK},
		{name: "health exempt", path: "/health", want: http.StatusOK},
		{name: "metrics exempt", path: "/metrics", want: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(t, d.api, http.MethodGet, tc.path, nil, tc.headers...)
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, w.Code)
			}
		})
	}
}

func TestAPIServerManagerPageURLAuthorized(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken("s3cret"))
	d, _ := startTestDaemon(t, cfg, &fakeExecutor{})

	if w := doRequest(t, d.api, http.MethodGet, cfg.ManagerPageURL(), nil); w.Code != http.StatusOK {
		t.Fatalf("GET %s: expected 200, got %d", cfg.ManagerPageURL(), w.Code)
	}
	if w := doRequest(t, d.api, http.MethodGet, cfg.ManagerURL(), nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("GET %s without token: expected 401, got %d", cfg.ManagerURL(), w.Code)
	}
}

func TestAPIServerMetrics(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := startTestDaemon(t, cfg, &fakeExecutor{})

	doRequest(t, d.api, http.MethodPost, "/api/queue", api.AddRequest{Query: "A"})
	w := doRequest(t, d.api, http.MethodGet, "/metrics", nil)
	body := w.Body.String()
	for _, want := range []string{
		`searchq_queue_mutations_total{op="add"} 1`,
		"searchq_queue_length 1",
		"searchq_http_requests_total",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", queue.ErrNotFound), http.StatusNotFound},
		{queue.ErrVersionConflict, http.StatusConflict},
		{settings.ErrInvalidOrdering, http.StatusBadRequest},
		{api.ErrEmptyQuery, http.StatusBadRequest},
		{api.ErrInvalidRef, http.StatusBadRequest},
		{engines.ErrUnknownEngine, http.StatusUnprocessableEntity},
		{ErrNotRunning, http.StatusServiceUnavailable},
		{fmt.Errorf("search: %w", ErrNoBrowserHost), http.StatusServiceUnavailable},
		{ErrBrowserSearchTimeout, http.StatusGatewayTimeout},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
