package nativehost

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"searchq/internal/api"
	"searchq/internal/config"
	"searchq/internal/logging"
	"searchq/internal/nativemsg"
	"searchq/internal/queue"
	"searchq/internal/settings"
	"searchq/internal/testsupport"
)

type memStore struct {
	mu       sync.Mutex
	records  []queue.Record
	settings settings.Settings
	err      error
}

func newMemStore() *memStore {
	return &memStore{settings: settings.Defaults()}
}

func (s *memStore) Append(_ context.Context, rec queue.Record) (*queue.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	rec.ID = fmt.Sprintf("rec-%d", len(s.records)+1)
	s.records = append(s.records, rec)
	return &rec, nil
}

func (s *memStore) Settings(context.Context) (settings.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings, s.err
}

func (s *memStore) snapshot() []queue.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]queue.Record(nil), s.records...)
}

type fakeReporter struct {
	engines chan []string
}

func (r *fakeReporter) ReportEngines(_ context.Context, names []string) error {
	r.engines <- names
	return nil
}

func (r *fakeReporter) ReportWatcher(context.Context, string, api.WatcherStats) error {
	return nil
}

type harness struct {
	t        *testing.T
	host     *Host
	toHost   *nativemsg.Writer
	fromHost *nativemsg.Reader
}

func startHost(t *testing.T, cfg *config.Config, store Store, reporter Reporter) *harness {
	t.Helper()
	return startHostWith(t, cfg, Options{Store: store, Reporter: reporter})
}

func startHostWith(t *testing.T, cfg *config.Config, opts Options) *harness {
	t.Helper()
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	host, err := New(cfg, inR, outW, opts, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- host.Run(context.Background()) }()
	t.Cleanup(func() {
		_ = outR.Close()
		_ = inW.Close()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run returned error: %v", err)
			}
		case <-time.After(3 * time.Second):
			t.Error("host did not stop after input closed")
		}
	})
	return &harness{t: t, host: host, toHost: nativemsg.NewWriter(inW), fromHost: nativemsg.NewReader(outR)}
}

func (h *harness) send(v any) {
	h.t.Helper()
	if err := h.toHost.Write(v); err != nil {
		h.t.Fatalf("write to host: %v", err)
	}
}

func (h *harness) next() []byte {
	h.t.Helper()
	type result struct {
		msg []byte
		err error
	}
	ch := make(chan result, 1)
	go func() {
		msg, err := h.fromHost.Read()
		ch <- result{msg, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			h.t.Fatalf("read from host: %v", r.err)
		}
		return r.msg
	case <-time.After(3 * time.Second):
		h.t.Fatal("timed out waiting for host message")
		return nil
	}
}

func TestHostInterceptsGeneratedSearch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := newMemStore()
	h := startHost(t, cfg, store, nil)

	h.send(nativemsg.Navigation{
		Type:           nativemsg.TypeNavigation,
		ID:             "nav-1",
		URL:            "https://www.google.com/search?q=cats",
		TabID:          4,
		TransitionType: "generated",
	})

	inject := h.next()
	if nativemsg.Type(inject) != nativemsg.TypeInject {
		t.Fatalf("expected inject first, got %s", inject)
	}
	if gjson.GetBytes(inject, "tabId").Int() != 4 || gjson.GetBytes(inject, "code").String() != cfg.Watcher.InjectCode {
		t.Fatalf("unexpected inject message: %s", inject)
	}
	decision := h.next()
	if nativemsg.Type(decision) != nativemsg.TypeDecision || nativemsg.ID(decision) != "nav-1" {
		t.Fatalf("unexpected decision: %s", decision)
	}
	if !gjson.GetBytes(decision, "cancel").Bool() {
		t.Fatalf("expected cancel, got %s", decision)
	}

	records := store.snapshot()
	if len(records) != 1 || records[0].Query != "cats" || records[0].SearchEngine != "Google" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestHostPassesThroughTypedNavigation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := newMemStore()
	h := startHost(t, cfg, store, nil)

	h.send(nativemsg.Navigation{
		Type:           nativemsg.TypeNavigation,
		ID:             "nav-2",
		URL:            "https://www.google.com/search?q=cats",
		TabID:          4,
		TransitionType: "typed",
	})
	decision := h.next()
	if nativemsg.Type(decision) != nativemsg.TypeDecision || gjson.GetBytes(decision, "cancel").Bool() {
		t.Fatalf("expected pass-through decision, got %s", decision)
	}
	if records := store.snapshot(); len(records) != 0 {
		t.Fatalf("expected no records, got %+v", records)
	}
}

func TestHostDisabledPassesThrough(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := newMemStore()
	store.settings.Enabled = false
	h := startHost(t, cfg, store, nil)

	h.send(nativemsg.Navigation{
		Type:           nativemsg.TypeNavigation,
		URL:            "https://www.bing.com/search?q=dogs",
		TransitionType: "generated",
	})
	decision := h.next()
	if gjson.GetBytes(decision, "cancel").Bool() {
		t.Fatalf("disabled watcher must not cancel, got %s", decision)
	}
}

func (s *memStore) setEnabled(enabled bool) {
	s.mu.Lock()
	s.settings.Enabled = enabled
	s.mu.Unlock()
}

func TestHostRereadsEnabledOnEveryNavigation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := newMemStore()
	h := startHost(t, cfg, store, nil)

	h.send(nativemsg.Navigation{
		Type:           nativemsg.TypeNavigation,
		ID:             "nav-1",
		URL:            "https://www.google.com/search?q=cats",
		TabID:          4,
		TransitionType: "generated",
	})
	if msg := h.next(); nativemsg.Type(msg) != nativemsg.TypeInject {
		t.Fatalf("expected inject, got %s", msg)
	}
	if decision := h.next(); !gjson.GetBytes(decision, "cancel").Bool() {
		t.Fatalf("expected first navigation cancelled, got %s", decision)
	}

	store.setEnabled(false)
	h.send(nativemsg.Navigation{
		Type:           nativemsg.TypeNavigation,
		ID:             "nav-2",
		URL:            "https://www.bing.com/search?q=dogs",
		TabID:          5,
		TransitionType: "generated",
	})
	decision := h.next()
	if nativemsg.Type(decision) != nativemsg.TypeDecision || nativemsg.ID(decision) != "nav-2" {
		t.Fatalf("unexpected message after disabling: %s", decision)
	}
	if gjson.GetBytes(decision, "cancel").Bool() {
		t.Fatalf("navigation after disabling must pass through, got %s", decision)
	}
	if records := store.snapshot(); len(records) != 1 {
		t.Fatalf("expected 1 record after disabling, got %+v", records)
	}

	store.setEnabled(true)
	h.send(nativemsg.Navigation{
		Type:           nativemsg.TypeNavigation,
		ID:             "nav-3",
		URL:            "https://duckduckgo.com/?q=birds",
		TabID:          6,
		TransitionType: "generated",
	})
	if msg := h.next(); nativemsg.Type(msg) != nativemsg.TypeInject {
		t.Fatalf("expected inject after re-enabling, got %s", msg)
	}
	if decision := h.next(); !gjson.GetBytes(decision, "cancel").Bool() {
		t.Fatalf("expected cancel after re-enabling, got %s", decision)
	}
	if records := store.snapshot(); len(records) != 2 || records[1].Query != "birds" {
		t.Fatalf("unexpected records after re-enabling: %+v", records)
	}
}

func TestHostPingAndUnknown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	h := startHost(t, cfg, newMemStore(), nil)

	h.send(map[string]string{"type": nativemsg.TypePing, "id": "p1"})
	pong := h.next()
	if nativemsg.Type(pong) != nativemsg.TypePong || nativemsg.ID(pong) != "p1" {
		t.Fatalf("unexpected pong: %s", pong)
	}

	h.send(map[string]string{"type": "bogus", "id": "b1"})
	reply := h.next()
	if nativemsg.Type(reply) != nativemsg.TypeError || nativemsg.ID(reply) != "b1" {
		t.Fatalf("unexpected error reply: %s", reply)
	}
}

func TestHostEnginesReported(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	reporter := &fakeReporter{engines: make(chan []string, 1)}
	h := startHost(t, cfg, newMemStore(), reporter)

	h.send(map[string]any{
		"type":    nativemsg.TypeEngines,
		"engines": []map[string]string{{"name": "Startpage"}, {"name": "Google"}},
	})
	select {
	case names := <-reporter.engines:
		if len(names) != 2 || names[0] != "Startpage" {
			t.Fatalf("unexpected reported names: %v", names)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("engines were not reported")
	}
	listed, err := h.host.catalog.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) == 0 || listed[0].Name != "Startpage" {
		t.Fatalf("expected reported engine first, got %+v", listed)
	}
}

func TestHostInstalledCreatesPinnedTab(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	h := startHost(t, cfg, newMemStore(), nil)

	h.send(map[string]string{"type": nativemsg.TypeInstalled})

	query := h.next()
	if nativemsg.Type(query) != nativemsg.TypeTabsQuery {
		t.Fatalf("expected tabs.query, got %s", query)
	}
	if got := gjson.GetBytes(query, "params.url").String(); got != cfg.ManagerPageURL() {
		t.Fatalf("expected query for %q, got %q", cfg.ManagerPageURL(), got)
	}
	h.send(map[string]any{"type": nativemsg.TypeReply, "id": nativemsg.ID(query), "ok": true, "result": []any{}})

	create := h.next()
	if nativemsg.Type(create) != nativemsg.TypeTabsCreate {
		t.Fatalf("expected tabs.create, got %s", create)
	}
	if !gjson.GetBytes(create, "params.pinned").Bool() {
		t.Fatalf("expected pinned tab, got %s", create)
	}
	h.send(map[string]any{"type": nativemsg.TypeReply, "id": nativemsg.ID(create), "ok": true, "result": map[string]any{"id": 9, "pinned": true}})
}

func TestHostInstalledActivatesExistingTab(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	h := startHost(t, cfg, newMemStore(), nil)

	h.send(map[string]string{"type": nativemsg.TypeInstalled})
	query := h.next()
	h.send(map[string]any{
		"type":   nativemsg.TypeReply,
		"id":     nativemsg.ID(query),
		"ok":     true,
		"result": []map[string]any{{"id": 3, "pinned": false}, {"id": 5, "pinned": true}},
	})

	update := h.next()
	if nativemsg.Type(update) != nativemsg.TypeTabsUpdate {
		t.Fatalf("expected tabs.update, got %s", update)
	}
	if gjson.GetBytes(update, "params.tabId").Int() != 5 || !gjson.GetBytes(update, "params.active").Bool() {
		t.Fatalf("unexpected update params: %s", update)
	}
	h.send(map[string]any{"type": nativemsg.TypeReply, "id": nativemsg.ID(update), "ok": true})
}

type completion struct {
	ticket  string
	message string
}

type fakeSearchSource struct {
	searches  chan api.BrowserSearch
	completed chan completion
}

func newFakeSearchSource() *fakeSearchSource {
	return &fakeSearchSource{searches: make(chan api.BrowserSearch, 1), completed: make(chan completion, 1)}
}

func (f *fakeSearchSource) ClaimSearch(ctx context.Context, _ string) (api.BrowserSearch, bool, error) {
	select {
	case search := <-f.searches:
		return search, true, nil
	case <-ctx.Done():
		return api.BrowserSearch{}, false, ctx.Err()
	}
}

func (f *fakeSearchSource) CompleteSearch(_ context.Context, ticket, message string) error {
	f.completed <- completion{ticket: ticket, message: message}
	return nil
}

func TestHostRunsClaimedBrowserSearch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	source := newFakeSearchSource()
	h := startHostWith(t, cfg, Options{Store: newMemStore(), Searches: source})

	source.searches <- api.BrowserSearch{Ticket: "t1", Engine: "Google Search", Query: "cats", Disposition: "NEW_TAB"}
	req := h.next()
	if nativemsg.Type(req) != nativemsg.TypeSearch {
		t.Fatalf("expected search request, got %s", req)
	}
	params := gjson.GetBytes(req, "params")
	if params.Get("engine").String() != "Google Search" || params.Get("query").String() != "cats" || params.Get("disposition").String() != "NEW_TAB" {
		t.Fatalf("unexpected search params: %s", req)
	}
	h.send(map[string]any{"type": nativemsg.TypeReply, "id": nativemsg.ID(req), "ok": true})

	select {
	case got := <-source.completed:
		if got != (completion{ticket: "t1"}) {
			t.Fatalf("unexpected completion: %+v", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("search outcome was not reported")
	}
}

func TestHostReportsFailedBrowserSearch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	source := newFakeSearchSource()
	h := startHostWith(t, cfg, Options{Store: newMemStore(), Searches: source})

	source.searches <- api.BrowserSearch{Ticket: "t2", Engine: "Startpage", Query: "dogs"}
	req := h.next()
	if got := gjson.GetBytes(req, "params.disposition").String(); got != "NEW_TAB" {
		t.Fatalf("expected default NEW_TAB disposition, got %q", got)
	}
	h.send(map[string]any{"type": nativemsg.TypeReply, "id": nativemsg.ID(req), "ok": false, "error": "unknown engine"})

	select {
	case got := <-source.completed:
		if got.ticket != "t2" || got.message != "search: unknown engine" {
			t.Fatalf("unexpected completion: %+v", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("search outcome was not reported")
	}
}

func TestPendingCalls(t *testing.T) {
	p := newPendingCalls(20 * time.Millisecond)
	_, ch, err := p.register()
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := p.wait(context.Background(), "tabs.query", ch); !errors.Is(err, ErrReplyTimeout) {
		t.Fatalf("expected ErrReplyTimeout, got %v", err)
	}

	id, ch, _ := p.register()
	if !p.resolve(nativemsg.Reply{ID: id, OK: false, Error: "no such tab"}) {
		t.Fatal("expected reply to resolve")
	}
	if _, err := p.wait(context.Background(), "tabs.update", ch); err == nil || err.Error() != "tabs.update: no such tab" {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.resolve(nativemsg.Reply{ID: "unknown"}) {
		t.Fatal("unknown id must not resolve")
	}

	p.closeAll()
	if _, _, err := p.register(); !errors.Is(err, ErrHostClosed) {
		t.Fatalf("expected ErrHostClosed, got %v", err)
	}
}

type fakeTabs struct {
	tabs      []Tab
	created   []string
	activated []int
}

func (f *fakeTabs) Query(context.Context, string) ([]Tab, error) { return f.tabs, nil }

func (f *fakeTabs) Create(_ context.Context, url string, pinned bool) (Tab, error) {
	if !pinned {
		return Tab{}, errors.New("expected pinned")
	}
	f.created = append(f.created, url)
	return Tab{ID: 1, URL: url, Pinned: true}, nil
}

func (f *fakeTabs) Activate(_ context.Context, id int) error {
	f.activated = append(f.activated, id)
	return nil
}

func TestOpenManager(t *testing.T) {
	tabs := &fakeTabs{tabs: []Tab{{ID: 2, Pinned: false}}}
	if err := OpenManager(context.Background(), tabs, "http://127.0.0.1:7488/", nil); err != nil {
		t.Fatalf("OpenManager: %v", err)
	}
	if len(tabs.created) != 1 || len(tabs.activated) != 0 {
		t.Fatalf("expected a created tab, got %+v", tabs)
	}

	tabs = &fakeTabs{tabs: []Tab{{ID: 7, Pinned: true}}}
	if err := OpenManager(context.Background(), tabs, "http://127.0.0.1:7488/", nil); err != nil {
		t.Fatalf("OpenManager: %v", err)
	}
	if len(tabs.created) != 0 || len(tabs.activated) != 1 || tabs.activated[0] != 7 {
		t.Fatalf("expected tab 7 activated, got %+v", tabs)
	}
}
