package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"searchq/internal/api"
	"searchq/internal/config"
	"searchq/internal/engines"
	"searchq/internal/logging"
	"searchq/internal/queue"
	"searchq/internal/testsupport"
)

type fakeExecutor struct {
	mu       sync.Mutex
	requests []engines.Request
	err      error
}

func (f *fakeExecutor) Execute(_ context.Context, req engines.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.err
}

func (f *fakeExecutor) calls() []engines.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engines.Request(nil), f.requests...)
}

func newTestDaemon(t *testing.T, cfg *config.Config, exec *fakeExecutor) (*Daemon, *queue.Store) {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	d, err := New(cfg, store, logging.NewNop(), WithExecutor(exec))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d, store
}

func startTestDaemon(t *testing.T, cfg *config.Config, exec *fakeExecutor) (*Daemon, *queue.Store) {
	t.Helper()
	d, store := newTestDaemon(t, cfg, exec)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return d, store
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := startTestDaemon(t, cfg, &fakeExecutor{})

	if !d.Running() {
		t.Fatal("expected daemon to be running")
	}
	if err := d.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}
	if d.APIAddr() == "" {
		t.Fatal("expected api server to listen")
	}
	status := d.Status(context.Background())
	if !status.Running || status.LockPath != cfg.LockPath() || status.StartedAt == "" {
		t.Fatalf("unexpected status: %+v", status)
	}

	d.Stop()
	if d.Running() {
		t.Fatal("expected daemon stopped")
	}
	if _, err := d.Add(context.Background(), api.AddRequest{Query: "late"}); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning after stop, got %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	startTestDaemon(t, cfg, &fakeExecutor{})

	other := *cfg
	other.Paths.APIBind = ""
	second, _ := newTestDaemon(t, &other, &fakeExecutor{})
	err := second.Start(context.Background())
	if err == nil {
		t.Fatal("expected lock contention error")
	}
}

func TestDaemonSerializesConcurrentMutations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, store := startTestDaemon(t, cfg, &fakeExecutor{})
	ctx := context.Background()

	const writers = 40
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := d.Add(ctx, api.AddRequest{Query: fmt.Sprintf("q%d", i), SearchEngine: "Google"}); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Add failed: %v", err)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != writers {
		t.Fatalf("expected %d records, got %d", writers, count)
	}
}

func TestDaemonSearchRemovesAfterSearch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	exec := &fakeExecutor{}
	d, store := startTestDaemon(t, cfg, exec)
	ctx := context.Background()

	testsupport.MustAppend(t, store, "A", "Google")
	testsupport.MustAppend(t, store, "B", "Bing")
	testsupport.MustAppend(t, store, "C", "Google")
	if _, err := d.UpdateSettings(ctx, settingsRemoveAfterSearch()); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}

	result, err := d.Search(ctx, api.SearchRequest{Ref: api.ByIndex(1)})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !result.Removed || result.Engine != "Bing" {
		t.Fatalf("unexpected result: %+v", result)
	}
	calls := exec.calls()
	if len(calls) != 1 || calls[0].Query != "B" || calls[0].Disposition != engines.DispositionNewTab {
		t.Fatalf("unexpected executor calls: %+v", calls)
	}
	got := testsupport.Queries(t, store)
	if len(got) != 2 || got[0] != "A" || got[1] != "C" {
		t.Fatalf("expected [A C], got %v", got)
	}
}

func TestDaemonSearchFailureKeepsRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	exec := &fakeExecutor{err: engines.ErrUnknownEngine}
	d, store := startTestDaemon(t, cfg, exec)
	ctx := context.Background()

	testsupport.MustAppend(t, store, "A", "nowhere.example")
	if _, err := d.UpdateSettings(ctx, settingsRemoveAfterSearch()); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if _, err := d.Search(ctx, api.SearchRequest{Ref: api.ByIndex(0)}); !errors.Is(err, engines.ErrUnknownEngine) {
		t.Fatalf("expected ErrUnknownEngine, got %v", err)
	}
	if got := testsupport.Queries(t, store); len(got) != 1 {
		t.Fatalf("expected record to remain, got %v", got)
	}
}

func TestDaemonExecHonorsCanceledContext(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, store := startTestDaemon(t, cfg, &fakeExecutor{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Add(ctx, api.AddRequest{Query: "never"}); err == nil {
		t.Fatal("expected canceled context error")
	}
	if got := testsupport.Queries(t, store); len(got) != 0 {
		t.Fatalf("expected empty queue, got %v", got)
	}
}

func TestDaemonRequestShutdown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newTestDaemon(t, cfg, &fakeExecutor{})

	d.RequestShutdown()
	d.RequestShutdown()
	select {
	case <-d.ShutdownRequested():
	default:
		t.Fatal("expected shutdown channel closed")
	}
}
