package queueaccess_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/flock"

	"searchq/internal/api"
	"searchq/internal/daemon"
	"searchq/internal/engines"
	"searchq/internal/ipc"
	"searchq/internal/logging"
	"searchq/internal/queue"
	"searchq/internal/queueaccess"
	"searchq/internal/settings"
	"searchq/internal/testsupport"
)

type stubExecutor struct {
	err   error
	calls int
}

func (s *stubExecutor) Execute(context.Context, engines.Request) error {
	s.calls++
	return s.err
}

func TestOpenWithFallbackUsesStoreWhenDaemonOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	exec := &stubExecutor{}
	session, err := queueaccess.OpenWithFallback(
		func() (*ipc.Client, error) { return nil, errors.New("offline") },
		func() (*queue.Store, error) { return queue.Open(cfg) },
		queueaccess.StoreOptions{Registry: engines.NewCatalog(cfg.Engines), Executor: exec, Logger: logging.NewNop()},
	)
	if err != nil {
		t.Fatalf("OpenWithFallback: %v", err)
	}
	defer session.Close()
	if session.Remote {
		t.Fatal("expected store-backed session")
	}

	ctx := context.Background()
	access := session.Access
	for _, q := range []string{"A", "B", "C"} {
		if _, err := access.Add(ctx, api.AddRequest{Query: q, SearchEngine: "Google"}); err != nil {
			t.Fatalf("Add %s: %v", q, err)
		}
	}
	if _, err := access.UpdateSettings(ctx, settings.Update{RemoveAfterSearch: settings.Bool(true)}); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	result, err := access.Search(ctx, api.SearchRequest{Ref: api.ByIndex(1)})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !result.Removed || exec.calls != 1 {
		t.Fatalf("unexpected search result %+v calls=%d", result, exec.calls)
	}
	rows, err := access.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 2 || rows[0].Query != "A" || rows[1].Query != "C" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	names, err := access.Engines(ctx)
	if err != nil {
		t.Fatalf("Engines: %v", err)
	}
	if len(names) != len(cfg.Engines) {
		t.Fatalf("expected configured engines, got %v", names)
	}
}

func TestOpenWithFallbackPrefersDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithShortDataDir())
	cfg.Paths.APIBind = ""
	store := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, store, logging.NewNop(), daemon.WithExecutor(&stubExecutor{}))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logging.NewNop())
	if err != nil {
		t.Skipf("skipping IPC test: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	session, err := queueaccess.OpenWithFallback(
		func() (*ipc.Client, error) { return ipc.Dial(cfg.SocketPath()) },
		func() (*queue.Store, error) {
			t.Fatal("store opener must not run when the daemon answers")
			return nil, nil
		},
		queueaccess.StoreOptions{},
	)
	if err != nil {
		t.Fatalf("OpenWithFallback: %v", err)
	}
	defer session.Close()
	if !session.Remote {
		t.Fatal("expected IPC-backed session")
	}
	if _, err := session.Access.Append(ctx, queue.Record{Query: "cats", SearchEngine: "Google"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if got := testsupport.Queries(t, store); len(got) != 1 || got[0] != "cats" {
		t.Fatalf("unexpected queue: %v", got)
	}
}

func TestOpenWithFallbackWithoutOpener(t *testing.T) {
	if _, err := queueaccess.OpenWithFallback(nil, nil, queueaccess.StoreOptions{}); err == nil {
		t.Fatal("expected error without any opener")
	}
}

func TestOpenWithFallbackRefusesStoreWhileDaemonHoldsLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	lock := flock.New(cfg.LockPath())
	if err := lock.Lock(); err != nil {
		t.Fatalf("lock: %v", err)
	}
	t.Cleanup(func() { _ = lock.Unlock() })

	_, err := queueaccess.OpenWithFallback(
		func() (*ipc.Client, error) { return nil, errors.New("connection refused") },
		func() (*queue.Store, error) {
			t.Fatal("store opener must not run while the daemon lock is held")
			return nil, nil
		},
		queueaccess.StoreOptions{LockPath: cfg.LockPath()},
	)
	if !errors.Is(err, queueaccess.ErrDaemonUnreachable) {
		t.Fatalf("expected ErrDaemonUnreachable, got %v", err)
	}

	_ = lock.Unlock()
	session, err := queueaccess.OpenWithFallback(
		func() (*ipc.Client, error) { return nil, errors.New("connection refused") },
		func() (*queue.Store, error) { return queue.Open(cfg) },
		queueaccess.StoreOptions{LockPath: cfg.LockPath()},
	)
	if err != nil {
		t.Fatalf("expected store fallback once the lock is free: %v", err)
	}
	session.Close()
}
