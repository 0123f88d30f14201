package daemonrun_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"searchq/internal/daemonrun"
	"searchq/internal/ipc"
	"searchq/internal/testsupport"
)

func TestRunRequiresConfig(t *testing.T) {
	if err := daemonrun.Run(context.Background(), nil, daemonrun.Options{}); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestRunStopsOnIPCRequest(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithShortDataDir())
	cfg.Paths.APIBind = ""

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- daemonrun.Run(ctx, cfg, daemonrun.Options{LogLevel: "error"})
	}()

	client := waitForClient(t, cfg.SocketPath(), done)
	defer client.Close()

	status, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running || status.PID != os.Getpid() {
		t.Fatalf("unexpected status: %+v", status)
	}
	if _, err := os.Stat(cfg.PIDPath()); err != nil {
		t.Fatalf("expected pid file: %v", err)
	}

	if _, err := client.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after stop request")
	}
	if _, err := os.Stat(cfg.PIDPath()); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed, got %v", err)
	}
	if _, err := os.Stat(cfg.SocketPath()); !os.IsNotExist(err) {
		t.Fatalf("expected socket removed, got %v", err)
	}

	target, err := filepath.EvalSymlinks(filepath.Join(cfg.Paths.LogDir, "searchq.log"))
	if err != nil {
		t.Fatalf("resolve current log: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(target), "searchq-") {
		t.Fatalf("current log points at %q", target)
	}
}

func waitForClient(t *testing.T, socket string, done <-chan error) *ipc.Client {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case err := <-done:
			t.Fatalf("Run exited early: %v", err)
		default:
		}
		if client, err := ipc.Dial(socket); err == nil {
			return client
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("daemon socket did not appear")
	return nil
}
