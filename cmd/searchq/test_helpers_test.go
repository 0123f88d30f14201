package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"searchq/internal/config"
	"searchq/internal/daemon"
	"searchq/internal/engines"
	"searchq/internal/ipc"
	"searchq/internal/logging"
	"searchq/internal/queue"
	"searchq/internal/testsupport"
)

type recordingExecutor struct {
	mu       sync.Mutex
	requests []engines.Request
}

func (r *recordingExecutor) Execute(_ context.Context, req engines.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	return nil
}

func (r *recordingExecutor) Requests() []engines.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]engines.Request(nil), r.requests...)
}

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	daemon     *daemon.Daemon
	executor   *recordingExecutor
	configPath string
}

// setupOfflineEnv writes a config file and leaves the daemon stopped so
// commands fall back to the database.
func setupOfflineEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("SEARCHQ_API_TOKEN", "")

	cfg := testsupport.NewConfig(t, testsupport.WithShortDataDir())
	configPath := filepath.Join(homeDir, ".config", "searchq", "config.toml")
	writeTestConfig(t, configPath, cfg)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

// setupCLITestEnv starts a daemon and IPC server on the configured socket.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	env := setupOfflineEnv(t)

	daemonCfg := *env.cfg
	daemonCfg.Paths.APIBind = ""
	store := testsupport.MustOpenStore(t, &daemonCfg)
	logger := logging.NewNop()
	exec := &recordingExecutor{}
	d, err := daemon.New(&daemonCfg, store, logger, daemon.WithExecutor(exec))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon.Start: %v", err)
	}
	srv, err := ipc.NewServer(ctx, env.cfg.SocketPath(), d, logger)
	if err != nil {
		cancel()
		d.Close()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI daemon test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Close()
	})

	env.store = store
	env.daemon = d
	env.executor = exec
	return env
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	return runCLIWithInput(t, args, configPath, "")
}

func runCLIWithInput(t *testing.T, args []string, configPath, stdin string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	encoded, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	testsupport.WriteFile(t, path, encoded)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected output to contain %q\nactual: %s", substr, output)
	}
}

func requireNotContains(t *testing.T, output, substr string) {
	t.Helper()
	if strings.Contains(output, substr) {
		t.Fatalf("expected output not to contain %q\nactual: %s", substr, output)
	}
}
