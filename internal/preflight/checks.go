package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"golang.org/x/sys/unix"

	"searchq/internal/config"
	"searchq/internal/queue"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDatabase opens an existing queue database and runs its health check.
func CheckDatabase(ctx context.Context, path string) Result {
	const name = "Queue database"
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (not created yet)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	store, err := queue.OpenPath(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	defer store.Close()

	health, err := store.CheckHealth(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if !health.IntegrityCheck || len(health.MissingTables) > 0 {
		detail := health.Error
		if len(health.MissingTables) > 0 {
			detail = "missing tables: " + strings.Join(health.MissingTables, ", ")
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s)", path, detail)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d queued, schema v%d)", path, health.TotalRecords, health.SchemaVersion)}
}

// CheckEngines reports whether any engine can replay a search.
func CheckEngines(engines []config.Engine) Result {
	const name = "Search engines"
	usable := 0
	for _, e := range engines {
		if strings.TrimSpace(e.SearchURL) != "" {
			usable++
		}
	}
	if usable == 0 {
		return Result{Name: name, Optional: true, Detail: "no engine has a search_url; search-now is unavailable"}
	}
	return Result{Name: name, Passed: true, Optional: true, Detail: fmt.Sprintf("%d of %d engines can replay searches", usable, len(engines))}
}

// CheckBindAddress verifies the API address is free to listen on.
func CheckBindAddress(bind string) Result {
	const name = "API address"
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", bind, err)}
	}
	_ = listener.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (available)", bind)}
}

// browserOpeners lists the helpers github.com/pkg/browser shells out to.
var browserOpeners = map[string][]string{
	"linux":   {"xdg-open", "x-www-browser", "www-browser"},
	"freebsd": {"xdg-open"},
	"openbsd": {"xdg-open"},
	"darwin":  {"open"},
}

// CheckBrowserOpener verifies a desktop helper exists to open replayed
// searches.
func CheckBrowserOpener() Result {
	const name = "Browser opener"
	candidates, ok := browserOpeners[runtime.GOOS]
	if !ok {
		return Result{Name: name, Passed: true, Optional: true, Detail: "platform default"}
	}
	for _, candidate := range candidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return Result{Name: name, Passed: true, Optional: true, Detail: path}
		}
	}
	return Result{Name: name, Optional: true, Detail: fmt.Sprintf("none of %s found in PATH", strings.Join(candidates, ", "))}
}
