package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// projectConfigName is looked up in the working directory when the user
// config file is absent.
const projectConfigName = "searchq.toml"

// DefaultConfigPath returns the expanded user config location.
func DefaultConfigPath() (string, error) {
	return ExpandPath(defaultConfigPath)
}

// resolveConfigPath picks the file Load should read. An explicit path is
// used as given even when missing; otherwise the user config wins over a
// project-local searchq.toml. When nothing exists the user path is
// returned with exists=false.
func resolveConfigPath(explicit string) (string, bool, error) {
	if explicit != "" {
		path, err := ExpandPath(explicit)
		if err != nil {
			return "", false, err
		}
		exists, err := isRegularFile(path)
		return path, exists, err
	}

	userPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{userPath, projectPath} {
		exists, err := isRegularFile(candidate)
		if err != nil {
			return "", false, err
		}
		if exists {
			return candidate, true, nil
		}
	}
	return userPath, false, nil
}

func isRegularFile(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat config: %w", err)
	case info.IsDir():
		return false, fmt.Errorf("config path %s is a directory", path)
	}
	return true, nil
}

// ExpandPath resolves a leading ~ to the home directory and returns an
// absolute, cleaned path. The empty string is returned unchanged.
func ExpandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		value = home + strings.TrimPrefix(value, "~")
	}
	absolute, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", value, err)
	}
	return absolute, nil
}

func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func (c *Config) dataFile(name string) string {
	return filepath.Join(c.Paths.DataDir, name)
}

// DatabasePath is the SQLite queue database.
func (c *Config) DatabasePath() string { return c.dataFile("searchq.db") }

// SocketPath is the daemon's JSON-RPC socket.
func (c *Config) SocketPath() string { return c.dataFile("searchq.sock") }

// LockPath is the single-instance lock held while the daemon runs.
func (c *Config) LockPath() string { return c.dataFile("searchq.lock") }

// PIDPath is written by the daemon after it takes the lock.
func (c *Config) PIDPath() string { return c.dataFile("searchq.pid") }

// ManagerURL returns the address of the management page. An explicit
// ui.manager_url wins; otherwise it is derived from paths.api_bind, with
// wildcard hosts mapped to loopback.
func (c *Config) ManagerURL() string {
	if explicit := strings.TrimSpace(c.UI.ManagerURL); explicit != "" {
		return explicit
	}
	host, port, err := net.SplitHostPort(c.Paths.APIBind)
	if err != nil {
		return "http://" + c.Paths.APIBind + "/"
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/"
}

// ManagerPageURL is the URL a browser tab opens. When paths.api_token is set
// it carries the token as ?token= so the page loads without a 401.
func (c *Config) ManagerPageURL() string {
	base := c.ManagerURL()
	if c.Paths.APIToken == "" {
		return base
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	query := u.Query()
	query.Set("token", c.Paths.APIToken)
	u.RawQuery = query.Encode()
	return u.String()
}
