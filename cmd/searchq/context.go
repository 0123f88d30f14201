package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"searchq/internal/config"
	"searchq/internal/engines"
	"searchq/internal/ipc"
	"searchq/internal/logging"
	"searchq/internal/queue"
	"searchq/internal/queueaccess"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) resolvedLogLevel(cfg *config.Config) string {
	if c.logLevelFlag != nil {
		if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
			return level
		}
	}
	if cfg != nil {
		return cfg.Logging.Level
	}
	return "info"
}

// cliLogger logs warnings to stderr so they never mix with command output.
func (c *commandContext) cliLogger(cfg *config.Config) *slog.Logger {
	level := "warn"
	if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
		level = c.resolvedLogLevel(cfg)
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

func (c *commandContext) socketPath() string {
	if cfg := c.configValue(); cfg != nil {
		return cfg.SocketPath()
	}
	return ""
}

func (c *commandContext) storeOptions(cfg *config.Config, logger *slog.Logger) queueaccess.StoreOptions {
	catalog := engines.NewCatalog(cfg.Engines)
	return queueaccess.StoreOptions{
		Registry: catalog,
		Executor: engines.NewBrowserExecutor(catalog, logger),
		Logger:   logger,
		LockPath: cfg.LockPath(),
	}
}

func (c *commandContext) openSession() (queueaccess.Session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return queueaccess.Session{}, err
	}
	return c.openSessionWith(cfg, c.cliLogger(cfg))
}

// openSessionWith prefers the daemon socket and falls back to the database
// only while no daemon holds the lock.
func (c *commandContext) openSessionWith(cfg *config.Config, logger *slog.Logger) (queueaccess.Session, error) {
	return queueaccess.OpenWithFallback(
		func() (*ipc.Client, error) { return ipc.Dial(cfg.SocketPath()) },
		func() (*queue.Store, error) { return queue.Open(cfg) },
		c.storeOptions(cfg, logger),
	)
}

// withAccess runs fn against the daemon when it is running and against the
// database otherwise.
func (c *commandContext) withAccess(fn func(queueaccess.Access) error) error {
	session, err := c.openSession()
	if err != nil {
		return err
	}
	defer session.Close()
	return fn(session.Access)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
