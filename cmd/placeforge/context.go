package main

import (
	"log/slog"
	"os"
	"strings"
	"sync"

	"placeforge/internal/config"
	"placeforge/internal/logging"
	"placeforge/internal/registry"
	"placeforge/internal/runhistory"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
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

func (c *commandContext) logger() *slog.Logger {
	cfg, err := c.ensureConfig()
	if err != nil || cfg == nil {
		return logging.NewNop()
	}
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Writer: os.Stderr,
	})
	if err != nil {
		// Validate catches bad formats; this only happens when config
		// loading was bypassed.
		return logging.NewNop()
	}
	return logger
}

// openRegistry opens the item registry for the duration of one command.
func (c *commandContext) openRegistry() (*registry.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return registry.Open(cfg.Paths.RegistryPath)
}

// openHistory connects to the run history database under the data dir.
func (c *commandContext) openHistory() (*runhistory.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return runhistory.Open(cfg.Paths.DataDir)
}
