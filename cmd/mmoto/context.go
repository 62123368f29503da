package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"mmoto/internal/config"
	"mmoto/internal/logging"
	"mmoto/internal/runstore"
	"mmoto/internal/transcode"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger

	store *runstore.Store
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
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

// loggerValue builds the application logger on first use and prunes daily
// log files past the retention window.
func (c *commandContext) loggerValue() *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg := c.configValue()
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			logger = logging.NewNop()
		}
		c.logger = logger
		if cfg == nil {
			return
		}
		now := time.Now()
		logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, now, logging.RetentionTarget{
			Dir:     cfg.Paths.LogDir,
			Pattern: logging.LogFilePattern,
			Exclude: []string{logging.LogFileName(now)},
		})
	})
	return c.logger
}

func (c *commandContext) gateway() *transcode.Gateway {
	return transcode.NewGateway(transcode.OptionsFromConfig(c.configValue()), c.loggerValue())
}

// runStore opens the run history database once per invocation.
func (c *commandContext) runStore() (*runstore.Store, error) {
	if c.store != nil {
		return c.store, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := runstore.Open(cfg.StatePath())
	if err != nil {
		return nil, fmt.Errorf("open run history %s: %w", cfg.StatePath(), err)
	}
	c.store = store
	return store, nil
}

func (c *commandContext) close() error {
	var errs []error
	if c.store != nil {
		errs = append(errs, c.store.Close())
		c.store = nil
	}
	return errors.Join(errs...)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func expandArg(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	expanded, err := config.ExpandPath(value)
	if err != nil {
		return "", err
	}
	return filepath.Clean(expanded), nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
