package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/eringen/circlepress"
)

type commandContext struct {
	configFlag *string
	verbose    *bool

	configOnce sync.Once
	config     *circlepress.Config
	configErr  error
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{configFlag: configFlag, verbose: verbose}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil || strings.TrimSpace(*c.configFlag) == "" {
		return circlepress.DefaultConfigPath
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*circlepress.Config, error) {
	c.configOnce.Do(func() {
		cfg, exists, err := circlepress.LoadConfig(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if !exists {
			c.logger().Debug("config file not found; using defaults and environment", "path", c.configPath())
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withStore opens the configured database for a one-shot command.
func (c *commandContext) withStore(fn func(*circlepress.Config, *circlepress.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := circlepress.NewStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()
	return fn(cfg, store)
}

func (c *commandContext) logger() *slog.Logger {
	level := slog.LevelInfo
	if c.verbose != nil && *c.verbose {
		level = slog.LevelDebug
	}
	return newLogger(os.Stderr, level)
}

// newLogger writes human-readable text to terminals and JSON everywhere else.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if isTerminal(w) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
