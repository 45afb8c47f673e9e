package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"lumen/internal/config"
	"lumen/internal/history"
	"lumen/internal/logging"
	"lumen/internal/photos"
)

type commandContext struct {
	configFlag *string

	cfg     *config.Config
	cfgPath string
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// ensureConfig loads and caches the configuration for this invocation.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	flag := ""
	if c.configFlag != nil {
		flag = strings.TrimSpace(*c.configFlag)
	}
	cfg, path, _, err := config.Load(flag)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg
	c.cfgPath = path
	return cfg, nil
}

func (c *commandContext) configDir() string {
	if c.cfgPath == "" {
		return ""
	}
	return filepath.Dir(c.cfgPath)
}

// newLogger builds the CLI logger from the logging config section,
// writing to stderr so stdout stays clean for narration output.
func (c *commandContext) newLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr"},
	})
}

// openHistory opens the photo store and history store together, since the
// history store extracts legacy photos through the photo store.
func (c *commandContext) openHistory(logger *slog.Logger) (*history.Store, *photos.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	photoStore, err := photos.NewStore(cfg.PhotosDir())
	if err != nil {
		return nil, nil, fmt.Errorf("open photo store: %w", err)
	}
	store, err := history.Open(cfg, photoStore, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open history: %w", err)
	}
	return store, photoStore, nil
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
