package config

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSession(); err != nil {
		return err
	}
	if err := c.validateReference(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSession() error {
	if c.Session.GenerateTimeoutSeconds > c.Session.DeadlineSeconds {
		return fmt.Errorf("session.generate_timeout_seconds (%d) must not exceed session.deadline_seconds (%d)",
			c.Session.GenerateTimeoutSeconds, c.Session.DeadlineSeconds)
	}
	if _, err := language.Parse(c.Session.Language); err != nil {
		return fmt.Errorf("session.language: %q is not a valid BCP-47 tag: %w", c.Session.Language, err)
	}
	return nil
}

func (c *Config) validateReference() error {
	for _, name := range c.Reference.Order {
		switch name {
		case "museum", "encyclopedia":
		default:
			return fmt.Errorf("reference.order: unknown provider %q", name)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return errors.New("logging.level must be one of debug, info, warn, error")
	}
}

// NarrationLanguage returns the parsed session language tag.
func (c *Config) NarrationLanguage() language.Tag {
	tag, err := language.Parse(c.Session.Language)
	if err != nil {
		return language.English
	}
	return tag
}
