package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeVision()
	c.normalizeCache()
	c.normalizeReference()
	c.normalizeTTS()
	c.normalizeSession()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeVision() {
	c.Vision.APIKey = strings.TrimSpace(c.Vision.APIKey)
	c.Vision.BaseURL = strings.TrimSpace(c.Vision.BaseURL)
	c.Vision.Model = strings.TrimSpace(c.Vision.Model)
	if c.Vision.BaseURL == "" {
		c.Vision.BaseURL = defaultVisionBaseURL
	}
	if c.Vision.Model == "" {
		c.Vision.Model = defaultVisionModel
	}
	if c.Vision.TimeoutSeconds <= 0 {
		c.Vision.TimeoutSeconds = defaultVisionTimeoutSeconds
	}
}

func (c *Config) normalizeCache() {
	c.Cache.BaseURL = strings.TrimRight(strings.TrimSpace(c.Cache.BaseURL), "/")
	c.Cache.APIToken = strings.TrimSpace(c.Cache.APIToken)
	if c.Cache.TimeoutSeconds <= 0 {
		c.Cache.TimeoutSeconds = defaultCacheTimeoutSeconds
	}
	if c.Cache.BaseURL == "" {
		c.Cache.Enabled = false
	}
}

func (c *Config) normalizeReference() {
	order := make([]string, 0, len(c.Reference.Order))
	for _, name := range c.Reference.Order {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			order = append(order, name)
		}
	}
	if len(order) == 0 {
		order = []string{"museum", "encyclopedia"}
	}
	c.Reference.Order = order
	c.Reference.MuseumBaseURL = strings.TrimRight(strings.TrimSpace(c.Reference.MuseumBaseURL), "/")
	c.Reference.EncyclopediaBaseURL = strings.TrimRight(strings.TrimSpace(c.Reference.EncyclopediaBaseURL), "/")
	if c.Reference.MuseumBaseURL == "" {
		c.Reference.MuseumBaseURL = defaultMuseumBaseURL
	}
	if c.Reference.EncyclopediaBaseURL == "" {
		c.Reference.EncyclopediaBaseURL = defaultEncyclopediaBaseURL
	}
	if c.Reference.TimeoutSeconds <= 0 {
		c.Reference.TimeoutSeconds = defaultReferenceTimeout
	}
}

func (c *Config) normalizeTTS() {
	c.TTS.BaseURL = strings.TrimRight(strings.TrimSpace(c.TTS.BaseURL), "/")
	c.TTS.Voice = strings.TrimSpace(c.TTS.Voice)
	if c.TTS.Voice == "" {
		c.TTS.Voice = defaultTTSVoice
	}
	if c.TTS.TimeoutSeconds <= 0 {
		c.TTS.TimeoutSeconds = defaultTTSTimeoutSeconds
	}
	if c.TTS.BaseURL == "" {
		c.TTS.Enabled = false
	}
}

func (c *Config) normalizeSession() {
	if c.Session.DeadlineSeconds <= 0 {
		c.Session.DeadlineSeconds = defaultSessionDeadlineSeconds
	}
	if c.Session.GenerateTimeoutSeconds <= 0 {
		c.Session.GenerateTimeoutSeconds = defaultGenerateTimeoutSeconds
	}
	c.Session.Language = strings.TrimSpace(c.Session.Language)
	if c.Session.Language == "" {
		c.Session.Language = defaultSessionLanguage
	}
	if c.Session.MaxImageEdge <= 0 {
		c.Session.MaxImageEdge = defaultMaxImageEdge
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
