package session

import (
	"time"

	"lumen/internal/config"
)

// SettingsFromConfig converts the session section of a loaded config into
// orchestrator settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Deadline:        time.Duration(cfg.Session.DeadlineSeconds) * time.Second,
		GenerateTimeout: time.Duration(cfg.Session.GenerateTimeoutSeconds) * time.Second,
		Language:        cfg.Session.Language,
		MaxImageEdge:    cfg.Session.MaxImageEdge,
	}
}
