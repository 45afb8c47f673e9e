package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// EnvAPIKey is the environment variable consulted for the vision API key.
const EnvAPIKey = "LUMEN_API_KEY"

const (
	credentialsFileName = "credentials"
	legacyPrefsFileName = "preferences.json"
)

// KeySource identifies where a resolved API key came from.
type KeySource string

const (
	KeySourceCredentials KeySource = "credentials_file"
	KeySourceConfig      KeySource = "config_file"
	KeySourceEnv         KeySource = "environment"
	KeySourceLegacy      KeySource = "legacy_preferences"
	KeySourceNone        KeySource = "none"
)

// ResolveAPIKey resolves the vision API key. Precedence, first non-empty
// wins: credentials file in configDir, the key from the loaded config,
// the process environment, and finally the legacy JSON preferences file.
func (c *Config) ResolveAPIKey(configDir string) (string, KeySource) {
	if key := readCredentialsFile(configDir); key != "" {
		return key, KeySourceCredentials
	}
	if key := strings.TrimSpace(c.Vision.APIKey); key != "" {
		return key, KeySourceConfig
	}
	if key := strings.TrimSpace(os.Getenv(EnvAPIKey)); key != "" {
		return key, KeySourceEnv
	}
	if key := readLegacyPreferences(configDir); key != "" {
		return key, KeySourceLegacy
	}
	return "", KeySourceNone
}

func readCredentialsFile(configDir string) string {
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(configDir, credentialsFileName))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func readLegacyPreferences(configDir string) string {
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(configDir, legacyPrefsFileName))
	if err != nil {
		return ""
	}
	var prefs struct {
		APIKey string `json:"api_key"`
	}
	if err := json.Unmarshal(data, &prefs); err != nil {
		return ""
	}
	return strings.TrimSpace(prefs.APIKey)
}

// WriteCredentials stores the API key in the credentials file with owner-only
// permissions.
func WriteCredentials(configDir, key string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(configDir, credentialsFileName), []byte(strings.TrimSpace(key)+"\n"), 0o600)
}
