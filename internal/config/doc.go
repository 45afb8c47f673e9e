// Package config loads, normalizes, and validates lumen's TOML
// configuration, and resolves the vision API key across the supported
// credential sources.
package config
