package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"lumen/internal/artwork"
	"lumen/internal/config"
	"lumen/internal/history"
	"lumen/internal/logging"
	"lumen/internal/photos"
	"lumen/internal/testsupport"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	encoded, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, _, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	}
	if _, _, err := runCLI(t, "", "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigShowMasksSecrets(t *testing.T) {
	configPath := writeTestConfig(t)

	out, _, err := runCLI(t, configPath, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "(set)")
	if strings.Contains(out, "api_key = 'test'") || strings.Contains(out, `api_key = "test"`) {
		t.Fatalf("api key leaked into output:\n%s", out)
	}
}

func TestHistoryListEmpty(t *testing.T) {
	configPath := writeTestConfig(t)

	out, _, err := runCLI(t, configPath, "history", "list")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	requireContains(t, out, "No history yet.")
}

func TestHistoryShowAndDelete(t *testing.T) {
	configPath := writeTestConfig(t)
	seedHistoryEntry(t, configPath)

	out, _, err := runCLI(t, configPath, "history", "list")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	requireContains(t, out, "Starry Night")

	out, _, err = runCLI(t, configPath, "history", "show", "1")
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	requireContains(t, out, "A swirling night sky over Saint-Rémy.")

	out, _, err = runCLI(t, configPath, "history", "delete", "1")
	if err != nil {
		t.Fatalf("history delete: %v", err)
	}
	requireContains(t, out, "Deleted entry 1.")

	out, _, err = runCLI(t, configPath, "history", "list")
	if err != nil {
		t.Fatalf("history list after delete: %v", err)
	}
	requireContains(t, out, "No history yet.")
}

func TestHistoryShowOutOfRange(t *testing.T) {
	configPath := writeTestConfig(t)

	if _, _, err := runCLI(t, configPath, "history", "show", "5"); err == nil {
		t.Fatal("expected out-of-range show to fail")
	}
	if _, _, err := runCLI(t, configPath, "history", "delete", "0"); err == nil {
		t.Fatal("expected invalid entry number to fail")
	}
}

func seedHistoryEntry(t *testing.T, configPath string) {
	t.Helper()

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(logging.Options{Level: "error", Format: "console", OutputPaths: []string{"stderr"}})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	photoStore, err := photos.NewStore(cfg.PhotosDir())
	if err != nil {
		t.Fatalf("photo store: %v", err)
	}
	store, err := history.Open(cfg, photoStore, logger)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer store.Close()

	_, err = store.Append(context.Background(), history.Entry{
		Artwork: artwork.Record{
			Title:      "The Starry Night",
			Artist:     "Vincent van Gogh",
			Year:       "1889",
			Recognized: true,
		},
		Narration:  "A swirling night sky over Saint-Rémy.",
		Confidence: 0.92,
	})
	if err != nil {
		t.Fatalf("append entry: %v", err)
	}
}
