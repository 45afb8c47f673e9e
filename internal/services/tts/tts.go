// Package tts pre-generates narration audio. Synthesis results are cached
// on disk keyed by content, so repeating a narration is a local file hit.
// Playback itself belongs to the presentation layer behind the Player
// interface.
package tts

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"lumen/internal/services"
)

const defaultTimeout = 30 * time.Second

// Config captures synthesis settings.
type Config struct {
	BaseURL        string
	Voice          string
	TimeoutSeconds int
	// AudioCacheDir receives synthesized files.
	AudioCacheDir string
}

// Synthesizer turns narration text into cached audio files.
type Synthesizer struct {
	cfg  Config
	http *retryablehttp.Client
}

// NewSynthesizer constructs a synthesizer writing into cfg.AudioCacheDir.
func NewSynthesizer(cfg Config) *Synthesizer {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	client := retryablehttp.NewClient()
	client.Logger = log.New(io.Discard, "", 0)
	client.RetryMax = 2
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 3 * time.Second
	client.HTTPClient.Timeout = timeout

	return &Synthesizer{
		cfg: Config{
			BaseURL:       strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Voice:         strings.TrimSpace(cfg.Voice),
			AudioCacheDir: cfg.AudioCacheDir,
		},
		http: client,
	}
}

type synthesisRequest struct {
	Text     string `json:"text"`
	Voice    string `json:"voice,omitempty"`
	Language string `json:"language,omitempty"`
}

// Prepare synthesizes text into the audio cache and returns the file path.
// An already-cached narration returns immediately without a network call.
func (s *Synthesizer) Prepare(ctx context.Context, text, lang string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", services.Wrap(services.ErrInvalidConfiguration, "tts", "prepare", "empty narration text", nil)
	}
	if s.cfg.AudioCacheDir == "" {
		return "", services.Wrap(services.ErrInvalidConfiguration, "tts", "prepare", "audio cache directory is not configured", nil)
	}

	path := s.cachePath(text, lang)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	audio, err := s.synthesize(ctx, text, lang)
	if err != nil {
		return "", err
	}
	if err := writeFileAtomic(path, audio); err != nil {
		return "", services.Wrap(services.ErrRequestFailed, "tts", "prepare", "write audio file", err)
	}
	return path, nil
}

// cachePath derives a stable per-narration filename. Voice is part of the
// key so a voice change does not replay stale audio.
func (s *Synthesizer) cachePath(text, lang string) string {
	digest := sha256.Sum256([]byte(text + "|" + lang + "|" + s.cfg.Voice))
	return filepath.Join(s.cfg.AudioCacheDir, hex.EncodeToString(digest[:16])+".mp3")
}

func (s *Synthesizer) synthesize(ctx context.Context, text, lang string) ([]byte, error) {
	if s.cfg.BaseURL == "" {
		return nil, services.Wrap(services.ErrInvalidConfiguration, "tts", "synthesize", "TTS base URL is not configured", nil)
	}

	encoded, err := json.Marshal(synthesisRequest{Text: text, Voice: s.cfg.Voice, Language: lang})
	if err != nil {
		return nil, services.Wrap(services.ErrRequestFailed, "tts", "synthesize", "encode body", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/synthesize", bytes.NewReader(encoded))
	if err != nil {
		return nil, services.Wrap(services.ErrRequestFailed, "tts", "synthesize", "new request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrRequestFailed, "tts", "synthesize", "http error", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &services.UpstreamError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(snippet))}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrRequestFailed, "tts", "synthesize", "read body", err)
	}
	if len(audio) == 0 {
		return nil, services.Wrap(services.ErrInvalidResponse, "tts", "synthesize", "empty audio payload", nil)
	}
	return audio, nil
}

// writeFileAtomic writes via a temp file and rename so a crashed synthesis
// never leaves a truncated audio file behind.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".audio-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
