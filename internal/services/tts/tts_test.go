package tts

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lumen/internal/services"
)

func newTestSynthesizer(t *testing.T, handler http.HandlerFunc) (*Synthesizer, *int) {
	t.Helper()
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	synth := NewSynthesizer(Config{
		BaseURL:       server.URL,
		Voice:         "aria",
		AudioCacheDir: t.TempDir(),
	})
	return synth, &calls
}

func TestPrepareWritesAudioFile(t *testing.T) {
	synth, _ := newTestSynthesizer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/synthesize" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte("fake-mp3-bytes"))
	})

	path, err := synth.Prepare(context.Background(), "Look at the brushwork.", "en")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read prepared audio: %v", err)
	}
	if string(data) != "fake-mp3-bytes" {
		t.Fatalf("unexpected audio contents %q", data)
	}
	if filepath.Ext(path) != ".mp3" {
		t.Fatalf("unexpected extension on %q", path)
	}
	if entries, _ := os.ReadDir(filepath.Dir(path)); len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestPrepareHitsCacheWithoutNetwork(t *testing.T) {
	synth, calls := newTestSynthesizer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("audio"))
	})

	first, err := synth.Prepare(context.Background(), "Same narration.", "en")
	if err != nil {
		t.Fatalf("first Prepare: %v", err)
	}
	second, err := synth.Prepare(context.Background(), "Same narration.", "en")
	if err != nil {
		t.Fatalf("second Prepare: %v", err)
	}
	if first != second {
		t.Fatalf("cache key unstable: %q vs %q", first, second)
	}
	if *calls != 1 {
		t.Fatalf("expected a single synthesis call, got %d", *calls)
	}
}

func TestPrepareKeyVariesByLanguageAndText(t *testing.T) {
	synth, _ := newTestSynthesizer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("audio"))
	})

	en, _ := synth.Prepare(context.Background(), "text", "en")
	fr, _ := synth.Prepare(context.Background(), "text", "fr")
	other, _ := synth.Prepare(context.Background(), "different text", "en")
	if en == fr || en == other {
		t.Fatalf("cache keys collide: %q %q %q", en, fr, other)
	}
}

func TestPrepareEmptyText(t *testing.T) {
	synth, calls := newTestSynthesizer(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := synth.Prepare(context.Background(), "   ", "en")
	if !errors.Is(err, services.ErrInvalidConfiguration) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
	if *calls != 0 {
		t.Fatal("empty text must not reach the network")
	}
}

func TestPrepareUpstreamFailure(t *testing.T) {
	synth, _ := newTestSynthesizer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "voice missing", http.StatusBadRequest)
	})

	_, err := synth.Prepare(context.Background(), "text", "en")
	if !errors.Is(err, services.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	entries, _ := os.ReadDir(synth.cfg.AudioCacheDir)
	if len(entries) != 0 {
		t.Fatalf("failed synthesis must not leave files: %v", entries)
	}
}

func TestPrepareEmptyAudioPayload(t *testing.T) {
	synth, _ := newTestSynthesizer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	_, err := synth.Prepare(context.Background(), "text", "en")
	if !errors.Is(err, services.ErrInvalidResponse) {
		t.Fatalf("expected invalid response, got %v", err)
	}
}

func TestNopPlayer(t *testing.T) {
	var player Player = NopPlayer{}
	if err := player.Play("x.mp3"); err != nil {
		t.Fatal(err)
	}
	if err := player.Stop(); err != nil {
		t.Fatal(err)
	}
}

func TestCachePathIncludesVoice(t *testing.T) {
	dir := t.TempDir()
	aria := NewSynthesizer(Config{Voice: "aria", AudioCacheDir: dir})
	noor := NewSynthesizer(Config{Voice: "noor", AudioCacheDir: dir})
	if aria.cachePath("text", "en") == noor.cachePath("text", "en") {
		t.Fatal("voice change must invalidate cached audio")
	}
	if !strings.HasPrefix(aria.cachePath("text", "en"), dir) {
		t.Fatal("cache path must live under the audio cache dir")
	}
}
