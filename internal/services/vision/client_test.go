package vision

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lumen/internal/services"
)

var testImage = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg := Config{APIKey: "test-key", BaseURL: server.URL, Model: "test-model"}
	opts = append(opts, WithSleeper(func(time.Duration) {}))
	return NewClient(cfg, opts...), server
}

func completionBody(content string) string {
	return `{"choices":[{"message":{"content":` + jsonString(content) + `},"finish_reason":"stop"}]}`
}

func jsonString(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`)
	return `"` + replacer.Replace(s) + `"`
}

func TestQuickIdentifyDecodesGuess(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("missing auth header, got %q", got)
		}
		w.Write([]byte(completionBody(`{"title":"Water Lilies","artist":"Claude Monet","year":"1906"}`)))
	})

	guess, err := client.QuickIdentify(context.Background(), testImage)
	if err != nil {
		t.Fatalf("QuickIdentify: %v", err)
	}
	if guess.Title != "Water Lilies" || guess.Artist != "Claude Monet" || guess.Year != "1906" {
		t.Fatalf("unexpected guess: %+v", guess)
	}
	if !guess.Usable() {
		t.Fatal("resolved guess should be usable")
	}
}

func TestGuessUsableRejectsSentinels(t *testing.T) {
	if (Guess{Title: "Unknown", Artist: "Claude Monet"}).Usable() {
		t.Fatal("unresolved title should be unusable")
	}
	if (Guess{Title: "Water Lilies", Artist: "unknown artist"}).Usable() {
		t.Fatal("unresolved artist should be unusable")
	}
}

func TestQuickIdentifyRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{})
	_, err := client.QuickIdentify(context.Background(), testImage)
	if !errors.Is(err, services.ErrAPIKeyMissing) {
		t.Fatalf("expected ErrAPIKeyMissing, got %v", err)
	}
}

func TestGenerateDecodesBundle(t *testing.T) {
	payload := `{"title":"The Starry Night","artist":"Vincent van Gogh","year":"1889",
		"style":"Post-Impressionism","summary":"A swirling night sky.",
		"narration":"Look closely at the sky...","artist_introduction":"Van Gogh was...",
		"sources":["https://example.org/starry","https://example.org/starry"],
		"confidence":0.92,"recognized":true}`
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionBody(payload)))
	})

	bundle, err := client.Generate(context.Background(), testImage, "en")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if bundle.Title != "The Starry Night" || !bundle.Recognized {
		t.Fatalf("unexpected bundle: %+v", bundle)
	}
	if len(bundle.Sources) != 1 {
		t.Fatalf("sources should be deduplicated: %v", bundle.Sources)
	}
	if bundle.Confidence != 0.92 {
		t.Fatalf("confidence mismatch: %f", bundle.Confidence)
	}
}

func TestGenerateRejectsEmptyNarration(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionBody(`{"title":"X","artist":"Y","narration":"  ","confidence":0.9}`)))
	})

	_, err := client.Generate(context.Background(), testImage, "en")
	if !errors.Is(err, services.ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse for empty narration, got %v", err)
	}
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	var calls int
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "upstream hiccup", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(completionBody(`{"title":"X","artist":"Y","narration":"text","confidence":0.5}`)))
	})

	if _, err := client.Generate(context.Background(), testImage, "en"); err != nil {
		t.Fatalf("Generate after retries: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestGenerateDoesNotRetryClientErrors(t *testing.T) {
	var calls int
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad request", http.StatusBadRequest)
	})

	_, err := client.Generate(context.Background(), testImage, "en")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("400 must not retry, got %d attempts", calls)
	}
	if !errors.Is(err, services.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestGenerateMapsRateLimit(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}, WithRetryMaxAttempts(1))

	_, err := client.Generate(context.Background(), testImage, "en")
	if services.Classify(err) != services.KindRateLimited {
		t.Fatalf("expected rate-limited kind, got %v (%v)", services.Classify(err), err)
	}
}

func TestGenerateHonorsRetryAfter(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "2")
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionBody(`{"title":"Water Lilies","artist":"Claude Monet","summary":"s","narration":"n","confidence":0.9}`))
	}))
	t.Cleanup(server.Close)

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test-key", BaseURL: server.URL, Model: "test-model"},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
	)

	if _, err := client.Generate(context.Background(), testImage, "en"); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected one retry, got %d attempts", calls)
	}
	if len(slept) != 1 || slept[0] != 2*time.Second {
		t.Fatalf("expected a single 2s delay from Retry-After, got %v", slept)
	}
}

func TestDecodeModelJSONHandlesFences(t *testing.T) {
	var out struct {
		Title string `json:"title"`
	}
	cases := []string{
		`{"title":"ok"}`,
		"```json\n{\"title\":\"ok\"}\n```",
		"Here is the result: {\"title\":\"ok\"} as requested.",
	}
	for _, payload := range cases {
		out.Title = ""
		if err := DecodeModelJSON(payload, &out); err != nil {
			t.Fatalf("DecodeModelJSON(%q): %v", payload, err)
		}
		if out.Title != "ok" {
			t.Fatalf("DecodeModelJSON(%q) title = %q", payload, out.Title)
		}
	}
	if err := DecodeModelJSON("   ", &out); err == nil {
		t.Fatal("empty payload should error")
	}
}
