package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lumen/internal/artwork"
	"lumen/internal/services"
)

const (
	jsonResponseType      = "json_object"
	defaultHTTPTimeout    = 15 * time.Second
	defaultRetryMaxDelay  = 5 * time.Second
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryAttempts  = 3
)

// Config captures the runtime settings required to talk to the model.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// Guess is the coarse quick-identify result. Title and Artist carry the
// unresolved sentinels when the model could not name the work.
type Guess struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Year   string `json:"year,omitempty"`
}

// Usable reports whether the guess names a specific artwork, i.e. neither
// field carries an unresolved sentinel.
func (g Guess) Usable() bool {
	return !artwork.IsUnresolved(g.Title) && !artwork.IsUnresolved(g.Artist)
}

// Client talks to the vision/narration chat-completion API.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the default retry count.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a vision client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://openrouter.ai/api/v1/chat/completions"
	}
	return client
}

// QuickIdentify asks the model for a fast coarse (title, artist, year?)
// guess for the photographed artwork.
func (c *Client) QuickIdentify(ctx context.Context, imageJPEG []byte) (Guess, error) {
	var empty Guess
	if len(imageJPEG) == 0 {
		return empty, services.Wrap(services.ErrImageProcessing, "vision", "quick identify", "empty image", nil)
	}
	if c.cfg.APIKey == "" {
		return empty, services.Wrap(services.ErrAPIKeyMissing, "vision", "quick identify", "", nil)
	}

	payload := c.newRequest(quickIdentifyPrompt, imageJPEG, false)
	content, err := c.completionContentWithRetry(ctx, payload, "vision quick identify")
	if err != nil {
		return empty, err
	}

	var guess Guess
	if err := DecodeModelJSON(content, &guess); err != nil {
		return empty, services.Wrap(services.ErrInvalidResponse, "vision", "quick identify", "parse payload", err)
	}
	guess.Title = strings.TrimSpace(guess.Title)
	guess.Artist = strings.TrimSpace(guess.Artist)
	guess.Year = strings.TrimSpace(guess.Year)
	return guess, nil
}

// Generate requests a full structured narration bundle without streaming.
// The language tag selects the narration language.
func (c *Client) Generate(ctx context.Context, imageJPEG []byte, lang string) (artwork.Bundle, error) {
	var empty artwork.Bundle
	if len(imageJPEG) == 0 {
		return empty, services.Wrap(services.ErrImageProcessing, "vision", "generate", "empty image", nil)
	}
	if c.cfg.APIKey == "" {
		return empty, services.Wrap(services.ErrAPIKeyMissing, "vision", "generate", "", nil)
	}

	payload := c.newRequest(generatePrompt(lang), imageJPEG, false)
	content, err := c.completionContentWithRetry(ctx, payload, "vision generate")
	if err != nil {
		return empty, err
	}
	return decodeBundle(content)
}

func decodeBundle(content string) (artwork.Bundle, error) {
	var payload bundlePayload
	if err := DecodeModelJSON(content, &payload); err != nil {
		return artwork.Bundle{}, services.Wrap(services.ErrInvalidResponse, "vision", "generate", "parse payload", err)
	}
	bundle := payload.toBundle()
	if !bundle.HasNarration() {
		return artwork.Bundle{}, services.Wrap(services.ErrInvalidResponse, "vision", "generate", "empty narration body", nil)
	}
	return bundle, nil
}

// bundlePayload is the wire shape of a generated narration bundle.
type bundlePayload struct {
	Title              string   `json:"title"`
	Artist             string   `json:"artist"`
	Year               string   `json:"year"`
	Style              string   `json:"style"`
	Medium             string   `json:"medium"`
	Museum             string   `json:"museum"`
	Summary            string   `json:"summary"`
	Narration          string   `json:"narration"`
	ArtistIntroduction string   `json:"artist_introduction"`
	Sources            []string `json:"sources"`
	ReferenceImageURL  string   `json:"reference_image_url"`
	Confidence         float64  `json:"confidence"`
	Recognized         *bool    `json:"recognized"`
}

func (p bundlePayload) toBundle() artwork.Bundle {
	recognized := !artwork.IsUnresolved(p.Title)
	if p.Recognized != nil {
		recognized = *p.Recognized
	}
	rec := artwork.Record{
		Title:             strings.TrimSpace(p.Title),
		Artist:            strings.TrimSpace(p.Artist),
		Year:              strings.TrimSpace(p.Year),
		Style:             strings.TrimSpace(p.Style),
		Medium:            strings.TrimSpace(p.Medium),
		Museum:            strings.TrimSpace(p.Museum),
		ReferenceImageURL: strings.TrimSpace(p.ReferenceImageURL),
		Recognized:        recognized,
	}
	rec = rec.MergeSources(p.Sources)
	bundle := artwork.Bundle{
		Record:             rec,
		Summary:            strings.TrimSpace(p.Summary),
		Narration:          strings.TrimSpace(p.Narration),
		ArtistIntroduction: strings.TrimSpace(p.ArtistIntroduction),
	}
	return bundle.WithConfidence(p.Confidence)
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
	Stream         bool              `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

func (c *Client) newRequest(prompt string, imageJPEG []byte, stream bool) chatCompletionRequest {
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(imageJPEG)
	req := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: prompt},
					{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
				},
			},
		},
		Temperature: 0,
		Stream:      stream,
	}
	if !stream {
		req.ResponseFormat = map[string]string{"type": jsonResponseType}
	}
	return req
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) completionContentWithRetry(ctx context.Context, payload chatCompletionRequest, op string) (string, error) {
	attempts := c.retryAttempts()
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		content, err := c.sendChatRequestOnce(ctx, payload, op)
		if err == nil {
			return content, nil
		}

		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			return "", err
		}
		if err := c.sleep(ctx, delay); err != nil {
			return "", err
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = errors.New("unknown retry failure")
	}
	return "", fmt.Errorf("%s: failed after %d attempts: %w", op, attempts, lastErr)
}

func (c *Client) sendChatRequestOnce(ctx context.Context, payload chatCompletionRequest, op string) (string, error) {
	resp, err := c.postChat(ctx, payload, op)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Wrap(services.ErrRequestFailed, "vision", op, "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return "", &services.UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", services.Wrap(services.ErrInvalidResponse, "vision", op, "decode response", err)
	}
	if completion.Error != nil {
		return "", services.Wrap(services.ErrUpstream, "vision", op, strings.TrimSpace(completion.Error.Message), nil)
	}
	for _, choice := range completion.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
	}
	return "", services.Wrap(services.ErrInvalidResponse, "vision", op, "empty choices", nil)
}

func (c *Client) postChat(ctx context.Context, payload chatCompletionRequest, op string) (*http.Response, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, services.Wrap(services.ErrRequestFailed, "vision", op, "encode body", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return nil, services.Wrap(services.ErrRequestFailed, "vision", op, "new request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision %s: http error (timeout=%s): %w", op, c.timeoutDuration(), err)
	}
	return resp, nil
}

func (c *Client) timeoutDuration() time.Duration {
	if c == nil || c.httpClient == nil || c.httpClient.Timeout <= 0 {
		return defaultHTTPTimeout
	}
	return c.httpClient.Timeout
}

func (c *Client) retryAttempts() int {
	if c == nil || c.retryMaxAttempts <= 0 {
		return 1
	}
	return c.retryMaxAttempts
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil || ctx == nil || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var statusErr *services.UpstreamError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return c.capDelay(statusErr.RetryAfter), true
			}
			return c.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}
	return 0, false
}

func (c *Client) capDelay(delay time.Duration) time.Duration {
	if delay > c.retryMaxDelay {
		return c.retryMaxDelay
	}
	return delay
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := c.retryBaseDelay
	for i := 1; i < attempt; i++ {
		if delay > c.retryMaxDelay/2 {
			return c.retryMaxDelay
		}
		delay *= 2
	}
	if delay > c.retryMaxDelay {
		return c.retryMaxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// DecodeModelJSON decodes JSON from a model response, handling common
// formatting quirks (code fences, prose wrapping an embedded object).
func DecodeModelJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}

	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}

	sanitized := sanitizeJSONPayload(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return fmt.Errorf("%w (payload snippet: %s)", directErr, summarizePayloadSnippet(trimmed))
	}

	sanitizedErr := json.Unmarshal([]byte(sanitized), target)
	if sanitizedErr == nil {
		return nil
	}
	return fmt.Errorf("%w (sanitized payload snippet: %s)", sanitizedErr, summarizePayloadSnippet(sanitized))
}

func sanitizeJSONPayload(content string) string {
	trimmed := strings.TrimSpace(stripCodeFenceBlock(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

func stripCodeFenceBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := trimmed[3:]
	body = strings.TrimLeft(body, " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
		body = strings.TrimLeft(body, " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func summarizePayloadSnippet(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	replacer := strings.NewReplacer("\r", " ", "\n", " ", "\t", " ")
	clean := strings.Join(strings.Fields(replacer.Replace(trimmed)), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return strconv.Quote(clean)
}
