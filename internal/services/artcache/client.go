// Package artcache talks to the shared backend artwork cache. Cache reads
// are best-effort for callers: a miss is a nil result, never an error, and
// read failures are expected to degrade to misses upstream.
package artcache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"lumen/internal/artwork"
	"lumen/internal/services"
)

const (
	defaultTimeout  = 5 * time.Second
	defaultRetryMax = 2
)

// Config captures the connection settings for the cache service.
type Config struct {
	BaseURL        string
	APIToken       string
	TimeoutSeconds int
}

// CachedArtwork is a cache entry: a narration bundle stored under its
// identity hash, plus the server-assigned id and popularity counter.
type CachedArtwork struct {
	ID           string `json:"id"`
	IdentityHash string `json:"identity_hash"`
	artwork.Bundle
	ViewCount int `json:"view_count"`
}

// ArtistIntroduction is a cached artist biography shared across artworks by
// the same artist.
type ArtistIntroduction struct {
	ArtistName   string `json:"artist_name"`
	Introduction string `json:"introduction"`
	Language     string `json:"language,omitempty"`
}

// Client is the backend cache HTTP client.
type Client struct {
	cfg  Config
	http *retryablehttp.Client
}

// NewClient constructs a cache client. Transient failures (connection
// errors, 429, 5xx) are retried with backoff before surfacing.
func NewClient(cfg Config) *Client {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	retryClient := retryablehttp.NewClient()
	retryClient.Logger = log.New(io.Discard, "", 0)
	retryClient.RetryMax = defaultRetryMax
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.HTTPClient.Timeout = timeout

	return &Client{
		cfg: Config{
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			APIToken:       strings.TrimSpace(cfg.APIToken),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		http: retryClient,
	}
}

// FindArtwork looks up a cached bundle by identity hash. A miss returns
// (nil, nil).
func (c *Client) FindArtwork(ctx context.Context, identityHash string) (*CachedArtwork, error) {
	identityHash = strings.TrimSpace(identityHash)
	if identityHash == "" {
		return nil, services.Wrap(services.ErrInvalidConfiguration, "artcache", "find artwork", "empty identity hash", nil)
	}

	var cached CachedArtwork
	found, err := c.getJSON(ctx, "/artworks/"+url.PathEscape(identityHash), "find artwork", &cached)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &cached, nil
}

// SaveArtwork stores a bundle under its identity hash. The server upserts
// on hash, so repeated saves for the same work are safe.
func (c *Client) SaveArtwork(ctx context.Context, identityHash string, bundle artwork.Bundle) error {
	identityHash = strings.TrimSpace(identityHash)
	if identityHash == "" {
		return services.Wrap(services.ErrInvalidConfiguration, "artcache", "save artwork", "empty identity hash", nil)
	}
	payload := CachedArtwork{IdentityHash: identityHash, Bundle: bundle}
	return c.postJSON(ctx, "/artworks", "save artwork", payload)
}

// IncrementViewCount bumps a cached entry's popularity counter. Callers
// fire this without waiting on the result.
func (c *Client) IncrementViewCount(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return services.Wrap(services.ErrInvalidConfiguration, "artcache", "increment views", "empty id", nil)
	}
	return c.postJSON(ctx, "/artworks/"+url.PathEscape(id)+"/views", "increment views", nil)
}

// FindArtistIntroduction looks up a cached artist biography by artist name.
// A miss returns (nil, nil).
func (c *Client) FindArtistIntroduction(ctx context.Context, artistName string) (*ArtistIntroduction, error) {
	artistName = strings.TrimSpace(artistName)
	if artistName == "" || artwork.IsUnresolved(artistName) {
		return nil, nil
	}

	var intro ArtistIntroduction
	found, err := c.getJSON(ctx, "/artists/introduction?name="+url.QueryEscape(artistName), "find artist introduction", &intro)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &intro, nil
}

// SaveArtistIntroduction stores an artist biography for reuse by later
// sessions of any artwork by the same artist.
func (c *Client) SaveArtistIntroduction(ctx context.Context, intro ArtistIntroduction) error {
	if strings.TrimSpace(intro.ArtistName) == "" || strings.TrimSpace(intro.Introduction) == "" {
		return services.Wrap(services.ErrInvalidConfiguration, "artcache", "save artist introduction", "artist name and introduction are required", nil)
	}
	return c.postJSON(ctx, "/artists/introduction", "save artist introduction", intro)
}

// getJSON performs a GET and decodes the response into target. It returns
// found=false on 404 without error.
func (c *Client) getJSON(ctx context.Context, path, op string, target any) (bool, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, op, nil)
	if err != nil {
		return false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, services.Wrap(services.ErrRequestFailed, "artcache", op, "http error", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return false, upstreamError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return false, services.Wrap(services.ErrInvalidResponse, "artcache", op, "decode response", err)
	}
	return true, nil
}

func (c *Client) postJSON(ctx context.Context, path, op string, payload any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return services.Wrap(services.ErrRequestFailed, "artcache", op, "encode body", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, op, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return services.Wrap(services.ErrRequestFailed, "artcache", op, "http error", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return upstreamError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path, op string, body io.Reader) (*retryablehttp.Request, error) {
	if c.cfg.BaseURL == "" {
		return nil, services.Wrap(services.ErrInvalidConfiguration, "artcache", op, "cache base URL is not configured", nil)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, services.Wrap(services.ErrRequestFailed, "artcache", op, "new request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	}
	return req, nil
}

func upstreamError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("artcache: %w", &services.UpstreamError{
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(snippet)),
	})
}
