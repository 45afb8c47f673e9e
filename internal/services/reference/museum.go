package reference

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"lumen/internal/services"
)

// museumSearchLimit caps how many object records one search may fetch.
const museumSearchLimit = 3

// MuseumProvider queries a museum open-collection API (search endpoint
// returning object ids, then per-object metadata records).
type MuseumProvider struct {
	baseURL string
	http    *retryablehttp.Client
}

// NewMuseumProvider constructs a museum catalog provider.
func NewMuseumProvider(baseURL string, timeout time.Duration) *MuseumProvider {
	return &MuseumProvider{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    newCatalogHTTPClient(timeout),
	}
}

// Name identifies the provider in configuration and logs.
func (p *MuseumProvider) Name() string { return "museum" }

type museumSearchResponse struct {
	Total     int   `json:"total"`
	ObjectIDs []int `json:"objectIDs"`
}

type museumObject struct {
	Title             string `json:"title"`
	ArtistDisplayName string `json:"artistDisplayName"`
	ObjectDate        string `json:"objectDate"`
	Medium            string `json:"medium"`
	Repository        string `json:"repository"`
	PrimaryImageSmall string `json:"primaryImageSmall"`
	ObjectURL         string `json:"objectURL"`
}

// Search looks the candidate up in the collection. Among the first few
// search hits it prefers an object naming the candidate's artist; with no
// artist match it falls back to the top hit.
func (p *MuseumProvider) Search(ctx context.Context, candidate Candidate) (*Result, error) {
	if p.baseURL == "" {
		return nil, services.Wrap(services.ErrInvalidConfiguration, "reference", "museum search", "museum base URL is not configured", nil)
	}

	query := strings.TrimSpace(strings.TrimSpace(candidate.Title) + " " + strings.TrimSpace(candidate.Artist))
	searchURL := p.baseURL + "/search?hasImages=true&q=" + url.QueryEscape(query)

	var search museumSearchResponse
	if err := p.getJSON(ctx, searchURL, "museum search", &search); err != nil {
		return nil, err
	}
	if search.Total == 0 || len(search.ObjectIDs) == 0 {
		return nil, nil
	}

	ids := search.ObjectIDs
	if len(ids) > museumSearchLimit {
		ids = ids[:museumSearchLimit]
	}

	var fallback *Result
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var object museumObject
		objectURL := p.baseURL + "/objects/" + strconv.Itoa(id)
		if err := p.getJSON(ctx, objectURL, "museum object", &object); err != nil {
			continue
		}
		if strings.TrimSpace(object.Title) == "" {
			continue
		}
		result := &Result{
			Title:    strings.TrimSpace(object.Title),
			Artist:   strings.TrimSpace(object.ArtistDisplayName),
			Year:     strings.TrimSpace(object.ObjectDate),
			Medium:   strings.TrimSpace(object.Medium),
			Museum:   strings.TrimSpace(object.Repository),
			PageURL:  strings.TrimSpace(object.ObjectURL),
			ImageURL: strings.TrimSpace(object.PrimaryImageSmall),
		}
		if artistMatches(candidate.Artist, result.Artist) {
			return result, nil
		}
		if fallback == nil {
			fallback = result
		}
	}
	return fallback, nil
}

func (p *MuseumProvider) getJSON(ctx context.Context, rawURL, op string, target any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return services.Wrap(services.ErrRequestFailed, "reference", op, "new request", err)
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return services.Wrap(services.ErrRequestFailed, "reference", op, "http error", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &services.UpstreamError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(snippet))}
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return services.Wrap(services.ErrInvalidResponse, "reference", op, "decode response", err)
	}
	return nil
}

// artistMatches reports whether a catalog artist plausibly names the
// candidate artist. It compares case-insensitively and accepts either
// direction of containment ("Monet" vs "Claude Monet").
func artistMatches(candidate, catalog string) bool {
	candidate = strings.ToLower(strings.TrimSpace(candidate))
	catalog = strings.ToLower(strings.TrimSpace(catalog))
	if candidate == "" || catalog == "" {
		return false
	}
	return strings.Contains(catalog, candidate) || strings.Contains(candidate, catalog)
}

func newCatalogHTTPClient(timeout time.Duration) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.Logger = log.New(io.Discard, "", 0)
	client.RetryMax = 2
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	if timeout > 0 {
		client.HTTPClient.Timeout = timeout
	}
	return client
}
