package reference

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"lumen/internal/services"
)

// EncyclopediaProvider queries an encyclopedia REST API's page-summary
// endpoint for the candidate artwork.
type EncyclopediaProvider struct {
	baseURL string
	http    *retryablehttp.Client
}

// NewEncyclopediaProvider constructs an encyclopedia provider.
func NewEncyclopediaProvider(baseURL string, timeout time.Duration) *EncyclopediaProvider {
	return &EncyclopediaProvider{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    newCatalogHTTPClient(timeout),
	}
}

// Name identifies the provider in configuration and logs.
func (p *EncyclopediaProvider) Name() string { return "encyclopedia" }

type pageSummary struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Extract     string `json:"extract"`
	Type        string `json:"type"`
	Thumbnail   struct {
		Source string `json:"source"`
	} `json:"thumbnail"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

// Search fetches the summary page titled after the candidate artwork. A
// missing page or a disambiguation page is a miss, not an error. The page
// must mention the candidate artist somewhere in its summary text to count
// as a confirmation.
func (p *EncyclopediaProvider) Search(ctx context.Context, candidate Candidate) (*Result, error) {
	if p.baseURL == "" {
		return nil, services.Wrap(services.ErrInvalidConfiguration, "reference", "encyclopedia search", "encyclopedia base URL is not configured", nil)
	}
	title := strings.TrimSpace(candidate.Title)
	if title == "" {
		return nil, nil
	}

	pageTitle := strings.ReplaceAll(title, " ", "_")
	summaryURL := p.baseURL + "/page/summary/" + url.PathEscape(pageTitle)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, summaryURL, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrRequestFailed, "reference", "encyclopedia search", "new request", err)
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrRequestFailed, "reference", "encyclopedia search", "http error", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &services.UpstreamError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(snippet))}
	}

	var summary pageSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return nil, services.Wrap(services.ErrInvalidResponse, "reference", "encyclopedia search", "decode response", err)
	}
	if summary.Type == "disambiguation" || strings.TrimSpace(summary.Title) == "" {
		return nil, nil
	}
	if !p.mentionsArtist(summary, candidate.Artist) {
		return nil, nil
	}

	return &Result{
		Title:    strings.TrimSpace(summary.Title),
		Artist:   strings.TrimSpace(candidate.Artist),
		PageURL:  strings.TrimSpace(summary.ContentURLs.Desktop.Page),
		ImageURL: strings.TrimSpace(summary.Thumbnail.Source),
	}, nil
}

// mentionsArtist checks the page text for the candidate artist. With no
// artist to check, any non-disambiguation page counts.
func (p *EncyclopediaProvider) mentionsArtist(summary pageSummary, artist string) bool {
	artist = strings.ToLower(strings.TrimSpace(artist))
	if artist == "" {
		return true
	}
	text := strings.ToLower(summary.Extract + " " + summary.Description)
	if strings.Contains(text, artist) {
		return true
	}
	// Surname alone is enough; summaries often omit given names.
	parts := strings.Fields(artist)
	if len(parts) > 1 {
		return strings.Contains(text, parts[len(parts)-1])
	}
	return false
}
