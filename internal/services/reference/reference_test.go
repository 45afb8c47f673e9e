package reference

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeProvider struct {
	name   string
	result *Result
	err    error
	calls  int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Search(ctx context.Context, candidate Candidate) (*Result, error) {
	f.calls++
	return f.result, f.err
}

func TestLookupFirstHitWins(t *testing.T) {
	first := &fakeProvider{name: "museum", result: &Result{Title: "Water Lilies"}}
	second := &fakeProvider{name: "encyclopedia", result: &Result{Title: "other"}}
	lookup := NewLookupWithProviders(nil, first, second)

	result, err := lookup.Search(context.Background(), Candidate{Title: "Water Lilies", Artist: "Claude Monet"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result == nil || result.Title != "Water Lilies" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Provider != "museum" {
		t.Fatalf("provider not recorded: %+v", result)
	}
	if second.calls != 0 {
		t.Fatal("lower-priority provider must not run after a hit")
	}
}

func TestLookupSkipsFailingProvider(t *testing.T) {
	failing := &fakeProvider{name: "museum", err: errors.New("catalog down")}
	working := &fakeProvider{name: "encyclopedia", result: &Result{Title: "hit"}}
	lookup := NewLookupWithProviders(nil, failing, working)

	result, err := lookup.Search(context.Background(), Candidate{Title: "hit"})
	if err != nil {
		t.Fatalf("a provider error must not fail the lookup: %v", err)
	}
	if result == nil || result.Provider != "encyclopedia" {
		t.Fatalf("expected fallthrough hit, got %+v", result)
	}
}

func TestLookupExhaustedIsNil(t *testing.T) {
	lookup := NewLookupWithProviders(nil,
		&fakeProvider{name: "museum"},
		&fakeProvider{name: "encyclopedia"},
	)

	result, err := lookup.Search(context.Background(), Candidate{Title: "nowhere"})
	if err != nil || result != nil {
		t.Fatalf("expected (nil, nil), got %+v, %v", result, err)
	}
}

func TestLookupEmptyCandidate(t *testing.T) {
	provider := &fakeProvider{name: "museum", result: &Result{Title: "x"}}
	lookup := NewLookupWithProviders(nil, provider)

	result, err := lookup.Search(context.Background(), Candidate{Title: "  ", Artist: ""})
	if err != nil || result != nil {
		t.Fatalf("empty candidate must short-circuit, got %+v, %v", result, err)
	}
	if provider.calls != 0 {
		t.Fatal("providers must not be consulted for an empty candidate")
	}
}

func TestLookupHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	lookup := NewLookupWithProviders(nil, &fakeProvider{name: "museum", result: &Result{Title: "x"}})

	_, err := lookup.Search(ctx, Candidate{Title: "x"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestMuseumProviderPrefersArtistMatch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get("q"); q == "" {
			t.Error("missing search query")
		}
		w.Write([]byte(`{"total":2,"objectIDs":[11,22]}`))
	})
	mux.HandleFunc("/objects/11", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"title":"Water Lilies (copy)","artistDisplayName":"After Monet, anonymous"}`))
	})
	mux.HandleFunc("/objects/22", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"title":"Water Lilies","artistDisplayName":"Claude Monet","objectDate":"1906",
			"medium":"Oil on canvas","repository":"Metropolitan Museum of Art, New York, NY",
			"primaryImageSmall":"https://example.org/img.jpg","objectURL":"https://example.org/object/22"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	provider := NewMuseumProvider(server.URL, time.Second)
	result, err := provider.Search(context.Background(), Candidate{Title: "Water Lilies", Artist: "Claude Monet"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result == nil || result.Artist != "Claude Monet" {
		t.Fatalf("expected the artist-matching object, got %+v", result)
	}
	if result.Year != "1906" || result.ImageURL == "" {
		t.Fatalf("object fields not carried over: %+v", result)
	}
}

func TestMuseumProviderNoResults(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total":0,"objectIDs":null}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	provider := NewMuseumProvider(server.URL, time.Second)
	result, err := provider.Search(context.Background(), Candidate{Title: "nothing"})
	if err != nil || result != nil {
		t.Fatalf("expected miss, got %+v, %v", result, err)
	}
}

func TestEncyclopediaProviderHit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/page/summary/The_Starry_Night", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"title":"The Starry Night","description":"Painting by Vincent van Gogh",
			"extract":"The Starry Night is an oil-on-canvas painting by Vincent van Gogh.",
			"thumbnail":{"source":"https://example.org/thumb.jpg"},
			"content_urls":{"desktop":{"page":"https://example.org/wiki/The_Starry_Night"}}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	provider := NewEncyclopediaProvider(server.URL, time.Second)
	result, err := provider.Search(context.Background(), Candidate{Title: "The Starry Night", Artist: "Vincent van Gogh"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result == nil || result.PageURL == "" || result.ImageURL == "" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestEncyclopediaProviderRejectsUnrelatedPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/page/summary/Sunflowers", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"title":"Sunflowers","description":"Genus of plants",
			"extract":"Helianthus is a genus of about 70 species of annual plants."}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	provider := NewEncyclopediaProvider(server.URL, time.Second)
	result, err := provider.Search(context.Background(), Candidate{Title: "Sunflowers", Artist: "Vincent van Gogh"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result != nil {
		t.Fatalf("page not mentioning the artist must be a miss, got %+v", result)
	}
}

func TestEncyclopediaProviderMissingPage(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	provider := NewEncyclopediaProvider(server.URL, time.Second)
	result, err := provider.Search(context.Background(), Candidate{Title: "No Such Painting", Artist: "Nobody"})
	if err != nil || result != nil {
		t.Fatalf("404 must be a miss, got %+v, %v", result, err)
	}
}
