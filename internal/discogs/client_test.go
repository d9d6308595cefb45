package discogs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vinylvision/backend/internal/catalog"
	"golang.org/x/time/rate"
)

func newTestClient(baseURL string) *Client {
	return NewClient(Config{
		Token:   "test-token",
		BaseURL: baseURL,
		Limiter: rate.NewLimiter(rate.Inf, 1),
	})
}

// newCatalogServer serves a one-hit search plus the detail payload the hit
// points at.
func newCatalogServer(t *testing.T, release map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("/database/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "VinylVisionApp/1.0" {
			t.Errorf("missing User-Agent header")
		}
		if r.URL.Query().Get("type") != "release" {
			t.Errorf("expected type=release, got %q", r.URL.Query().Get("type"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{{
				"resource_url": server.URL + "/releases/1",
				"cover_image":  "https://img.example/cover.jpg",
				"thumb":        "https://img.example/thumb.jpg",
			}},
		})
	})
	mux.HandleFunc("/releases/1", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "test-token" {
			t.Errorf("detail fetch missing token")
		}
		json.NewEncoder(w).Encode(release)
	})
	return server
}

func TestLookupEmptyQuerySkipsNetwork(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Lookup(context.Background(), Query{})
	if !errors.Is(err, ErrInsufficientQuery) {
		t.Fatalf("expected ErrInsufficientQuery, got %v", err)
	}
	if requests != 0 {
		t.Fatalf("expected no network call, saw %d", requests)
	}
}

func TestLookupMissingTokenSkipsNetwork(t *testing.T) {
	client := NewClient(Config{Limiter: rate.NewLimiter(rate.Inf, 1)})
	_, err := client.Lookup(context.Background(), Query{Artist: "Daft Punk"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestLookupMapsCatalogNumberScenario(t *testing.T) {
	server := newCatalogServer(t, map[string]any{
		"id":    12345,
		"title": "The Dark Side of the Moon",
		"year":  1973,
		"artists": []map[string]any{
			{"name": "Pink Floyd"},
		},
		"labels": []map[string]any{
			{"name": "Harvest", "catno": "SHVL 804"},
		},
		"formats": []map[string]any{
			{"name": "Vinyl"},
		},
		"genres": []string{"Rock"},
		"styles": []string{"Psychedelic Rock", "Prog Rock"},
		"tracklist": []map[string]any{
			{"position": "A1", "title": "Speak to Me", "duration": "1:30"},
		},
	})

	result, err := newTestClient(server.URL).Lookup(context.Background(), Query{CatalogNumber: "SHVL 804"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Format != catalog.FormatVinyl {
		t.Fatalf("format = %q, want Vinyl", result.Format)
	}
	if result.Label != "Harvest" {
		t.Fatalf("label = %q, want Harvest", result.Label)
	}
	if result.Year != "1973" {
		t.Fatalf("year = %q, want 1973", result.Year)
	}
	if result.CatalogNumber != "SHVL 804" {
		t.Fatalf("catalog number = %q, want SHVL 804", result.CatalogNumber)
	}
	if result.CoverURL != "https://img.example/cover.jpg" {
		t.Fatalf("cover url = %q", result.CoverURL)
	}
	if result.DiscogsReleaseID != 12345 {
		t.Fatalf("discogs release id = %d", result.DiscogsReleaseID)
	}
	if len(result.SuggestedTracks) != 1 {
		t.Fatalf("expected one track, got %d", len(result.SuggestedTracks))
	}
	track := result.SuggestedTracks[0]
	if track.Position != "A1" || track.Title != "Speak to Me" || track.Duration != "1:30" {
		t.Fatalf("unexpected track: %+v", track)
	}
	if track.DurationSec == nil || *track.DurationSec != 90 {
		t.Fatalf("expected derived durationSec 90, got %v", track.DurationSec)
	}
	if len(result.Styles) != 2 {
		t.Fatalf("expected styles mapped, got %v", result.Styles)
	}
}

func TestLookupStripsDisambiguationAndFiltersComposers(t *testing.T) {
	server := newCatalogServer(t, map[string]any{
		"id":    7,
		"title": "Kind of Blue",
		"year":  1959,
		"artists": []map[string]any{
			{"name": "Miles Davis (2)"},
		},
		"tracklist": []map[string]any{
			{
				"position": "A1",
				"title":    "So What",
				"duration": "9:22",
				"extraartists": []map[string]any{
					{"name": "Miles Davis (2)", "role": "Composed By"},
					{"name": "Bill Evans (2)", "role": "Piano"},
				},
			},
			{
				"position": "A2",
				"title":    "Freddie Freeloader",
				"duration": "9:46",
				"extraartists": []map[string]any{
					{"name": "Miles Davis", "role": "Composed By"},
				},
			},
		},
	})

	result, err := newTestClient(server.URL).Lookup(context.Background(), Query{Artist: "Miles Davis"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Artist != "Miles Davis" {
		t.Fatalf("artist = %q, want disambiguation suffix stripped", result.Artist)
	}

	first := result.SuggestedTracks[0]
	if len(first.Performers) != 1 {
		t.Fatalf("expected composer credit excluded from performers, got %+v", first.Performers)
	}
	if first.Performers[0].Name != "Bill Evans" || first.Performers[0].Role != "Piano" {
		t.Fatalf("unexpected performer: %+v", first.Performers[0])
	}
	if len(first.Composer) != 1 || first.Composer[0] != "Miles Davis" {
		t.Fatalf("expected composer list, got %v", first.Composer)
	}

	// All credits were composers: performers must be absent, not empty.
	second := result.SuggestedTracks[1]
	if second.Performers != nil {
		t.Fatalf("expected nil performers, got %+v", second.Performers)
	}
}

func TestLookupMapsSubTracks(t *testing.T) {
	server := newCatalogServer(t, map[string]any{
		"id":    9,
		"title": "Scheherazade",
		"tracklist": []map[string]any{
			{
				"position": "A",
				"title":    "Scheherazade, Op. 35",
				"duration": "",
				"sub_tracks": []map[string]any{
					{"position": "A1", "title": "The Sea and Sinbad's Ship", "duration": "9:05"},
					{"position": "A2", "title": "The Story of the Kalender Prince", "duration": "11:35"},
				},
			},
		},
	})

	result, err := newTestClient(server.URL).Lookup(context.Background(), Query{Title: "Scheherazade"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	track := result.SuggestedTracks[0]
	if len(track.SubTracks) != 2 {
		t.Fatalf("expected two sub-tracks, got %d", len(track.SubTracks))
	}
	if track.SubTracks[0].Position != "A1" || track.SubTracks[1].Position != "A2" {
		t.Fatalf("sub-track order not preserved: %+v", track.SubTracks)
	}
	if track.DurationSec != nil {
		t.Fatalf("blank duration must map to absent seconds")
	}
}

func TestLookupYearFromReleasedDate(t *testing.T) {
	server := newCatalogServer(t, map[string]any{
		"id":       3,
		"title":    "Discovery",
		"released": "2001-03-12",
	})

	result, err := newTestClient(server.URL).Lookup(context.Background(), Query{Title: "Discovery"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Year != "2001" {
		t.Fatalf("year = %q, want 2001 derived from released date", result.Year)
	}
}

func TestLookupNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Lookup(context.Background(), Query{Artist: "Nobody"})
	if !errors.Is(err, ErrNoMatches) {
		t.Fatalf("expected ErrNoMatches, got %v", err)
	}
}

func TestLookupSearchFailureIsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Lookup(context.Background(), Query{Artist: "Daft Punk"})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Step != "search" || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status error: %+v", statusErr)
	}
}

func TestLookupDetailFailureIsStatusError(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/database/search", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{{"resource_url": server.URL + "/releases/404"}},
		})
	})
	mux.HandleFunc("/releases/404", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})

	_, err := newTestClient(server.URL).Lookup(context.Background(), Query{Artist: "Daft Punk"})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Step != "release" {
		t.Fatalf("expected release step failure, got %+v", statusErr)
	}
}
