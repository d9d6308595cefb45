package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vinylvision/backend/internal/catalog"
	"github.com/vinylvision/backend/internal/discogs"
	"github.com/vinylvision/backend/internal/extraction"
)

const testImage = "data:image/jpeg;base64,cGl4ZWxz"

type stubExtractor struct {
	guess extraction.Guess
	err   error
}

func (s *stubExtractor) Extract(ctx context.Context, img extraction.Image, mode extraction.Mode) (extraction.Guess, error) {
	return s.guess, s.err
}

type stubLookup struct {
	result    catalog.ScanResult
	err       error
	lastQuery *discogs.Query
	calls     int
}

func (s *stubLookup) Lookup(ctx context.Context, query discogs.Query) (catalog.ScanResult, error) {
	s.calls++
	s.lastQuery = &query
	return s.result, s.err
}

type fixedIDs struct{ id string }

func (f fixedIDs) NewID() (string, error) { return f.id, nil }

func newTestReconciler(t *testing.T, extractor extraction.Extractor, lookup CatalogLookup) *Reconciler {
	t.Helper()
	reconciler, err := NewReconciler(Config{
		Extractor:  extractor,
		Catalog:    lookup,
		Clock:      func() time.Time { return time.UnixMilli(1700000000000).UTC() },
		IDProvider: fixedIDs{id: "draft-1"},
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return reconciler
}

func TestReconcilePrefersLookupValues(t *testing.T) {
	extractor := &stubExtractor{guess: extraction.Guess{Artist: "pink floyd", Title: "dark side", CatalogNumber: "SHVL804"}}
	lookup := &stubLookup{result: catalog.ScanResult{
		Artist:        "Pink Floyd",
		Title:         "The Dark Side of the Moon",
		CatalogNumber: "SHVL 804",
		Label:         "Harvest",
		Year:          "1973",
		Format:        catalog.FormatVinyl,
		CoverURL:      "https://img.example/cover.jpg",
		SuggestedTracks: []catalog.Track{
			{Position: "A1", Title: "Speak to Me", Duration: "1:30"},
		},
	}}

	record, err := newTestReconciler(t, extractor, lookup).Reconcile(context.Background(), testImage, extraction.ModeCover)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if record.ID != "draft-1" {
		t.Fatalf("id = %q", record.ID)
	}
	if record.AddedAt != 1700000000000 {
		t.Fatalf("addedAt = %d", record.AddedAt)
	}
	if record.Artist != "Pink Floyd" || record.Title != "The Dark Side of the Moon" {
		t.Fatalf("lookup values must win: %+v", record)
	}
	if record.CatalogNumber != "SHVL 804" || record.Label != "Harvest" || record.Year != "1973" {
		t.Fatalf("enrichment fields missing: %+v", record)
	}
	if record.CoverURL != "https://img.example/cover.jpg" {
		t.Fatalf("lookup cover must win, got %q", record.CoverURL)
	}
	if len(record.Tracks) != 1 || record.Tracks[0].Title != "Speak to Me" {
		t.Fatalf("tracks not adopted: %+v", record.Tracks)
	}
}

func TestReconcileContainsLookupFailure(t *testing.T) {
	extractor := &stubExtractor{guess: extraction.Guess{Artist: "Daft Punk", Title: "Discovery"}}
	lookup := &stubLookup{err: &discogs.StatusError{Step: "search", StatusCode: 503}}

	record, err := newTestReconciler(t, extractor, lookup).Reconcile(context.Background(), testImage, extraction.ModeCover)
	if err != nil {
		t.Fatalf("lookup failure must not propagate, got %v", err)
	}

	if record.Artist != "Daft Punk" || record.Title != "Discovery" {
		t.Fatalf("extraction values must survive: %+v", record)
	}
	if len(record.Tracks) != 0 {
		t.Fatalf("expected empty tracks, got %+v", record.Tracks)
	}
	if record.CoverURL != testImage {
		t.Fatalf("captured image must back the cover, got %q", record.CoverURL)
	}
}

func TestReconcileContainsExtractionFailure(t *testing.T) {
	extractor := &stubExtractor{err: extraction.ErrNotConfigured}
	lookup := &stubLookup{}

	record, err := newTestReconciler(t, extractor, lookup).Reconcile(context.Background(), testImage, extraction.ModeSpine)
	if err != nil {
		t.Fatalf("extraction failure must not propagate, got %v", err)
	}

	if record.Artist != "Unknown Artist" || record.Title != "Untitled Record" {
		t.Fatalf("expected placeholder identity, got %+v", record)
	}
	if record.Format != catalog.FormatVinyl {
		t.Fatalf("expected vinyl default, got %q", record.Format)
	}
	if lookup.calls != 0 {
		t.Fatalf("empty guess must not trigger a lookup")
	}
}

func TestReconcileSpineModeOmitsTitleFromQuery(t *testing.T) {
	extractor := &stubExtractor{guess: extraction.Guess{Artist: "Daft Punk", Title: "NOISY SPINE TEXT", CatalogNumber: "V2940"}}
	lookup := &stubLookup{err: discogs.ErrNoMatches}

	if _, err := newTestReconciler(t, extractor, lookup).Reconcile(context.Background(), testImage, extraction.ModeSpine); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if lookup.lastQuery == nil {
		t.Fatalf("expected a lookup attempt")
	}
	if lookup.lastQuery.Title != "" {
		t.Fatalf("spine mode must not query by title, got %q", lookup.lastQuery.Title)
	}
	if lookup.lastQuery.CatalogNumber != "V2940" {
		t.Fatalf("catalog number missing from query: %+v", lookup.lastQuery)
	}
}

func TestReconcileRejectsUnusableImage(t *testing.T) {
	reconciler := newTestReconciler(t, &stubExtractor{}, &stubLookup{})

	_, err := reconciler.Reconcile(context.Background(), "not-a-data-url", extraction.ModeCover)
	if !errors.Is(err, extraction.ErrUnsupportedImage) {
		t.Fatalf("expected ErrUnsupportedImage, got %v", err)
	}
}
