// Package scanner chains extraction and catalog lookup into one immediately
// savable draft record. Extraction and enrichment are advisory: their
// failures are contained so the user always receives an editable draft.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vinylvision/backend/internal/catalog"
	"github.com/vinylvision/backend/internal/discogs"
	"github.com/vinylvision/backend/internal/extraction"
	"go.uber.org/zap"
)

const (
	fallbackArtist = "Unknown Artist"
	fallbackTitle  = "Untitled Record"
)

var (
	errMissingExtractor  = errors.New("scanner: extractor is required")
	errMissingCatalog    = errors.New("scanner: catalog lookup is required")
	errMissingIDProvider = errors.New("scanner: id provider is required")
)

// CatalogLookup is the enrichment boundary, satisfied by the Discogs client.
type CatalogLookup interface {
	Lookup(ctx context.Context, query discogs.Query) (catalog.ScanResult, error)
}

// Config bundles the reconciler dependencies.
type Config struct {
	Extractor  extraction.Extractor
	Catalog    CatalogLookup
	Clock      func() time.Time
	IDProvider catalog.IDProvider
	Logger     *zap.Logger
}

// Reconciler orchestrates extraction, enrichment, and draft materialization.
type Reconciler struct {
	extractor extraction.Extractor
	catalog   CatalogLookup
	clock     func() time.Time
	ids       catalog.IDProvider
	logger    *zap.Logger
}

// NewReconciler constructs a Reconciler with validated dependencies.
func NewReconciler(cfg Config) (*Reconciler, error) {
	if cfg.Extractor == nil {
		return nil, errMissingExtractor
	}
	if cfg.Catalog == nil {
		return nil, errMissingCatalog
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		extractor: cfg.Extractor,
		catalog:   cfg.Catalog,
		clock:     clock,
		ids:       cfg.IDProvider,
		logger:    logger,
	}, nil
}

// Reconcile turns a captured image into a fully materialized record. It fails
// only when the image itself is unusable or an identity cannot be minted;
// extraction and lookup failures degrade to a draft the user completes by
// hand.
func (r *Reconciler) Reconcile(ctx context.Context, imageDataURL string, mode extraction.Mode) (catalog.Record, error) {
	if _, err := extraction.ParseDataURL(imageDataURL); err != nil {
		return catalog.Record{}, err
	}

	guess := r.extractGuess(ctx, imageDataURL, mode)
	enriched := r.enrichGuess(ctx, guess, mode)

	id, err := r.ids.NewID()
	if err != nil {
		return catalog.Record{}, fmt.Errorf("scanner: id generation failed: %w", err)
	}

	record := catalog.Record{
		ID:      id,
		AddedAt: r.clock().UTC().UnixMilli(),
		Artist:  firstNonEmpty(enriched.Artist, guess.Artist, fallbackArtist),
		Title:   firstNonEmpty(enriched.Title, guess.Title, fallbackTitle),
		Tracks:  []catalog.Track{},
	}

	record.CatalogNumber = firstNonEmpty(enriched.CatalogNumber, guess.CatalogNumber)
	record.Label = enriched.Label
	record.Year = enriched.Year
	record.Genres = enriched.Genres
	record.Styles = enriched.Styles
	record.SeriesName = enriched.SeriesName
	record.SeriesCatno = enriched.SeriesCatno
	record.SeriesID = enriched.SeriesID
	record.DiscogsReleaseID = enriched.DiscogsReleaseID

	record.Format = enriched.Format
	if record.Format == "" {
		record.Format = catalog.NormalizeFormat(guess.Format)
	}

	if len(enriched.SuggestedTracks) > 0 {
		record.Tracks = enriched.SuggestedTracks
	}

	record.CoverURL = firstNonEmpty(enriched.CoverURL, imageDataURL)

	return record, nil
}

func (r *Reconciler) extractGuess(ctx context.Context, imageDataURL string, mode extraction.Mode) extraction.Guess {
	img, err := extraction.ParseDataURL(imageDataURL)
	if err != nil {
		return extraction.Guess{}
	}
	guess, err := r.extractor.Extract(ctx, img, mode)
	if err != nil {
		r.logger.Warn("extraction failed, continuing with empty guess",
			zap.String("mode", string(mode)), zap.Error(err))
		return extraction.Guess{}
	}
	return guess
}

func (r *Reconciler) enrichGuess(ctx context.Context, guess extraction.Guess, mode extraction.Mode) catalog.ScanResult {
	if guess.Empty() {
		return catalog.ScanResult{}
	}

	query := discogs.Query{
		Artist:        guess.Artist,
		CatalogNumber: guess.CatalogNumber,
	}
	// Spine text rarely carries a clean title; only cover scans feed one into
	// the search.
	if mode == extraction.ModeCover {
		query.Title = guess.Title
	}

	result, err := r.catalog.Lookup(ctx, query)
	if err != nil {
		r.logger.Info("catalog lookup failed, continuing with extraction data",
			zap.String("artist", query.Artist),
			zap.String("catalog_number", query.CatalogNumber),
			zap.Error(err))
		return catalog.ScanResult{}
	}
	return result
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
