package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidRecord indicates a record is missing fields required for persistence.
	ErrInvalidRecord = errors.New("catalog: invalid record")
)

// Format enumerates the supported physical and digital release formats.
type Format string

const (
	FormatVinyl    Format = "Vinyl"
	FormatCD       Format = "CD"
	FormatCassette Format = "Cassette"
	FormatDigital  Format = "Digital"
)

// NormalizeFormat maps a free-text format description onto the closed Format
// enum. Matching is by lowercase substring; anything unrecognized defaults to
// vinyl, which is what the catalog predominantly holds.
func NormalizeFormat(raw string) Format {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(lowered, "cd"), strings.Contains(lowered, "compact"):
		return FormatCD
	case strings.Contains(lowered, "cass"):
		return FormatCassette
	case strings.Contains(lowered, "digital"), strings.Contains(lowered, "file"):
		return FormatDigital
	default:
		return FormatVinyl
	}
}

// Performer credits a contributor on a track or sub-track.
type Performer struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// SubTrack is a nested movement within a tracklist entry, used when one
// listing bundles a suite.
type SubTrack struct {
	Position    string      `json:"position"`
	Title       string      `json:"title"`
	Duration    string      `json:"duration"`
	DurationSec *int        `json:"durationSec,omitempty"`
	Composer    []string    `json:"composer,omitempty"`
	Performers  []Performer `json:"performers,omitempty"`
}

// Track is a single tracklist entry. Position is free text because vinyl side
// notation ("A1", "B3") is not numeric; TrackNo is the numeric fallback
// ordering key.
type Track struct {
	Position    string      `json:"position"`
	Title       string      `json:"title"`
	Duration    string      `json:"duration"`
	TrackNo     *int        `json:"trackNo,omitempty"`
	DurationSec *int        `json:"durationSec,omitempty"`
	Composer    []string    `json:"composer,omitempty"`
	Performers  []Performer `json:"performers,omitempty"`
	SubTracks   []SubTrack  `json:"subTracks,omitempty"`
}

// Record is a cataloged release. ID is generated client-side at creation and
// never reassigned; AddedAt is unix milliseconds at creation.
type Record struct {
	ID               string   `json:"id"`
	Artist           string   `json:"artist"`
	Title            string   `json:"title"`
	Year             string   `json:"year,omitempty"`
	Label            string   `json:"label,omitempty"`
	CatalogNumber    string   `json:"catalogNumber,omitempty"`
	Format           Format   `json:"format"`
	CoverURL         string   `json:"coverUrl,omitempty"`
	SeriesName       string   `json:"seriesName,omitempty"`
	SeriesCatno      string   `json:"seriesCatno,omitempty"`
	SeriesID         string   `json:"seriesId,omitempty"`
	Genres           []string `json:"genres,omitempty"`
	Styles           []string `json:"styles,omitempty"`
	Tracks           []Track  `json:"tracks"`
	AddedAt          int64    `json:"addedAt"`
	DiscogsReleaseID int64    `json:"discogsReleaseId,omitempty"`
}

// Validate reports whether the record carries the fields required before it
// may be saved.
func (r Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidRecord)
	}
	if strings.TrimSpace(r.Artist) == "" {
		return fmt.Errorf("%w: artist is required", ErrInvalidRecord)
	}
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidRecord)
	}
	return nil
}

// ScanResult is the partial record shape produced mid-pipeline by extraction
// and catalog lookup. Every field is best-effort.
type ScanResult struct {
	Artist           string   `json:"artist,omitempty"`
	Title            string   `json:"title,omitempty"`
	CatalogNumber    string   `json:"catalogNumber,omitempty"`
	Label            string   `json:"label,omitempty"`
	Year             string   `json:"year,omitempty"`
	Format           Format   `json:"format,omitempty"`
	Confidence       *float64 `json:"confidence,omitempty"`
	SuggestedTracks  []Track  `json:"suggestedTracks,omitempty"`
	CoverURL         string   `json:"coverUrl,omitempty"`
	SeriesName       string   `json:"seriesName,omitempty"`
	SeriesCatno      string   `json:"seriesCatno,omitempty"`
	SeriesID         string   `json:"seriesId,omitempty"`
	Genres           []string `json:"genres,omitempty"`
	Styles           []string `json:"styles,omitempty"`
	DiscogsReleaseID int64    `json:"discogsReleaseId,omitempty"`
}
