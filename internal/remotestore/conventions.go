package remotestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/vinylvision/backend/internal/catalog"
)

// ErrUnknownColumnStyle indicates a configured convention label outside the
// closed set.
var ErrUnknownColumnStyle = errors.New("remotestore: unknown column style")

// ColumnStyle names one candidate column-naming convention for the remote
// albums table. The convention in use is discovered empirically per
// deployment, not fixed at build time.
type ColumnStyle string

const (
	// StyleSnake is snake_case (catalog_number).
	StyleSnake ColumnStyle = "snake"
	// StyleCamel is camelCase (catalogNumber).
	StyleCamel ColumnStyle = "camel"
	// StyleLegacy is the flattened lowercase mix older deployments carry
	// (catalognumber).
	StyleLegacy ColumnStyle = "legacy"
)

// styleFallbackOrder is the fixed probe order when no convention has been
// confirmed yet.
var styleFallbackOrder = []ColumnStyle{StyleSnake, StyleCamel, StyleLegacy}

// ParseColumnStyle validates a configured convention label. Empty means
// "unknown, probe for it".
func ParseColumnStyle(raw string) (ColumnStyle, error) {
	switch ColumnStyle(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return "", nil
	case StyleSnake:
		return StyleSnake, nil
	case StyleCamel:
		return StyleCamel, nil
	case StyleLegacy:
		return StyleLegacy, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownColumnStyle, raw)
	}
}

var (
	bareYearPattern = regexp.MustCompile(`^\d{4}$`)
	isoDatePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
)

// toDateValue widens a bare year into the date form the remote column stores.
func toDateValue(year string) any {
	trimmed := strings.TrimSpace(year)
	if trimmed == "" {
		return nil
	}
	if bareYearPattern.MatchString(trimmed) {
		return trimmed + "-01-01"
	}
	return trimmed
}

// extractYear narrows a remote year value back to the 4-digit display form.
func extractYear(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if bareYearPattern.MatchString(trimmed) {
		return trimmed
	}
	if isoDatePattern.MatchString(trimmed) {
		return trimmed[:4]
	}
	return trimmed
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// serializeAlbum renders the main-table row under one naming convention. The
// track collections are not embedded; they fan out to the side tables.
func serializeAlbum(record catalog.Record, style ColumnStyle) map[string]any {
	row := map[string]any{
		"id":     record.ID,
		"artist": record.Artist,
		"title":  record.Title,
		"year":   toDateValue(record.Year),
		"label":  nullableString(record.Label),
		"format": string(record.Format),
	}

	switch style {
	case StyleCamel:
		row["catalogNumber"] = nullableString(record.CatalogNumber)
		row["coverUrl"] = nullableString(record.CoverURL)
		row["addedAt"] = record.AddedAt
	case StyleLegacy:
		row["catalognumber"] = nullableString(record.CatalogNumber)
		row["coverurl"] = nullableString(record.CoverURL)
		row["addedat"] = record.AddedAt
	default:
		row["catalog_number"] = nullableString(record.CatalogNumber)
		row["cover_url"] = nullableString(record.CoverURL)
		row["added_at"] = record.AddedAt
	}

	return row
}

// rawRow is one fetched row with its exact key spellings preserved. Struct
// decoding is unusable here: encoding/json matches field names
// case-insensitively, which would conflate catalogNumber and catalognumber.
type rawRow map[string]json.RawMessage

func (r rawRow) stringField(keys ...string) string {
	for _, key := range keys {
		raw, ok := r[key]
		if !ok {
			continue
		}
		var value string
		if err := json.Unmarshal(raw, &value); err == nil {
			return value
		}
		// Numeric years arrive as numbers on some deployments.
		var number json.Number
		if err := json.Unmarshal(raw, &number); err == nil {
			return number.String()
		}
	}
	return ""
}

func (r rawRow) int64Field(keys ...string) int64 {
	for _, key := range keys {
		raw, ok := r[key]
		if !ok {
			continue
		}
		var value int64
		if err := json.Unmarshal(raw, &value); err == nil {
			return value
		}
		var fractional float64
		if err := json.Unmarshal(raw, &fractional); err == nil {
			return int64(fractional)
		}
	}
	return 0
}

// deserializeAlbum decodes a main-table row regardless of which convention
// the deployment uses. It is total: missing optional fields default to
// absent, never to an error.
func deserializeAlbum(row rawRow) catalog.Record {
	record := catalog.Record{
		ID:            row.stringField("id"),
		Artist:        row.stringField("artist"),
		Title:         row.stringField("title"),
		Year:          extractYear(row.stringField("year")),
		Label:         row.stringField("label"),
		CatalogNumber: row.stringField("catalog_number", "catalognumber", "catalogNumber"),
		Format:        catalog.Format(row.stringField("format")),
		CoverURL:      row.stringField("cover_url", "coverurl", "coverUrl"),
		AddedAt:       row.int64Field("added_at", "addedat", "addedAt"),
	}
	if record.Format == "" {
		record.Format = catalog.FormatVinyl
	}

	// Older deployments embedded the tracklist on the main row; keep it as
	// the fallback when the side tables are empty for this record.
	if raw, ok := row["tracks"]; ok {
		var embedded []catalog.Track
		if err := json.Unmarshal(raw, &embedded); err == nil {
			record.Tracks = embedded
		}
	}

	return record
}
