package discogs

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/vinylvision/backend/internal/catalog"
)

// Discogs disambiguates same-named artists with a numeric suffix, "Miles
// Davis (2)"; the suffix is a database artifact and never part of the name.
var artistDisambiguation = regexp.MustCompile(`\s\(\d+\)$`)

type artistPayload struct {
	Name string `json:"name"`
}

type labelPayload struct {
	Name  string `json:"name"`
	Catno string `json:"catno"`
}

type formatPayload struct {
	Name string `json:"name"`
}

type seriesPayload struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Catno string `json:"catno"`
}

type extraArtistPayload struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type subTrackPayload struct {
	Position     string               `json:"position"`
	Title        string               `json:"title"`
	Duration     string               `json:"duration"`
	ExtraArtists []extraArtistPayload `json:"extraartists"`
}

type trackPayload struct {
	Position     string               `json:"position"`
	Title        string               `json:"title"`
	Duration     string               `json:"duration"`
	ExtraArtists []extraArtistPayload `json:"extraartists"`
	SubTracks    []subTrackPayload    `json:"sub_tracks"`
}

type releasePayload struct {
	ID        int64           `json:"id"`
	Title     string          `json:"title"`
	Year      int             `json:"year"`
	Released  string          `json:"released"`
	Artists   []artistPayload `json:"artists"`
	Labels    []labelPayload  `json:"labels"`
	Formats   []formatPayload `json:"formats"`
	Series    []seriesPayload `json:"series"`
	Genres    []string        `json:"genres"`
	Styles    []string        `json:"styles"`
	Tracklist []trackPayload  `json:"tracklist"`
}

func cleanArtistName(name string) string {
	return artistDisambiguation.ReplaceAllString(strings.TrimSpace(name), "")
}

func isComposerRole(role string) bool {
	return strings.Contains(strings.ToLower(role), "composed by")
}

// mapPerformers keeps non-composer credits. An empty result maps to nil, not
// an empty slice: nil signals "no data" where an empty slice would claim
// "confirmed none".
func mapPerformers(extras []extraArtistPayload) []catalog.Performer {
	var performers []catalog.Performer
	for _, extra := range extras {
		name := cleanArtistName(extra.Name)
		if name == "" || isComposerRole(extra.Role) {
			continue
		}
		performers = append(performers, catalog.Performer{Name: name, Role: extra.Role})
	}
	return performers
}

func mapComposers(extras []extraArtistPayload) []string {
	var composers []string
	for _, extra := range extras {
		name := cleanArtistName(extra.Name)
		if name == "" || !isComposerRole(extra.Role) {
			continue
		}
		composers = append(composers, name)
	}
	return composers
}

func durationSeconds(duration string) *int {
	seconds, ok := catalog.ParseDurationSeconds(duration)
	if !ok {
		return nil
	}
	return &seconds
}

func mapSubTracks(subs []subTrackPayload) []catalog.SubTrack {
	var mapped []catalog.SubTrack
	for _, sub := range subs {
		mapped = append(mapped, catalog.SubTrack{
			Position:    sub.Position,
			Title:       sub.Title,
			Duration:    sub.Duration,
			DurationSec: durationSeconds(sub.Duration),
			Composer:    mapComposers(sub.ExtraArtists),
			Performers:  mapPerformers(sub.ExtraArtists),
		})
	}
	return mapped
}

func mapTracks(tracks []trackPayload) []catalog.Track {
	var mapped []catalog.Track
	for _, track := range tracks {
		mapped = append(mapped, catalog.Track{
			Position:    track.Position,
			Title:       track.Title,
			Duration:    track.Duration,
			DurationSec: durationSeconds(track.Duration),
			Composer:    mapComposers(track.ExtraArtists),
			Performers:  mapPerformers(track.ExtraArtists),
			SubTracks:   mapSubTracks(track.SubTracks),
		})
	}
	return mapped
}

func mapYear(release releasePayload) string {
	if release.Year > 0 {
		return strconv.Itoa(release.Year)
	}
	if len(release.Released) >= 4 {
		return release.Released[:4]
	}
	return ""
}

// mapRelease converts the Discogs detail payload into the normalized partial
// record shape, falling back to the original query where the payload is
// silent. The catalog number from the release wins over the queried one.
func mapRelease(release releasePayload, query Query) catalog.ScanResult {
	artist := strings.TrimSpace(query.Artist)
	if len(release.Artists) > 0 {
		if cleaned := cleanArtistName(release.Artists[0].Name); cleaned != "" {
			artist = cleaned
		}
	}

	title := release.Title
	if title == "" {
		title = strings.TrimSpace(query.Title)
	}

	catalogNumber := strings.TrimSpace(query.CatalogNumber)
	label := ""
	if len(release.Labels) > 0 {
		label = release.Labels[0].Name
		if release.Labels[0].Catno != "" {
			catalogNumber = release.Labels[0].Catno
		}
	}

	format := catalog.FormatVinyl
	if len(release.Formats) > 0 {
		format = catalog.NormalizeFormat(release.Formats[0].Name)
	}

	result := catalog.ScanResult{
		Artist:           artist,
		Title:            title,
		CatalogNumber:    catalogNumber,
		Label:            label,
		Year:             mapYear(release),
		Format:           format,
		SuggestedTracks:  mapTracks(release.Tracklist),
		Genres:           release.Genres,
		Styles:           release.Styles,
		DiscogsReleaseID: release.ID,
	}

	if len(release.Series) > 0 {
		result.SeriesName = release.Series[0].Name
		result.SeriesCatno = release.Series[0].Catno
		if release.Series[0].ID != 0 {
			result.SeriesID = strconv.FormatInt(release.Series[0].ID, 10)
		}
	}

	return result
}
