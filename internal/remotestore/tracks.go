package remotestore

import (
	"context"
	"net/http"
	"net/url"
	"sort"

	"github.com/vinylvision/backend/internal/catalog"
)

// The side tables are owned by this adapter and always snake_case; the
// convention probing only concerns the main albums table.

type trackRow struct {
	ID          int64               `json:"id,omitempty"`
	AlbumID     string              `json:"album_id"`
	Seq         int                 `json:"seq"`
	Position    string              `json:"position"`
	Title       string              `json:"title"`
	DurationSec *int                `json:"duration_sec"`
	TrackNo     *int                `json:"track_no,omitempty"`
	Composer    []string            `json:"composer,omitempty"`
	Performers  []catalog.Performer `json:"performers,omitempty"`
}

type subTrackRow struct {
	ID          int64               `json:"id,omitempty"`
	TrackID     int64               `json:"track_id"`
	Seq         int                 `json:"seq"`
	Position    string              `json:"position"`
	Title       string              `json:"title"`
	DurationSec *int                `json:"duration_sec"`
	Composer    []string            `json:"composer,omitempty"`
	Performers  []catalog.Performer `json:"performers,omitempty"`
}

func trackSeconds(duration string, seconds *int) *int {
	if seconds != nil {
		return seconds
	}
	parsed, ok := catalog.ParseDurationSeconds(duration)
	if !ok {
		return nil
	}
	return &parsed
}

func buildTrackRows(record catalog.Record) []trackRow {
	rows := make([]trackRow, 0, len(record.Tracks))
	for index, track := range record.Tracks {
		rows = append(rows, trackRow{
			AlbumID:     record.ID,
			Seq:         index,
			Position:    track.Position,
			Title:       track.Title,
			DurationSec: trackSeconds(track.Duration, track.DurationSec),
			TrackNo:     track.TrackNo,
			Composer:    track.Composer,
			Performers:  track.Performers,
		})
	}
	return rows
}

func buildSubTrackRows(record catalog.Record, trackIDsBySeq map[int]int64) []subTrackRow {
	var rows []subTrackRow
	for index, track := range record.Tracks {
		trackID, ok := trackIDsBySeq[index]
		if !ok {
			continue
		}
		for subIndex, sub := range track.SubTracks {
			rows = append(rows, subTrackRow{
				TrackID:     trackID,
				Seq:         subIndex,
				Position:    sub.Position,
				Title:       sub.Title,
				DurationSec: trackSeconds(sub.Duration, sub.DurationSec),
				Composer:    sub.Composer,
				Performers:  sub.Performers,
			})
		}
	}
	return rows
}

// syncTracks replaces the record's rows in the side tables: delete, bulk
// insert in order, re-fetch the generated identities, then insert the
// sub-track rows against them.
func (s *Store) syncTracks(ctx context.Context, record catalog.Record) error {
	deleteQuery := url.Values{"album_id": {"eq." + record.ID}}
	if err := s.doJSON(ctx, http.MethodDelete, tracksTable, deleteQuery, "return=minimal", nil, nil); err != nil {
		if isMissingRelation(err) {
			// Deployment predates the normalized schema; the main row is all
			// there is to write.
			return nil
		}
		return err
	}

	rows := buildTrackRows(record)
	if len(rows) == 0 {
		return nil
	}
	if err := s.doJSON(ctx, http.MethodPost, tracksTable, nil, "return=minimal", rows, nil); err != nil {
		return err
	}

	var inserted []trackRow
	fetchQuery := url.Values{
		"album_id": {"eq." + record.ID},
		"select":   {"id,seq"},
		"order":    {"seq.asc"},
	}
	if err := s.doJSON(ctx, http.MethodGet, tracksTable, fetchQuery, "", nil, &inserted); err != nil {
		return err
	}

	trackIDsBySeq := make(map[int]int64, len(inserted))
	for _, row := range inserted {
		trackIDsBySeq[row.Seq] = row.ID
	}

	subRows := buildSubTrackRows(record, trackIDsBySeq)
	if len(subRows) == 0 {
		return nil
	}
	return s.doJSON(ctx, http.MethodPost, subTracksTable, nil, "return=minimal", subRows, nil)
}

func (s *Store) fetchTrackRows(ctx context.Context) ([]trackRow, error) {
	var rows []trackRow
	query := url.Values{"select": {"*"}}
	if err := s.doJSON(ctx, http.MethodGet, tracksTable, query, "", nil, &rows); err != nil {
		if isMissingRelation(err) {
			return nil, nil
		}
		return nil, err
	}
	return rows, nil
}

func (s *Store) fetchSubTrackRows(ctx context.Context) ([]subTrackRow, error) {
	var rows []subTrackRow
	query := url.Values{"select": {"*"}}
	if err := s.doJSON(ctx, http.MethodGet, subTracksTable, query, "", nil, &rows); err != nil {
		if isMissingRelation(err) {
			return nil, nil
		}
		return nil, err
	}
	return rows, nil
}

// stitchRecords reassembles the nested record shape from the three flat
// tables. Children are re-sorted by their explicit seq fields; insertion
// order across tables is never trusted.
func stitchRecords(albumRows []rawRow, trackRows []trackRow, subRows []subTrackRow) []catalog.Record {
	subsByTrackID := make(map[int64][]subTrackRow)
	for _, row := range subRows {
		subsByTrackID[row.TrackID] = append(subsByTrackID[row.TrackID], row)
	}
	for trackID := range subsByTrackID {
		rows := subsByTrackID[trackID]
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Seq < rows[j].Seq })
		subsByTrackID[trackID] = rows
	}

	tracksByAlbumID := make(map[string][]trackRow)
	for _, row := range trackRows {
		tracksByAlbumID[row.AlbumID] = append(tracksByAlbumID[row.AlbumID], row)
	}

	records := make([]catalog.Record, 0, len(albumRows))
	for _, albumRow := range albumRows {
		record := deserializeAlbum(albumRow)

		rows := tracksByAlbumID[record.ID]
		if len(rows) > 0 {
			sort.SliceStable(rows, func(i, j int) bool { return rows[i].Seq < rows[j].Seq })
			tracks := make([]catalog.Track, 0, len(rows))
			for _, row := range rows {
				tracks = append(tracks, catalog.Track{
					Position:    row.Position,
					Title:       row.Title,
					Duration:    catalog.FormatDurationPtr(row.DurationSec),
					DurationSec: row.DurationSec,
					TrackNo:     row.TrackNo,
					Composer:    row.Composer,
					Performers:  row.Performers,
					SubTracks:   stitchSubTracks(subsByTrackID[row.ID]),
				})
			}
			record.Tracks = tracks
		}
		if record.Tracks == nil {
			record.Tracks = []catalog.Track{}
		}

		records = append(records, record)
	}
	return records
}

func stitchSubTracks(rows []subTrackRow) []catalog.SubTrack {
	if len(rows) == 0 {
		return nil
	}
	subs := make([]catalog.SubTrack, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, catalog.SubTrack{
			Position:    row.Position,
			Title:       row.Title,
			Duration:    catalog.FormatDurationPtr(row.DurationSec),
			DurationSec: row.DurationSec,
			Composer:    row.Composer,
			Performers:  row.Performers,
		})
	}
	return subs
}
