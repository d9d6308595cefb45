// Package remotestore persists records to a Supabase-backed PostgREST row
// store whose main-table column convention is not reliably known in advance.
// Writes probe an ordered list of conventions and remember the one the
// deployment accepts.
package remotestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/vinylvision/backend/internal/catalog"
	"go.uber.org/zap"
)

const (
	albumsTable    = "albums"
	tracksTable    = "tracks"
	subTracksTable = "subtracks"
)

// PostgREST error codes.
const (
	codeMissingColumn      = "42703"    // undefined_column from Postgres
	codeSchemaCacheColumn  = "PGRST204" // column absent from PostgREST schema cache
	codeMissingRelation    = "42P01"    // undefined_table
	codeSchemaCacheMissing = "PGRST205" // table absent from PostgREST schema cache
)

// apiError is a non-success PostgREST response.
type apiError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("remotestore: %s returned status %d (code %s): %s", e.Op, e.StatusCode, e.Code, e.Message)
}

// isSchemaMismatch classifies errors that justify retrying the write under a
// different column convention. Anything else (auth, network, constraint
// violations) aborts the probe immediately.
func isSchemaMismatch(err error) bool {
	var remote *apiError
	if !errors.As(err, &remote) {
		return false
	}
	return remote.Code == codeMissingColumn || remote.Code == codeSchemaCacheColumn
}

// isMissingRelation classifies "table does not exist", which on the side
// tables means the deployment predates the normalized schema.
func isMissingRelation(err error) bool {
	var remote *apiError
	if !errors.As(err, &remote) {
		return false
	}
	return remote.Code == codeMissingRelation || remote.Code == codeSchemaCacheMissing
}

// Config bundles the store dependencies. URL and APIKey may both be empty;
// the store then runs as a transparent no-op so local-only deployments work
// unchanged.
type Config struct {
	URL         string
	APIKey      string
	ColumnStyle ColumnStyle
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

// Store is the remote record store adapter.
type Store struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger

	mu        sync.Mutex
	confirmed ColumnStyle
}

// New constructs the adapter. A configured column style seeds the probe
// order; otherwise the first accepted convention is cached.
func New(cfg Config) *Store {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	store := &Store{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.URL), "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: httpClient,
		logger:     logger,
		confirmed:  cfg.ColumnStyle,
	}
	if store.Configured() {
		store.inspectAnonKey()
	}
	return store
}

// Configured reports whether a remote deployment is wired in at all.
func (s *Store) Configured() bool {
	return s.baseURL != "" && s.apiKey != ""
}

// inspectAnonKey decodes the Supabase anon key without verification to warn
// about keys that can never work. The signature belongs to Supabase; only
// the claims are of interest here.
func (s *Store) inspectAnonKey() {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.apiKey, claims); err != nil {
		s.logger.Debug("supabase key is not a decodable JWT", zap.Error(err))
		return
	}
	if role, _ := claims["role"].(string); role != "" && role != "anon" {
		s.logger.Warn("supabase key role is not anon", zap.String("role", role))
	}
	if expiry, err := claims.GetExpirationTime(); err == nil && expiry != nil && expiry.Before(time.Now()) {
		s.logger.Warn("supabase key is expired", zap.Time("expired_at", expiry.Time))
	}
}

func (s *Store) confirmedStyle() ColumnStyle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmed
}

func (s *Store) setConfirmedStyle(style ColumnStyle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmed = style
}

// probeOrder yields the conventions to attempt: the confirmed one first when
// cached, then the remaining ones in fixed fallback order, no repeats.
func (s *Store) probeOrder() []ColumnStyle {
	confirmed := s.confirmedStyle()
	order := make([]ColumnStyle, 0, len(styleFallbackOrder))
	if confirmed != "" {
		order = append(order, confirmed)
	}
	for _, style := range styleFallbackOrder {
		if style != confirmed {
			order = append(order, style)
		}
	}
	return order
}

// FetchAll returns every remote record with tracklists stitched back in. The
// second return reports whether remote data is available at all: false means
// the store is unconfigured and the caller's local state stands.
func (s *Store) FetchAll(ctx context.Context) ([]catalog.Record, bool, error) {
	if !s.Configured() {
		return nil, false, nil
	}

	var albumRows []rawRow
	if err := s.doJSON(ctx, http.MethodGet, albumsTable, url.Values{"select": {"*"}}, "", nil, &albumRows); err != nil {
		return nil, false, err
	}

	trackRows, err := s.fetchTrackRows(ctx)
	if err != nil {
		return nil, false, err
	}
	subRows, err := s.fetchSubTrackRows(ctx)
	if err != nil {
		return nil, false, err
	}

	records := stitchRecords(albumRows, trackRows, subRows)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].AddedAt > records[j].AddedAt
	})
	return records, true, nil
}

// Upsert writes the record under the first column convention the deployment
// accepts, then fans the tracklist out to the side tables.
func (s *Store) Upsert(ctx context.Context, record catalog.Record) error {
	if !s.Configured() {
		return nil
	}

	var lastSchemaErr error
	accepted := false
	for _, style := range s.probeOrder() {
		err := s.upsertAlbumRow(ctx, record, style)
		if err == nil {
			s.setConfirmedStyle(style)
			accepted = true
			break
		}
		if !isSchemaMismatch(err) {
			return err
		}
		s.logger.Debug("column convention rejected",
			zap.String("style", string(style)), zap.Error(err))
		lastSchemaErr = err
	}
	if !accepted {
		return fmt.Errorf("remotestore: every column convention was rejected: %w", lastSchemaErr)
	}

	return s.syncTracks(ctx, record)
}

// Delete removes the record and its owned track rows.
func (s *Store) Delete(ctx context.Context, id string) error {
	if !s.Configured() {
		return nil
	}

	// Track rows first: subtracks cascade from tracks in the remote schema,
	// and deployments without the side tables simply skip this step.
	query := url.Values{"album_id": {"eq." + id}}
	if err := s.doJSON(ctx, http.MethodDelete, tracksTable, query, "return=minimal", nil, nil); err != nil && !isMissingRelation(err) {
		return err
	}

	return s.doJSON(ctx, http.MethodDelete, albumsTable, url.Values{"id": {"eq." + id}}, "return=minimal", nil, nil)
}

func (s *Store) upsertAlbumRow(ctx context.Context, record catalog.Record, style ColumnStyle) error {
	query := url.Values{"on_conflict": {"id"}}
	payload := []map[string]any{serializeAlbum(record, style)}
	return s.doJSON(ctx, http.MethodPost, albumsTable, query, "resolution=merge-duplicates,return=minimal", payload, nil)
}

func (s *Store) doJSON(ctx context.Context, method, table string, query url.Values, prefer string, body, target any) error {
	endpoint := s.baseURL + "/rest/v1/" + table
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	request.Header.Set("apikey", s.apiKey)
	request.Header.Set("Authorization", "Bearer "+s.apiKey)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		request.Header.Set("Prefer", prefer)
	}

	response, err := s.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("remotestore: %s %s failed: %w", method, table, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return decodeAPIError(method+" "+table, response)
	}

	if target != nil {
		if err := json.NewDecoder(response.Body).Decode(target); err != nil {
			return fmt.Errorf("remotestore: %s %s decode failed: %w", method, table, err)
		}
	}
	return nil
}

func decodeAPIError(op string, response *http.Response) error {
	remote := &apiError{Op: op, StatusCode: response.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(response.Body, 8192))
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		remote.Code = payload.Code
		remote.Message = payload.Message
	} else {
		remote.Message = strings.TrimSpace(string(body))
	}
	return remote
}
