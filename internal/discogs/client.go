// Package discogs enriches a partial release query against the Discogs
// database: one search call, then one detail fetch for the best-ranked hit.
package discogs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vinylvision/backend/internal/catalog"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.discogs.com"
	// Discogs requires a descriptive User-Agent on every request.
	defaultUserAgent = "VinylVisionApp/1.0"
)

var (
	// ErrNotConfigured indicates a missing API token; no request is made.
	ErrNotConfigured = errors.New("discogs: api token not configured")
	// ErrInsufficientQuery indicates the query carries no usable field; no
	// request is made.
	ErrInsufficientQuery = errors.New("discogs: query needs an artist, title, or catalog number")
	// ErrNoMatches indicates the search succeeded but returned zero hits.
	ErrNoMatches = errors.New("discogs: no releases matched the query")
)

// StatusError reports a non-success response from either lookup step.
type StatusError struct {
	Step       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("discogs: %s request returned status %d", e.Step, e.StatusCode)
}

// Query is a partial description of the release being identified.
type Query struct {
	Artist        string
	Title         string
	CatalogNumber string
}

// Empty reports whether no field carries a usable value.
func (q Query) Empty() bool {
	return strings.TrimSpace(q.Artist) == "" &&
		strings.TrimSpace(q.Title) == "" &&
		strings.TrimSpace(q.CatalogNumber) == ""
}

// Config bundles the client dependencies.
type Config struct {
	Token      string
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	Logger     *zap.Logger
}

// Client queries the Discogs HTTP API.
type Client struct {
	token      string
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient constructs a Discogs client. The default limiter stays inside the
// authenticated per-token request budget.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(time.Second), 1)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		token:      strings.TrimSpace(cfg.Token),
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: httpClient,
		limiter:    limiter,
		logger:     logger,
	}
}

type searchResult struct {
	ResourceURL string `json:"resource_url"`
	CoverImage  string `json:"cover_image"`
	Thumb       string `json:"thumb"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

// Lookup resolves the query to an enriched partial record. The first search
// hit is treated as authoritative; its detail record supplies the tracklist.
func (c *Client) Lookup(ctx context.Context, query Query) (catalog.ScanResult, error) {
	if c.token == "" {
		return catalog.ScanResult{}, ErrNotConfigured
	}
	if query.Empty() {
		return catalog.ScanResult{}, ErrInsufficientQuery
	}

	best, err := c.search(ctx, query)
	if err != nil {
		return catalog.ScanResult{}, err
	}

	coverURL := best.CoverImage
	if coverURL == "" {
		coverURL = best.Thumb
	}

	release, err := c.fetchRelease(ctx, best.ResourceURL)
	if err != nil {
		return catalog.ScanResult{}, err
	}

	result := mapRelease(release, query)
	result.CoverURL = coverURL
	return result, nil
}

func (c *Client) search(ctx context.Context, query Query) (searchResult, error) {
	params := url.Values{}
	params.Set("type", "release")
	params.Set("token", c.token)
	if catno := strings.TrimSpace(query.CatalogNumber); catno != "" {
		params.Set("catno", catno)
	}
	if artist := strings.TrimSpace(query.Artist); artist != "" {
		params.Set("artist", artist)
	}
	if title := strings.TrimSpace(query.Title); title != "" {
		params.Set("release_title", title)
	}

	endpoint := c.baseURL + "/database/search?" + params.Encode()
	var decoded searchResponse
	if err := c.getJSON(ctx, "search", endpoint, &decoded); err != nil {
		return searchResult{}, err
	}

	if len(decoded.Results) == 0 {
		return searchResult{}, ErrNoMatches
	}
	return decoded.Results[0], nil
}

func (c *Client) fetchRelease(ctx context.Context, resourceURL string) (releasePayload, error) {
	endpoint, err := url.Parse(resourceURL)
	if err != nil {
		return releasePayload{}, fmt.Errorf("discogs: invalid resource url: %w", err)
	}
	params := endpoint.Query()
	params.Set("token", c.token)
	endpoint.RawQuery = params.Encode()

	var release releasePayload
	if err := c.getJSON(ctx, "release", endpoint.String(), &release); err != nil {
		return releasePayload{}, err
	}
	return release, nil
}

func (c *Client) getJSON(ctx context.Context, step, endpoint string, target any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	request.Header.Set("User-Agent", c.userAgent)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("discogs: %s request failed: %w", step, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(response.Body, 4096)) //nolint:errcheck
		return &StatusError{Step: step, StatusCode: response.StatusCode}
	}

	if err := json.NewDecoder(response.Body).Decode(target); err != nil {
		return fmt.Errorf("discogs: %s response decode failed: %w", step, err)
	}
	return nil
}
