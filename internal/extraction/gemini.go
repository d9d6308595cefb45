package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	defaultGeminiModel   = "gemini-2.5-flash"

	basePrompt = `You are an assistant that reads vinyl record artwork (spines and covers) from a photo.
Return a strict JSON object with the fields:
{
  "artist": string | null,
  "title": string | null,
  "catalogNumber": string | null,
  "format": string | null,
  "confidence": number (0-1),
  "notes": string | null
}

Do not add Markdown or text outside of JSON.
Use uppercase catalog numbers (e.g. "SHVL 804").`

	spinePrompt = "Analyze this image of a record SPINE. Prioritize finding the catalog number and any artist/title text printed along the spine."
	coverPrompt = "Analyze this image of a record COVER. Focus heavily on extracting ARTIST NAME and ALBUM TITLE. Catalog numbers on covers are rare, so only include if clearly visible."
)

// GeminiConfig bundles what the remote oracle strategy needs.
type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// GeminiExtractor delegates extraction to the Gemini generateContent API,
// sending the image inline and requiring a strict-JSON reply.
type GeminiExtractor struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewGeminiExtractor constructs the remote oracle strategy. A missing API key
// is tolerated here; Extract fails fast with ErrNotConfigured.
func NewGeminiExtractor(cfg GeminiConfig) *GeminiExtractor {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultGeminiModel
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiExtractor{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      model,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	Data     string `json:"data"`
	MIMEType string `json:"mime_type"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMIMEType string  `json:"response_mime_type"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type geminiGuessPayload struct {
	Artist        string   `json:"artist"`
	Title         string   `json:"title"`
	CatalogNumber string   `json:"catalogNumber"`
	Format        string   `json:"format"`
	Confidence    *float64 `json:"confidence"`
	Notes         string   `json:"notes"`
}

func promptForMode(mode Mode) string {
	if mode == ModeSpine {
		return spinePrompt
	}
	return coverPrompt
}

// Extract submits the image plus a mode-specific instruction and decodes the
// strict-JSON reply into a Guess.
func (g *GeminiExtractor) Extract(ctx context.Context, img Image, mode Mode) (Guess, error) {
	if g.apiKey == "" {
		return Guess{}, ErrNotConfigured
	}

	payload := geminiRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{Text: basePrompt + "\n" + promptForMode(mode)},
				{InlineData: &geminiInlineData{
					Data:     base64.StdEncoding.EncodeToString(img.Data),
					MIMEType: img.MIME,
				}},
			},
		}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      0.2,
			ResponseMIMEType: "application/json",
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Guess{}, err
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		g.baseURL, g.model, url.QueryEscape(g.apiKey))
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Guess{}, err
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := g.httpClient.Do(request)
	if err != nil {
		return Guess{}, fmt.Errorf("extraction: oracle request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
		return Guess{}, &StatusError{StatusCode: response.StatusCode, Detail: strings.TrimSpace(string(detail))}
	}

	var decoded geminiResponse
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		return Guess{}, &ParseError{cause: err}
	}

	text := ""
	if len(decoded.Candidates) > 0 && len(decoded.Candidates[0].Content.Parts) > 0 {
		text = decoded.Candidates[0].Content.Parts[0].Text
	}
	if strings.TrimSpace(text) == "" {
		return Guess{}, &ParseError{cause: fmt.Errorf("no candidate text in response")}
	}

	var parsed geminiGuessPayload
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		g.logger.Debug("oracle returned non-JSON candidate text", zap.String("text", text))
		return Guess{}, &ParseError{Raw: text, cause: err}
	}

	return Guess{
		Artist:        strings.TrimSpace(parsed.Artist),
		Title:         strings.TrimSpace(parsed.Title),
		CatalogNumber: strings.TrimSpace(parsed.CatalogNumber),
		Format:        strings.TrimSpace(parsed.Format),
		Confidence:    clampConfidence(parsed.Confidence),
		Notes:         strings.TrimSpace(parsed.Notes),
	}, nil
}

func clampConfidence(value *float64) *float64 {
	if value == nil {
		return nil
	}
	clamped := *value
	if clamped < 0 {
		clamped = 0
	}
	if clamped > 1 {
		clamped = 1
	}
	return &clamped
}
