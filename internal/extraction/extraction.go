// Package extraction turns a captured image into a best-effort textual guess
// of the release printed on it. Two interchangeable strategies exist: a local
// OCR pass over the pixels and a remote vision oracle.
package extraction

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrNotConfigured indicates the strategy is missing credentials or a
	// binary path; no network or exec attempt is made.
	ErrNotConfigured = errors.New("extraction: extractor not configured")
	// ErrUnsupportedImage indicates the captured image is not a base64 data
	// URL and cannot be submitted to any strategy.
	ErrUnsupportedImage = errors.New("extraction: unsupported image encoding")
	// ErrUnknownMode indicates an unrecognized scan mode label.
	ErrUnknownMode = errors.New("extraction: unknown scan mode")
)

// Mode biases extraction heuristics toward the part of the sleeve being
// photographed.
type Mode string

const (
	// ModeSpine expects short text dense with catalog numbers.
	ModeSpine Mode = "SPINE"
	// ModeCover expects large artist/title blocks; catalog numbers are rare.
	ModeCover Mode = "COVER"
)

// ParseMode validates a raw scan mode label.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(ModeSpine):
		return ModeSpine, nil
	case string(ModeCover), "":
		return ModeCover, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, raw)
	}
}

// Guess is the unstructured best-effort output of a strategy. Empty fields
// mean the strategy found nothing usable for them.
type Guess struct {
	Artist        string
	Title         string
	CatalogNumber string
	Format        string
	Confidence    *float64
	Notes         string
}

// Empty reports whether the guess carries no usable query field.
func (g Guess) Empty() bool {
	return g.Artist == "" && g.Title == "" && g.CatalogNumber == ""
}

// Extractor is the strategy boundary for image-to-guess conversion.
type Extractor interface {
	Extract(ctx context.Context, img Image, mode Mode) (Guess, error)
}

// Image is a decoded captured photograph.
type Image struct {
	Data []byte
	MIME string
}

var dataURLPattern = regexp.MustCompile(`^data:(.+);base64,(.*)$`)

// ParseDataURL decodes a base64 data URL into raw bytes plus MIME type. The
// front end always captures into this shape; anything else fails before any
// strategy runs.
func ParseDataURL(raw string) (Image, error) {
	match := dataURLPattern.FindStringSubmatch(raw)
	if match == nil {
		return Image{}, ErrUnsupportedImage
	}
	data, err := base64.StdEncoding.DecodeString(match[2])
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return Image{Data: data, MIME: match[1]}, nil
}

// StatusError reports a non-success response from the remote oracle. It is a
// distinct class from ParseError so callers can tell "service down" from
// "service returned garbage".
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("extraction: oracle returned status %d: %s", e.StatusCode, e.Detail)
}

// ParseError reports a success response whose body was not usable.
type ParseError struct {
	Raw   string
	cause error
}

func (e *ParseError) Error() string {
	if e.cause == nil {
		return "extraction: oracle response unparseable"
	}
	return fmt.Sprintf("extraction: oracle response unparseable: %v", e.cause)
}

func (e *ParseError) Unwrap() error {
	return e.cause
}
