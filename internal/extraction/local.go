package extraction

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

const defaultOCRLanguage = "eng"

// LocalConfig bundles what the local OCR strategy needs.
type LocalConfig struct {
	Binary   string
	Language string
	Logger   *zap.Logger
}

// LocalExtractor shells out to a tesseract binary for text recognition and
// applies positional heuristics over the recognized lines.
type LocalExtractor struct {
	binary   string
	language string
	logger   *zap.Logger
}

// NewLocalExtractor constructs the local strategy.
func NewLocalExtractor(cfg LocalConfig) *LocalExtractor {
	language := strings.TrimSpace(cfg.Language)
	if language == "" {
		language = defaultOCRLanguage
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalExtractor{
		binary:   strings.TrimSpace(cfg.Binary),
		language: language,
		logger:   logger,
	}
}

// Extract recognizes text in the image and derives a guess from it.
func (l *LocalExtractor) Extract(ctx context.Context, img Image, mode Mode) (Guess, error) {
	if l.binary == "" {
		return Guess{}, ErrNotConfigured
	}

	text, err := l.recognize(ctx, img)
	if err != nil {
		return Guess{}, err
	}

	guess := guessFromText(text, mode)
	l.logger.Debug("local extraction finished",
		zap.String("mode", string(mode)),
		zap.String("artist", guess.Artist),
		zap.String("title", guess.Title),
		zap.String("catalog_number", guess.CatalogNumber))
	return guess, nil
}

func (l *LocalExtractor) recognize(ctx context.Context, img Image) (string, error) {
	file, err := os.CreateTemp("", "vinylvision-scan-*"+imageExtension(img.MIME))
	if err != nil {
		return "", err
	}
	defer os.Remove(file.Name())

	if _, err := file.Write(img.Data); err != nil {
		file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, l.binary, file.Name(), "stdout", "-l", l.language) //nolint:gosec
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("extraction: tesseract: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("extraction: tesseract: %w", err)
	}
	return string(output), nil
}

func imageExtension(mime string) string {
	subtype := strings.TrimPrefix(strings.ToLower(mime), "image/")
	switch subtype {
	case "jpeg", "jpg":
		return ".jpg"
	case "webp":
		return ".webp"
	default:
		return ".png"
	}
}
