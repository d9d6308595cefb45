package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/vinylvision/backend/internal/remotestore"
)

const (
	envPrefix           = "VINYLVISION"
	defaultHTTPAddress  = "0.0.0.0:8080"
	defaultDatabasePath = "vinylvision.db"
	defaultLogLevel     = "info"
	defaultGeminiModel  = "gemini-2.5-flash"
	defaultExtractor    = ExtractorGemini
	defaultTesseractBin = "tesseract"
)

// Extractor strategies selectable at runtime.
const (
	ExtractorGemini    = "gemini"
	ExtractorTesseract = "tesseract"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress  string
	DatabasePath string
	LogLevel     string

	DiscogsToken string

	Extractor       string
	GeminiAPIKey    string
	GeminiModel     string
	TesseractBinary string

	SupabaseURL         string
	SupabaseAnonKey     string
	SupabaseColumnStyle remotestore.ColumnStyle
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("extractor", defaultExtractor)
	configViper.SetDefault("gemini.model", defaultGeminiModel)
	configViper.SetDefault("tesseract.binary", defaultTesseractBin)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:     configViper.GetString("http.address"),
		DatabasePath:    configViper.GetString("database.path"),
		LogLevel:        configViper.GetString("log.level"),
		DiscogsToken:    configViper.GetString("discogs.token"),
		Extractor:       configViper.GetString("extractor"),
		GeminiAPIKey:    configViper.GetString("gemini.api_key"),
		GeminiModel:     configViper.GetString("gemini.model"),
		TesseractBinary: configViper.GetString("tesseract.binary"),
		SupabaseURL:     configViper.GetString("supabase.url"),
		SupabaseAnonKey: configViper.GetString("supabase.anon_key"),
	}

	style, err := remotestore.ParseColumnStyle(configViper.GetString("supabase.column_style"))
	if err != nil {
		return AppConfig{}, err
	}
	cfg.SupabaseColumnStyle = style

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	switch c.Extractor {
	case ExtractorGemini, ExtractorTesseract:
	default:
		return fmt.Errorf("extractor must be %q or %q, got %q",
			ExtractorGemini, ExtractorTesseract, c.Extractor)
	}
	// A Supabase URL without its key (or the reverse) is a misconfiguration,
	// not an unconfigured remote.
	hasURL := strings.TrimSpace(c.SupabaseURL) != ""
	hasKey := strings.TrimSpace(c.SupabaseAnonKey) != ""
	if hasURL != hasKey {
		return fmt.Errorf("supabase.url and supabase.anon_key must be set together")
	}
	return nil
}
