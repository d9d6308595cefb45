package config

import (
	"testing"

	"github.com/vinylvision/backend/internal/remotestore"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddress != "0.0.0.0:8080" {
		t.Fatalf("unexpected http address: %q", cfg.HTTPAddress)
	}
	if cfg.DatabasePath != "vinylvision.db" {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath)
	}
	if cfg.Extractor != ExtractorGemini {
		t.Fatalf("unexpected extractor: %q", cfg.Extractor)
	}
	if cfg.GeminiModel != "gemini-2.5-flash" {
		t.Fatalf("unexpected model: %q", cfg.GeminiModel)
	}
	if cfg.SupabaseColumnStyle != "" {
		t.Fatalf("column style must be unset by default, got %q", cfg.SupabaseColumnStyle)
	}
}

func TestLoadParsesColumnStyle(t *testing.T) {
	configViper := NewViper()
	configViper.Set("supabase.column_style", "camel")
	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SupabaseColumnStyle != remotestore.StyleCamel {
		t.Fatalf("unexpected column style: %q", cfg.SupabaseColumnStyle)
	}
}

func TestLoadRejectsUnknownColumnStyle(t *testing.T) {
	configViper := NewViper()
	configViper.Set("supabase.column_style", "kebab")
	if _, err := Load(configViper); err == nil {
		t.Fatalf("expected column style error")
	}
}

func TestLoadRejectsUnknownExtractor(t *testing.T) {
	configViper := NewViper()
	configViper.Set("extractor", "ocropus")
	if _, err := Load(configViper); err == nil {
		t.Fatalf("expected extractor error")
	}
}

func TestLoadRejectsPartialSupabaseConfig(t *testing.T) {
	configViper := NewViper()
	configViper.Set("supabase.url", "https://example.supabase.co")
	if _, err := Load(configViper); err == nil {
		t.Fatalf("expected error for url without key")
	}
}
