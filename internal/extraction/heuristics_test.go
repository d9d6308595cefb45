package extraction

import "testing"

func TestFindCatalogNumber(t *testing.T) {
	tokens := textTokens("PINK FLOYD\nTHE DARK SIDE OF THE MOON\nSHVL-804")
	if got := findCatalogNumber(tokens); got != "SHVL-804" {
		t.Fatalf("findCatalogNumber = %q, want SHVL-804", got)
	}

	// Letters-only and digits-only tokens are not catalog numbers.
	if got := findCatalogNumber([]string{"HARVEST", "1973", "AB"}); got != "" {
		t.Fatalf("expected no catalog number, got %q", got)
	}
}

func TestGuessFromTextCoverMode(t *testing.T) {
	text := "Pink Floyd\nThe Dark Side\nof the Moon\nHarvest Records"
	guess := guessFromText(text, ModeCover)

	if guess.Artist != "Pink Floyd" {
		t.Fatalf("artist = %q, want Pink Floyd", guess.Artist)
	}
	if guess.Title != "The Dark Side of the Moon" {
		t.Fatalf("title = %q, want lines two and three joined", guess.Title)
	}
}

func TestGuessFromTextSpineModeSplitsOnSeparator(t *testing.T) {
	guess := guessFromText("DAFT PUNK - DISCOVERY  V2940", ModeSpine)

	if guess.Artist != "DAFT PUNK" {
		t.Fatalf("artist = %q, want DAFT PUNK", guess.Artist)
	}
	if guess.Title != "DISCOVERY V2940" {
		t.Fatalf("title = %q, want DISCOVERY V2940", guess.Title)
	}
	if guess.CatalogNumber != "V2940" {
		t.Fatalf("catalog number = %q, want V2940", guess.CatalogNumber)
	}
}

func TestGuessFromTextEmpty(t *testing.T) {
	guess := guessFromText("   \n  ", ModeCover)
	if !guess.Empty() {
		t.Fatalf("expected empty guess, got %+v", guess)
	}
}

func TestParseDataURL(t *testing.T) {
	img, err := ParseDataURL("data:image/png;base64,aGVsbG8=")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.MIME != "image/png" {
		t.Fatalf("mime = %q, want image/png", img.MIME)
	}
	if string(img.Data) != "hello" {
		t.Fatalf("data = %q, want hello", img.Data)
	}

	if _, err := ParseDataURL("https://example.com/cover.png"); err == nil {
		t.Fatalf("expected plain URLs to be rejected")
	}
	if _, err := ParseDataURL("data:image/png;base64,!!!"); err == nil {
		t.Fatalf("expected invalid base64 payload to be rejected")
	}
}

func TestParseMode(t *testing.T) {
	if mode, err := ParseMode("spine"); err != nil || mode != ModeSpine {
		t.Fatalf("ParseMode(spine) = %v, %v", mode, err)
	}
	if mode, err := ParseMode(""); err != nil || mode != ModeCover {
		t.Fatalf("ParseMode empty should default to cover, got %v, %v", mode, err)
	}
	if _, err := ParseMode("sideways"); err == nil {
		t.Fatalf("expected unknown mode to fail")
	}
}
