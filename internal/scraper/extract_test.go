package scraper

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestExtractText_Readability(t *testing.T) {
	page := `<html><head><title>Acme</title></head><body>
	<nav>Home About Contact</nav>
	<article>
	<h1>Acme Corporation</h1>
	<p>Acme Corporation is a manufacturer of industrial equipment founded in 1947.
	The company employs over three thousand people across twelve countries and is
	headquartered in Springfield. Its flagship product line covers anvils, rockets
	and portable holes, sold through a global network of distributors.</p>
	</article>
	</body></html>`

	text, err := ExtractText([]byte(page), "https://acme.com/about")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(text, "industrial equipment") {
		t.Errorf("expected article text, got %q", text)
	}
	if strings.Contains(text, "<p>") {
		t.Error("markup leaked into extracted text")
	}
}

func TestExtractText_NormalizesWhitespace(t *testing.T) {
	page := "<html><body><article><p>line one\n\n\n   line\ttwo</p></article></body></html>"

	text, err := ExtractText([]byte(page), "https://example.com")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if strings.Contains(text, "\n") || strings.Contains(text, "  ") {
		t.Errorf("whitespace not normalized: %q", text)
	}
}

func TestExtractText_BadURL(t *testing.T) {
	if _, err := ExtractText([]byte("<html></html>"), "://bad"); err == nil {
		t.Fatal("expected error for unparsable URL")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		text string
		max  int
		want string
	}{
		{"hello world", 5, "hello"},
		{"hello", 10, "hello"},
		{"hello", 0, "hello"},
		{"hello", -1, "hello"},
		// The cut backs up rather than splitting a multibyte rune.
		{"abécd", 3, "ab"},
		{"日本語", 4, "日"},
	}
	for _, tt := range tests {
		got := Truncate(tt.text, tt.max)
		if got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.text, tt.max, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("Truncate(%q, %d) produced invalid UTF-8", tt.text, tt.max)
		}
	}
}
