package scraper

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

var reWhitespace = regexp.MustCompile(`\s+`)

// ExtractText pulls the main readable text out of an HTML page. Readability
// isolates the article body; goquery then flattens the remaining markup to
// plain text. Boilerplate-heavy pages that readability cannot parse fall
// back to the raw document text.
func ExtractText(body []byte, pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parsing page URL: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return normalize(article.TextContent), nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}
	doc.Find("script, style, noscript").Remove()
	return normalize(doc.Text()), nil
}

func normalize(text string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(text, " "))
}

// Truncate caps text at max bytes, backing up to the nearest rune boundary
// so the cut never leaves an invalid UTF-8 tail. Non-positive max leaves the
// text unchanged.
func Truncate(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	for max > 0 && !utf8.RuneStart(text[max]) {
		max--
	}
	return text[:max]
}
