package serp

import (
	"context"
	"net/url"
	"strings"
)

// Result is one candidate link returned by a search provider. Domain is the
// normalized host: lowercased, with any leading "www." stripped.
type Result struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Domain string `json:"domain"`
}

// Provider abstracts a web search backend that returns candidate links for a
// query. Implementations may use scraping, official APIs, or other
// mechanisms. The limit parameter caps the number of results returned.
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// NormalizeDomain lowercases the host of rawURL and strips a leading "www.".
// It returns an empty string if the URL does not parse or has no host.
func NormalizeDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}
