package serp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/FranksOps/dossier/internal/metrics"
	"github.com/FranksOps/dossier/pkg/httpclient"
	"github.com/FranksOps/dossier/pkg/ratelimit"
	"github.com/FranksOps/dossier/pkg/useragent"
	"github.com/PuerkitoBio/goquery"
)

// DefaultEndpoint is the HTML (non-JS) DuckDuckGo frontend.
const DefaultEndpoint = "https://html.duckduckgo.com/html/"

// DuckDuckGoConfig configures the HTML-scrape search provider.
type DuckDuckGoConfig struct {
	Endpoint string
	Client   *httpclient.Client
	UAPool   *useragent.Pool
	// Limiter paces consecutive queries so one run does not hammer the
	// search frontend. Optional.
	Limiter *ratelimit.Limiter
}

// DuckDuckGo implements Provider by scraping the DuckDuckGo HTML frontend.
type DuckDuckGo struct {
	cfg DuckDuckGoConfig
}

// NewDuckDuckGo creates a provider. Endpoint, Client and UAPool fall back to
// usable defaults when unset.
func NewDuckDuckGo(cfg DuckDuckGoConfig) (*DuckDuckGo, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Client == nil {
		client, err := httpclient.New(httpclient.Config{})
		if err != nil {
			return nil, fmt.Errorf("default client: %w", err)
		}
		cfg.Client = client
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	return &DuckDuckGo{cfg: cfg}, nil
}

// Search POSTs the query and parses the result anchors. It returns at most
// limit results, each annotated with its normalized domain. Results whose
// href does not resolve to an http(s) URL are dropped.
func (d *DuckDuckGo) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive: %d", limit)
	}

	if d.cfg.Limiter != nil {
		if err := d.cfg.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", d.cfg.UAPool.GetSequential())

	resp, err := d.cfg.Client.Do(ctx, req)
	if err != nil {
		metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.SearchQueriesTotal.WithLabelValues(fmt.Sprint(resp.StatusCode)).Inc()
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing search HTML: %w", err)
	}

	var results []Result
	doc.Find("a.result__a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			return true
		}
		target := unwrapRedirect(href)
		domain := NormalizeDomain(target)
		if domain == "" {
			return true
		}
		results = append(results, Result{
			URL:    target,
			Title:  strings.TrimSpace(s.Text()),
			Domain: domain,
		})
		return len(results) < limit
	})

	metrics.SearchQueriesTotal.WithLabelValues("ok").Inc()
	return results, nil
}

// unwrapRedirect resolves DuckDuckGo's /l/?uddg=<url> redirect wrapper to the
// real target. Non-wrapped hrefs pass through unchanged; protocol-relative
// hrefs get an https scheme.
func unwrapRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if uddg := u.Query().Get("uddg"); uddg != "" {
		if target, err := url.QueryUnescape(uddg); err == nil {
			return target
		}
	}
	return href
}
