package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/FranksOps/dossier/internal/evidence"
	"github.com/FranksOps/dossier/internal/metrics"
	"github.com/FranksOps/dossier/pkg/httpclient"
	"github.com/FranksOps/dossier/pkg/useragent"
)

// maxBodyBytes caps how much of a response body is read before extraction.
const maxBodyBytes = 2 << 20

// FetchConfig configures a Fetcher.
type FetchConfig struct {
	Timeout    time.Duration
	MinTextLen int
	MaxTextLen int
	UAPool     *useragent.Pool
	Client     *httpclient.Client
	Detectors  []Detector
}

// Candidate is one URL queued for fetching, with its normalized domain.
type Candidate struct {
	URL    string
	Domain string
}

// Fetcher downloads one page and extracts its readable text. Per-URL
// failures are reported as a skip reason, never as an error that could
// abort a run.
type Fetcher struct {
	cfg FetchConfig
}

// NewFetcher initializes a Fetcher, filling in defaults for any unset
// config field.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MinTextLen <= 0 {
		cfg.MinTextLen = 300
	}
	if cfg.MaxTextLen <= 0 {
		cfg.MaxTextLen = 15000
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if cfg.Client == nil {
		client, err := httpclient.New(httpclient.Config{Timeout: cfg.Timeout})
		if err != nil {
			return nil, fmt.Errorf("default client: %w", err)
		}
		cfg.Client = client
	}
	if cfg.Detectors == nil {
		cfg.Detectors = DefaultDetectors(cfg.MinTextLen)
	}
	return &Fetcher{cfg: cfg}, nil
}

// Fetch downloads the candidate URL and extracts its text. On success it
// returns the evidence item and ok=true; otherwise ok=false and a short
// skip reason.
func (f *Fetcher) Fetch(ctx context.Context, cand Candidate) (evidence.Item, bool, string) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cand.URL, nil)
	if err != nil {
		return f.skip(cand, start, fmt.Sprintf("bad url: %v", err))
	}
	req.Header.Set("User-Agent", f.cfg.UAPool.GetSequential())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.cfg.Client.Do(ctx, req)
	if err != nil {
		return f.skip(cand, start, fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return f.skip(cand, start, fmt.Sprintf("status %d", resp.StatusCode))
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(strings.ToLower(ct), "html") {
		return f.skip(cand, start, fmt.Sprintf("content type %s", ct))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return f.skip(cand, start, fmt.Sprintf("reading body: %v", err))
	}

	text, err := ExtractText(body, cand.URL)
	if err != nil {
		return f.skip(cand, start, fmt.Sprintf("extraction failed: %v", err))
	}

	if skip, reason := ShouldSkip(text, f.cfg.Detectors); skip {
		return f.skip(cand, start, reason)
	}

	metrics.RecordFetch(cand.Domain, "ok", time.Since(start))
	return evidence.Item{
		Domain: cand.Domain,
		URL:    cand.URL,
		Text:   Truncate(text, f.cfg.MaxTextLen),
	}, true, ""
}

func (f *Fetcher) skip(cand Candidate, start time.Time, reason string) (evidence.Item, bool, string) {
	metrics.RecordFetch(cand.Domain, "skip", time.Since(start))
	return evidence.Item{}, false, reason
}
