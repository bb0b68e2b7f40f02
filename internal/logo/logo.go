// Package logo resolves a best-effort logo URL for a company. Failures are
// never surfaced; callers get an empty string when nothing can be found.
package logo

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/FranksOps/dossier/internal/serp"
	"github.com/FranksOps/dossier/pkg/httpclient"
)

const (
	defaultClearbitBase = "https://logo.clearbit.com"
	defaultFaviconBase  = "https://www.google.com/s2/favicons"
	probeTimeout        = 1500 * time.Millisecond
)

// Config configures a Lookup. The base URLs are overridable for tests.
type Config struct {
	Client       *httpclient.Client
	ClearbitBase string
	FaviconBase  string
}

// Lookup probes a high-quality logo API first and falls back to a favicon
// service that always resolves.
type Lookup struct {
	cfg Config
}

// New creates a Lookup with defaults for unset fields.
func New(cfg Config) (*Lookup, error) {
	if cfg.ClearbitBase == "" {
		cfg.ClearbitBase = defaultClearbitBase
	}
	if cfg.FaviconBase == "" {
		cfg.FaviconBase = defaultFaviconBase
	}
	if cfg.Client == nil {
		client, err := httpclient.New(httpclient.Config{Timeout: probeTimeout})
		if err != nil {
			return nil, fmt.Errorf("default client: %w", err)
		}
		cfg.Client = client
	}
	return &Lookup{cfg: cfg}, nil
}

// Resolve returns a logo URL for the company. homepageURL is the official
// domain hint discovered during search; when absent the domain is guessed
// from the company name. An empty return means no logo.
func (l *Lookup) Resolve(ctx context.Context, companyName, homepageURL string) string {
	domain := ""
	if homepageURL != "" {
		domain = serp.NormalizeDomain(homepageURL)
	}
	if domain == "" && companyName != "" {
		domain = strings.ToLower(strings.ReplaceAll(companyName, " ", "")) + ".com"
	}
	if domain == "" {
		return ""
	}

	clearbitURL := fmt.Sprintf("%s/%s", l.cfg.ClearbitBase, domain)
	if resp, err := l.cfg.Client.Head(ctx, clearbitURL, probeTimeout); err == nil && resp.StatusCode == http.StatusOK {
		return clearbitURL
	}

	return fmt.Sprintf("%s?domain=%s&sz=128", l.cfg.FaviconBase, domain)
}
