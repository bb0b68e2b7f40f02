package scraper

import (
	"context"
	"log/slog"
	"sync"

	"github.com/FranksOps/dossier/internal/evidence"
	"golang.org/x/sync/errgroup"
)

// Pool fetches a bounded list of candidate URLs concurrently. Results come
// back in completion order, which is accepted nondeterminism: slow pages
// land later regardless of submission order.
type Pool struct {
	fetcher *Fetcher
	workers int
	logger  *slog.Logger
}

// NewPool creates a pool over the given fetcher. Workers below 1 fall back
// to 5.
func NewPool(fetcher *Fetcher, workers int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{fetcher: fetcher, workers: workers, logger: logger}
}

// FetchAll runs every candidate through the fetcher with bounded
// concurrency and returns the usable evidence items. It returns once every
// submitted fetch has completed or been skipped; per-URL failures only
// produce a skip log.
func (p *Pool) FetchAll(ctx context.Context, candidates []Candidate) []evidence.Item {
	var (
		mu    sync.Mutex
		items []evidence.Item
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for _, cand := range candidates {
		cand := cand
		g.Go(func() error {
			item, ok, reason := p.fetcher.Fetch(gCtx, cand)
			if !ok {
				p.logger.Debug("skipping page", "url", cand.URL, "reason", reason)
				return nil
			}
			mu.Lock()
			items = append(items, item)
			mu.Unlock()
			return nil
		})
	}

	// Workers never return errors; per-URL failures are contained above.
	_ = g.Wait()
	return items
}
