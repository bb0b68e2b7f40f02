// Package pipeline drives a research run end to end: query planning, link
// discovery, concurrent page collection, evidence persistence, model
// validation, optional competitor fan-out and comparison, and final report
// assembly. Progress is streamed to the caller as it happens; every run
// terminates in exactly one complete or error event.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/FranksOps/dossier/internal/analyst"
	"github.com/FranksOps/dossier/internal/evidence"
	"github.com/FranksOps/dossier/internal/logo"
	"github.com/FranksOps/dossier/internal/metrics"
	"github.com/FranksOps/dossier/internal/planner"
	"github.com/FranksOps/dossier/internal/report"
	"github.com/FranksOps/dossier/internal/scraper"
	"github.com/FranksOps/dossier/internal/serp"
	"github.com/FranksOps/dossier/internal/sieve"
	"github.com/FranksOps/dossier/internal/storage"
	"github.com/FranksOps/dossier/internal/stream"
	"golang.org/x/sync/errgroup"
)

// competitorRequirement is the fixed lite-mode requirement used for every
// competitor sub-pipeline.
const competitorRequirement = "official corporate profile facts strengths weaknesses market position"

// CollectionSummary is the intermediate result event payload emitted once
// the primary subject's evidence has been gathered, before validation
// starts. It carries the evidence shape, not the raw texts.
type CollectionSummary struct {
	Subject        string   `json:"subject"`
	VisitedDomains []string `json:"visited_domains"`
	TotalSources   int      `json:"total_sources"`
	Logo           string   `json:"logo,omitempty"`
}

// Request is one research job as submitted by the caller.
type Request struct {
	Company          string
	Requirements     string
	EnableComparison bool
	// CompetitorNames is an optional comma-separated list overriding the
	// competitors auto-detected by validation.
	CompetitorNames string
}

// Config carries the run bounds. All of these are policy knobs surfaced
// through the config package.
type Config struct {
	ResultsPerQuery   int
	ScanLimit         int
	ScanLimitLite     int
	MaxCompetitors    int
	CompetitorWorkers int
	SourcesPerBlob    int
}

// Deps are the collaborators a Pipeline drives. Search, Pool and Validator
// are required; Store, Comparator and Logos are optional and their absence
// only disables the corresponding stage.
type Deps struct {
	Search     serp.Provider
	Filter     *sieve.Filter
	Pool       *scraper.Pool
	Store      storage.Store
	Validator  analyst.Validator
	Comparator analyst.Comparator
	Logos      *logo.Lookup
	Logger     *slog.Logger
}

// Pipeline coordinates one subject's research stages. It is safe for
// concurrent Runs; all per-run state lives on the stack.
type Pipeline struct {
	cfg     Config
	planner *planner.Planner
	deps    Deps
}

// New validates the required collaborators and returns a Pipeline.
func New(cfg Config, maxTopics int, deps Deps) (*Pipeline, error) {
	if deps.Search == nil {
		return nil, fmt.Errorf("search provider is required")
	}
	if deps.Pool == nil {
		return nil, fmt.Errorf("fetcher pool is required")
	}
	if deps.Validator == nil {
		return nil, fmt.Errorf("validator is required")
	}
	if deps.Filter == nil {
		deps.Filter = sieve.New(nil)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	applyConfigDefaults(&cfg)
	return &Pipeline{cfg: cfg, planner: planner.New(maxTopics), deps: deps}, nil
}

func applyConfigDefaults(cfg *Config) {
	if cfg.ResultsPerQuery <= 0 {
		cfg.ResultsPerQuery = 4
	}
	if cfg.ScanLimit <= 0 {
		cfg.ScanLimit = 6
	}
	if cfg.ScanLimitLite <= 0 {
		cfg.ScanLimitLite = 3
	}
	if cfg.MaxCompetitors <= 0 {
		cfg.MaxCompetitors = 2
	}
	if cfg.CompetitorWorkers <= 0 {
		cfg.CompetitorWorkers = 3
	}
	if cfg.SourcesPerBlob <= 0 {
		cfg.SourcesPerBlob = 2
	}
}

// Run executes the full pipeline for one request, streaming progress to
// emit. It always delivers exactly one terminal event: complete on success,
// error otherwise. Panics anywhere in the run surface as the terminal error
// event rather than a dangling stream.
func (p *Pipeline) Run(ctx context.Context, req Request, emit stream.Emitter) {
	start := time.Now()
	terminated := false

	defer func() {
		if r := recover(); r != nil {
			p.deps.Logger.Error("run panicked", "company", req.Company, "panic", r)
			if !terminated {
				emit.Emit(stream.Error(fmt.Sprintf("internal error: %v", r)))
				metrics.RecordRun("error", time.Since(start))
			}
		}
	}()

	final, err := p.run(ctx, req, emit)
	terminated = true
	if err != nil {
		p.deps.Logger.Warn("run failed", "company", req.Company, "err", err)
		emit.Emit(stream.Error(err.Error()))
		metrics.RecordRun("error", time.Since(start))
		return
	}

	emit.Emit(stream.Complete(final))
	metrics.RecordRun("success", time.Since(start))
}

func (p *Pipeline) run(ctx context.Context, req Request, emit stream.Emitter) (*report.FinalReport, error) {
	emit.Emit(stream.Log(fmt.Sprintf("analyzing requirements for %s", req.Company)))

	set, err := p.collect(ctx, req.Company, req.Requirements, planner.ModeFull, true, emit)
	if err != nil {
		return nil, err
	}
	emit.Emit(stream.Result(CollectionSummary{
		Subject:        set.Subject,
		VisitedDomains: set.VisitedDomains,
		TotalSources:   len(set.Items),
		Logo:           set.LogoURL,
	}))

	p.persist(ctx, req, set, emit)

	emit.Emit(stream.Log(fmt.Sprintf("validating %d sources", len(set.Items))))
	answer, err := p.deps.Validator.Validate(ctx, analyst.ValidationRequest{
		Subject:     req.Company,
		Requirement: req.Requirements,
		SourceTexts: set.Texts(),
	})
	if err != nil {
		emit.Emit(stream.Log(fmt.Sprintf("validation failed: %v", err)))
		answer = analyst.Degraded(err)
	}

	var comparison *analyst.ComparisonResult
	if req.EnableComparison {
		comparison = p.compareCompetitors(ctx, req, answer, emit)
	}

	emit.Emit(stream.Log("finalizing"))
	return report.Build(set, answer, comparison), nil
}

// collect runs Planning, Discovery and Collection for one subject. The
// visited-domain set is mutated only here, between pool invocations, never
// inside workers.
func (p *Pipeline) collect(ctx context.Context, subject, requirement string, mode planner.Mode, wantLogo bool, emit stream.Emitter) (*evidence.Set, error) {
	queries := p.planner.Plan(subject, requirement, mode)

	scanLimit := p.cfg.ScanLimit
	if mode == planner.ModeLite {
		scanLimit = p.cfg.ScanLimitLite
	}

	visited := make(map[string]struct{})
	var candidates []scraper.Candidate
	officialURL := ""

	for _, query := range queries {
		if len(candidates) >= scanLimit {
			break
		}
		emit.Emit(stream.Log(fmt.Sprintf("searching: %s", query)))

		results, err := p.deps.Search.Search(ctx, query, p.cfg.ResultsPerQuery)
		if err != nil {
			// One failed query is not fatal; the next may still land.
			p.deps.Logger.Warn("search failed", "query", query, "err", err)
			emit.Emit(stream.Log(fmt.Sprintf("search failed, moving on: %v", err)))
			continue
		}

		for _, res := range results {
			if len(candidates) >= scanLimit {
				break
			}
			if p.deps.Filter.Check(res.Domain, visited) != sieve.Accept {
				continue
			}
			visited[strings.ToLower(res.Domain)] = struct{}{}
			if officialURL == "" && sieve.IsOfficialCandidate(res.Domain) {
				officialURL = res.URL
			}
			emit.Emit(stream.Log(fmt.Sprintf("visiting: %s", res.Domain)))
			candidates = append(candidates, scraper.Candidate{URL: res.URL, Domain: res.Domain})
		}
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("%s: %w", subject, ErrNoResults)
	}

	items := p.deps.Pool.FetchAll(ctx, candidates)
	if len(items) == 0 {
		return nil, fmt.Errorf("%s: %w", subject, ErrNoEvidence)
	}

	set := evidence.Collect(subject, items)
	if wantLogo && p.deps.Logos != nil {
		set.LogoURL = p.deps.Logos.Resolve(ctx, subject, officialURL)
	}
	return set, nil
}

// persist hands the collected evidence to the store. Storage failure is
// logged and otherwise ignored: the evidence is already in memory for the
// validation stage.
func (p *Pipeline) persist(ctx context.Context, req Request, set *evidence.Set, emit stream.Emitter) {
	if p.deps.Store == nil {
		return
	}

	emit.Emit(stream.Log("saving sources"))

	companyID, err := p.deps.Store.UpsertCompany(ctx, req.Company)
	if err != nil {
		p.deps.Logger.Error("company upsert failed", "company", req.Company, "err", err)
		emit.Emit(stream.Log(fmt.Sprintf("db error: %v", err)))
		return
	}

	for _, item := range set.Items {
		rec := &storage.EvidenceRecord{
			CompanyID: companyID,
			Prompt:    req.Requirements,
			Domain:    item.Domain,
			URL:       item.URL,
			Text:      item.Text,
		}
		if err := p.deps.Store.SaveEvidence(ctx, rec); err != nil {
			p.deps.Logger.Error("evidence save failed", "url", item.URL, "err", err)
			emit.Emit(stream.Log(fmt.Sprintf("db error: %v", err)))
		}
	}
}

// compareCompetitors resolves the competitor list, runs a lite sub-pipeline
// per competitor concurrently, and invokes the comparison model over
// whatever evidence the fan-out produced. Every failure path here degrades
// to a log line; comparison never fails the run.
func (p *Pipeline) compareCompetitors(ctx context.Context, req Request, answer *analyst.ValidationResult, emit stream.Emitter) *analyst.ComparisonResult {
	names := planner.SplitCompetitors(req.CompetitorNames)
	if len(names) == 0 {
		if names = answer.CompetitorNames(); len(names) > 0 {
			emit.Emit(stream.Log(fmt.Sprintf("auto-detected competitors: %s", strings.Join(names, ", "))))
		}
	}
	if len(names) > p.cfg.MaxCompetitors {
		names = names[:p.cfg.MaxCompetitors]
	}
	if len(names) == 0 {
		return nil
	}
	if p.deps.Comparator == nil {
		p.deps.Logger.Warn("comparison requested but no comparator configured")
		return nil
	}

	emit.Emit(stream.Log(fmt.Sprintf("researching %d competitors in parallel", len(names))))

	var (
		mu          sync.Mutex
		competitors []analyst.CompetitorEvidence
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.CompetitorWorkers)

	for _, name := range names {
		name := name
		g.Go(func() error {
			set, err := p.collect(gCtx, name, competitorRequirement, planner.ModeLite, false, emit)
			if err != nil {
				// Dropped silently from the fan-out; only worth a log line.
				emit.Emit(stream.Log(fmt.Sprintf("no data found for %s", name)))
				return nil
			}
			blob := set.Blob(p.cfg.SourcesPerBlob)
			if blob == "" {
				emit.Emit(stream.Log(fmt.Sprintf("no data found for %s", name)))
				return nil
			}
			mu.Lock()
			competitors = append(competitors, analyst.CompetitorEvidence{Name: name, Data: blob})
			mu.Unlock()
			emit.Emit(stream.Log(fmt.Sprintf("data fetched for %s", name)))
			return nil
		})
	}
	_ = g.Wait()

	if len(competitors) == 0 {
		return nil
	}

	result, err := p.deps.Comparator.Compare(ctx, analyst.ComparisonRequest{
		Subject:     req.Company,
		Primary:     answer,
		Competitors: competitors,
	})
	if err != nil {
		p.deps.Logger.Warn("comparison failed", "company", req.Company, "err", err)
		emit.Emit(stream.Log(fmt.Sprintf("comparison failed: %v", err)))
		return nil
	}
	return result
}
