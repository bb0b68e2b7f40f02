package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/FranksOps/dossier/internal/analyst"
	"github.com/FranksOps/dossier/internal/report"
	"github.com/FranksOps/dossier/internal/scraper"
	"github.com/FranksOps/dossier/internal/serp"
	"github.com/FranksOps/dossier/internal/storage"
	"github.com/FranksOps/dossier/internal/stream"
)

// recorder captures emitted events; competitor fan-out emits from several
// goroutines at once.
type recorder struct {
	mu     sync.Mutex
	events []stream.Event
}

func (r *recorder) Emit(ev stream.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []stream.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]stream.Event(nil), r.events...)
}

func (r *recorder) terminals() []stream.Event {
	var out []stream.Event
	for _, ev := range r.snapshot() {
		if ev.Type == stream.KindComplete || ev.Type == stream.KindError {
			out = append(out, ev)
		}
	}
	return out
}

type searchFunc func(ctx context.Context, query string, limit int) ([]serp.Result, error)

func (f searchFunc) Search(ctx context.Context, query string, limit int) ([]serp.Result, error) {
	return f(ctx, query, limit)
}

type fakeValidator struct {
	result *analyst.ValidationResult
	err    error
}

func (v *fakeValidator) Validate(ctx context.Context, req analyst.ValidationRequest) (*analyst.ValidationResult, error) {
	return v.result, v.err
}

type fakeComparator struct {
	mu       sync.Mutex
	received []analyst.CompetitorEvidence
	result   *analyst.ComparisonResult
	err      error
}

func (c *fakeComparator) Compare(ctx context.Context, req analyst.ComparisonRequest) (*analyst.ComparisonResult, error) {
	c.mu.Lock()
	c.received = append([]analyst.CompetitorEvidence(nil), req.Competitors...)
	c.mu.Unlock()
	return c.result, c.err
}

type failingStore struct{}

func (failingStore) UpsertCompany(ctx context.Context, name string) (string, error) {
	return "", errors.New("database unreachable")
}

func (failingStore) SaveEvidence(ctx context.Context, rec *storage.EvidenceRecord) error {
	return errors.New("database unreachable")
}

func (failingStore) ListEvidence(ctx context.Context, filter storage.Filter) ([]*storage.EvidenceRecord, error) {
	return nil, errors.New("database unreachable")
}

func (failingStore) Close() error { return nil }

func pageServer(t *testing.T) *httptest.Server {
	t.Helper()
	body := strings.Repeat("Acme Corp builds industrial widgets and reports steady revenue growth. ", 10)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, "<html><head><title>profile</title></head><body><article><p>%s</p></article></body></html>", body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestPipeline(t *testing.T, search serp.Provider, validator analyst.Validator, comparator analyst.Comparator, store storage.Store) *Pipeline {
	t.Helper()
	fetcher, err := scraper.NewFetcher(scraper.FetchConfig{MinTextLen: 100})
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	p, err := New(Config{}, 3, Deps{
		Search:     search,
		Pool:       scraper.NewPool(fetcher, 3, nil),
		Store:      store,
		Validator:  validator,
		Comparator: comparator,
	})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p
}

func TestRun_NoResults(t *testing.T) {
	search := searchFunc(func(ctx context.Context, query string, limit int) ([]serp.Result, error) {
		return nil, nil
	})
	p := newTestPipeline(t, search, &fakeValidator{result: &analyst.ValidationResult{}}, nil, nil)

	rec := &recorder{}
	p.Run(context.Background(), Request{Company: "Ghost Inc", Requirements: "revenue"}, rec)

	terms := rec.terminals()
	if len(terms) != 1 {
		t.Fatalf("expected exactly one terminal event, got %d", len(terms))
	}
	if terms[0].Type != stream.KindError {
		t.Fatalf("expected error terminal, got %s", terms[0].Type)
	}
	if !strings.Contains(terms[0].Message, "no candidate links") {
		t.Errorf("unexpected error message: %q", terms[0].Message)
	}
}

func TestRun_SkipsBlockedAndFailedSources(t *testing.T) {
	good := pageServer(t)
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer broken.Close()

	search := searchFunc(func(ctx context.Context, query string, limit int) ([]serp.Result, error) {
		return []serp.Result{
			{URL: "https://facebook.com/acme", Title: "Acme", Domain: "facebook.com"},
			{URL: broken.URL, Title: "Acme down", Domain: "broken.example"},
			{URL: good.URL + "/about", Title: "Acme profile", Domain: "acme.com"},
		}, nil
	})
	validator := &fakeValidator{result: &analyst.ValidationResult{
		AnswerFound: true,
		Summary:     "Acme makes widgets.",
	}}
	p := newTestPipeline(t, search, validator, nil, nil)

	rec := &recorder{}
	p.Run(context.Background(), Request{Company: "Acme Corp", Requirements: "what does it do"}, rec)

	terms := rec.terminals()
	if len(terms) != 1 || terms[0].Type != stream.KindComplete {
		t.Fatalf("expected single complete terminal, got %+v", terms)
	}

	final, ok := terms[0].Payload.(*report.FinalReport)
	if !ok {
		t.Fatalf("unexpected payload type %T", terms[0].Payload)
	}
	if final.TotalSources != 1 {
		t.Errorf("expected 1 usable source, got %d", final.TotalSources)
	}
	if final.FinalAnswer == nil || !final.FinalAnswer.AnswerFound {
		t.Error("validation answer missing from report")
	}

	for _, ev := range rec.snapshot() {
		if ev.Type == stream.KindLog && strings.Contains(ev.Message, "facebook.com") {
			t.Error("blocked domain should never be visited")
		}
	}
}

func TestRun_TerminalEventIsLast(t *testing.T) {
	good := pageServer(t)
	search := searchFunc(func(ctx context.Context, query string, limit int) ([]serp.Result, error) {
		return []serp.Result{{URL: good.URL, Title: "p", Domain: "acme.com"}}, nil
	})
	p := newTestPipeline(t, search, &fakeValidator{result: &analyst.ValidationResult{AnswerFound: true}}, nil, nil)

	rec := &recorder{}
	p.Run(context.Background(), Request{Company: "Acme Corp", Requirements: "overview"}, rec)

	events := rec.snapshot()
	if len(events) == 0 {
		t.Fatal("no events emitted")
	}
	last := events[len(events)-1]
	if last.Type != stream.KindComplete {
		t.Errorf("terminal event must come last, got %s", last.Type)
	}
	for _, ev := range events[:len(events)-1] {
		if ev.Type == stream.KindComplete || ev.Type == stream.KindError {
			t.Errorf("terminal event %s emitted before the end", ev.Type)
		}
	}
}

func TestRun_EmitsCollectionResult(t *testing.T) {
	good := pageServer(t)
	search := searchFunc(func(ctx context.Context, query string, limit int) ([]serp.Result, error) {
		return []serp.Result{{URL: good.URL, Title: "p", Domain: "acme.com"}}, nil
	})
	p := newTestPipeline(t, search, &fakeValidator{result: &analyst.ValidationResult{AnswerFound: true}}, nil, nil)

	rec := &recorder{}
	p.Run(context.Background(), Request{Company: "Acme Corp", Requirements: "overview"}, rec)

	events := rec.snapshot()
	var results []stream.Event
	resultIdx := -1
	for i, ev := range events {
		if ev.Type == stream.KindResult {
			results = append(results, ev)
			resultIdx = i
		}
	}
	if len(results) != 1 {
		t.Fatalf("expected one intermediate result event, got %d", len(results))
	}
	if resultIdx == len(events)-1 {
		t.Error("intermediate result must precede the terminal event")
	}

	summary, ok := results[0].Payload.(CollectionSummary)
	if !ok {
		t.Fatalf("unexpected result payload type %T", results[0].Payload)
	}
	if summary.Subject != "Acme Corp" || summary.TotalSources != 1 {
		t.Errorf("unexpected collection summary %+v", summary)
	}
	if len(summary.VisitedDomains) != 1 || summary.VisitedDomains[0] != "acme.com" {
		t.Errorf("unexpected visited domains %v", summary.VisitedDomains)
	}
}

func TestRun_ValidationFailureDegrades(t *testing.T) {
	good := pageServer(t)
	search := searchFunc(func(ctx context.Context, query string, limit int) ([]serp.Result, error) {
		return []serp.Result{{URL: good.URL, Title: "p", Domain: "acme.com"}}, nil
	})
	p := newTestPipeline(t, search, &fakeValidator{err: errors.New("model unavailable")}, nil, nil)

	rec := &recorder{}
	p.Run(context.Background(), Request{Company: "Acme Corp", Requirements: "overview"}, rec)

	terms := rec.terminals()
	if len(terms) != 1 || terms[0].Type != stream.KindComplete {
		t.Fatalf("model failure must not abort the run, got %+v", terms)
	}
	final := terms[0].Payload.(*report.FinalReport)
	if final.FinalAnswer == nil || final.FinalAnswer.Error == "" {
		t.Error("degraded answer should carry the model error")
	}
	if final.FinalAnswer.AnswerFound {
		t.Error("degraded answer must not claim success")
	}
}

func TestRun_CompetitorComparison(t *testing.T) {
	good := pageServer(t)

	var mu sync.Mutex
	domainSeq := 0
	search := searchFunc(func(ctx context.Context, query string, limit int) ([]serp.Result, error) {
		mu.Lock()
		domainSeq++
		domain := fmt.Sprintf("source-%d.com", domainSeq)
		mu.Unlock()
		return []serp.Result{{URL: good.URL + "/" + domain, Title: "p", Domain: domain}}, nil
	})

	validator := &fakeValidator{result: &analyst.ValidationResult{
		AnswerFound: true,
		Summary:     "Acme makes widgets.",
		Competitors: []string{"Globex", "Initech", "Umbrella"},
	}}
	comparator := &fakeComparator{result: &analyst.ComparisonResult{
		MarketPositionSummary: "Acme leads on price.",
	}}
	p := newTestPipeline(t, search, validator, comparator, nil)

	rec := &recorder{}
	p.Run(context.Background(), Request{
		Company:          "Acme Corp",
		Requirements:     "overview",
		EnableComparison: true,
	}, rec)

	terms := rec.terminals()
	if len(terms) != 1 || terms[0].Type != stream.KindComplete {
		t.Fatalf("expected single complete terminal, got %+v", terms)
	}
	final := terms[0].Payload.(*report.FinalReport)
	if final.Comparison == nil {
		t.Fatal("comparison missing from report")
	}
	if final.Comparison.MarketPositionSummary != "Acme leads on price." {
		t.Errorf("unexpected comparison summary %q", final.Comparison.MarketPositionSummary)
	}

	comparator.mu.Lock()
	received := comparator.received
	comparator.mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("competitor list must be capped at 2, comparator saw %d", len(received))
	}
	for _, comp := range received {
		if comp.Name != "Globex" && comp.Name != "Initech" {
			t.Errorf("unexpected competitor %q past the cap", comp.Name)
		}
		if comp.Data == "" {
			t.Errorf("competitor %q reached comparison without evidence", comp.Name)
		}
	}
}

func TestRun_ExplicitCompetitorsOverrideDetection(t *testing.T) {
	good := pageServer(t)
	var mu sync.Mutex
	domainSeq := 0
	search := searchFunc(func(ctx context.Context, query string, limit int) ([]serp.Result, error) {
		mu.Lock()
		domainSeq++
		domain := fmt.Sprintf("src-%d.com", domainSeq)
		mu.Unlock()
		return []serp.Result{{URL: good.URL + "/" + domain, Title: "p", Domain: domain}}, nil
	})

	validator := &fakeValidator{result: &analyst.ValidationResult{
		AnswerFound: true,
		Competitors: []string{"ShouldNotAppear"},
	}}
	comparator := &fakeComparator{result: &analyst.ComparisonResult{}}
	p := newTestPipeline(t, search, validator, comparator, nil)

	rec := &recorder{}
	p.Run(context.Background(), Request{
		Company:          "Acme Corp",
		Requirements:     "overview",
		EnableComparison: true,
		CompetitorNames:  "Globex, Initech",
	}, rec)

	comparator.mu.Lock()
	received := comparator.received
	comparator.mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("expected both named competitors, got %d", len(received))
	}
	for _, comp := range received {
		if comp.Name == "ShouldNotAppear" {
			t.Error("auto-detected competitor used despite explicit list")
		}
	}
}

func TestRun_CompetitorFailureDropsSilently(t *testing.T) {
	good := pageServer(t)
	search := searchFunc(func(ctx context.Context, query string, limit int) ([]serp.Result, error) {
		// Competitor queries find nothing; only the primary subject does.
		if strings.Contains(query, "strengths weaknesses") {
			return nil, nil
		}
		return []serp.Result{{URL: good.URL, Title: "p", Domain: "acme.com"}}, nil
	})

	validator := &fakeValidator{result: &analyst.ValidationResult{AnswerFound: true}}
	comparator := &fakeComparator{result: &analyst.ComparisonResult{}}
	p := newTestPipeline(t, search, validator, comparator, nil)

	rec := &recorder{}
	p.Run(context.Background(), Request{
		Company:          "Acme Corp",
		Requirements:     "overview",
		EnableComparison: true,
		CompetitorNames:  "Globex",
	}, rec)

	terms := rec.terminals()
	if len(terms) != 1 || terms[0].Type != stream.KindComplete {
		t.Fatalf("competitor failure must not abort the run, got %+v", terms)
	}
	final := terms[0].Payload.(*report.FinalReport)
	if final.Comparison != nil {
		t.Error("comparison should be omitted when no competitor produced evidence")
	}

	found := false
	for _, ev := range rec.snapshot() {
		if ev.Type == stream.KindLog && strings.Contains(ev.Message, "no data found for Globex") {
			found = true
		}
	}
	if !found {
		t.Error("missing 'no data found' progress event for the failed competitor")
	}
}

func TestRun_StorageFailureIsNonFatal(t *testing.T) {
	good := pageServer(t)
	search := searchFunc(func(ctx context.Context, query string, limit int) ([]serp.Result, error) {
		return []serp.Result{{URL: good.URL, Title: "p", Domain: "acme.com"}}, nil
	})
	p := newTestPipeline(t, search, &fakeValidator{result: &analyst.ValidationResult{AnswerFound: true}}, nil, failingStore{})

	rec := &recorder{}
	p.Run(context.Background(), Request{Company: "Acme Corp", Requirements: "overview"}, rec)

	terms := rec.terminals()
	if len(terms) != 1 || terms[0].Type != stream.KindComplete {
		t.Fatalf("storage failure must not abort the run, got %+v", terms)
	}

	found := false
	for _, ev := range rec.snapshot() {
		if ev.Type == stream.KindLog && strings.Contains(ev.Message, "db error") {
			found = true
		}
	}
	if !found {
		t.Error("storage failure should surface as a progress event")
	}
}

func TestRun_DedupsVisitedDomains(t *testing.T) {
	good := pageServer(t)
	search := searchFunc(func(ctx context.Context, query string, limit int) ([]serp.Result, error) {
		return []serp.Result{
			{URL: good.URL + "/a", Title: "a", Domain: "acme.com"},
			{URL: good.URL + "/b", Title: "b", Domain: "ACME.com"},
			{URL: good.URL + "/c", Title: "c", Domain: "other.com"},
		}, nil
	})
	p := newTestPipeline(t, search, &fakeValidator{result: &analyst.ValidationResult{AnswerFound: true}}, nil, nil)

	rec := &recorder{}
	p.Run(context.Background(), Request{Company: "Acme Corp", Requirements: "overview"}, rec)

	terms := rec.terminals()
	if len(terms) != 1 || terms[0].Type != stream.KindComplete {
		t.Fatalf("expected complete terminal, got %+v", terms)
	}
	final := terms[0].Payload.(*report.FinalReport)
	if final.TotalSources != 2 {
		t.Errorf("expected domain-level dedup to leave 2 sources, got %d", final.TotalSources)
	}
}
