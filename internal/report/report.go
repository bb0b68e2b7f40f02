package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/FranksOps/dossier/internal/analyst"
	"github.com/FranksOps/dossier/internal/evidence"
)

// Source is one scraped page reference shown to the caller.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// FinalReport is the terminal payload of a successful run.
type FinalReport struct {
	Status         string                    `json:"status"`
	Company        string                    `json:"company"`
	ScrapedSources []Source                  `json:"scraped_sources"`
	TotalSources   int                       `json:"total_sources"`
	FinalAnswer    *analyst.ValidationResult `json:"final_answer"`
	Comparison     *analyst.ComparisonResult `json:"comparison,omitempty"`
	Logo           string                    `json:"logo,omitempty"`
}

// Build assembles the final report from the primary subject's evidence and
// the model results. Sources are deduplicated by URL, keeping first
// occurrence; TotalSources always equals the deduplicated length.
func Build(set *evidence.Set, answer *analyst.ValidationResult, comparison *analyst.ComparisonResult) *FinalReport {
	sources := make([]Source, 0, len(set.Items))
	seen := make(map[string]struct{}, len(set.Items))
	for _, item := range set.Items {
		if _, ok := seen[item.URL]; ok {
			continue
		}
		seen[item.URL] = struct{}{}
		sources = append(sources, Source{Title: item.Domain, URL: item.URL})
	}

	return &FinalReport{
		Status:         "success",
		Company:        set.Subject,
		ScrapedSources: sources,
		TotalSources:   len(sources),
		FinalAnswer:    answer,
		Comparison:     comparison,
		Logo:           set.LogoURL,
	}
}

// WriteJSON writes the report to w with indentation, for CLI and debug use.
func WriteJSON(w io.Writer, r *FinalReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}
