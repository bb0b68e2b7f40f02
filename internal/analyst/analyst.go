// Package analyst wraps the external text-generation service behind two
// narrow collaborator interfaces: validation of scraped evidence and
// competitive comparison. Model output is validated at this boundary and
// degraded to an error-shaped result on schema mismatch, so malformed data
// never propagates into the pipeline.
package analyst

import (
	"context"
	"encoding/json"
	"fmt"
)

// ValidationRequest carries one subject's evidence to the validation model.
type ValidationRequest struct {
	Subject     string
	Requirement string
	SourceTexts []string
}

// ValidationResult is the structured answer extracted from the evidence.
// The pipeline reads Competitors (or ExtractedData["Competitors"]) and
// passes the rest through to the final payload untouched.
type ValidationResult struct {
	AnswerFound   bool           `json:"answer_found"`
	Summary       string         `json:"summary,omitempty"`
	ExtractedData map[string]any `json:"extracted_data,omitempty"`
	Competitors   []string       `json:"competitors_list,omitempty"`
	Confidence    string         `json:"confidence_score,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// CompetitorNames returns the competitor list the model identified,
// preferring the dedicated field and falling back to the Competitors key
// inside extracted_data.
func (r *ValidationResult) CompetitorNames() []string {
	if r == nil {
		return nil
	}
	if len(r.Competitors) > 0 {
		return r.Competitors
	}
	raw, ok := r.ExtractedData["Competitors"]
	if !ok {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	var names []string
	for _, v := range list {
		if s, ok := v.(string); ok && s != "" {
			names = append(names, s)
		}
	}
	return names
}

// CompetitorEvidence is one competitor's aggregated evidence blob.
type CompetitorEvidence struct {
	Name string `json:"name"`
	Data string `json:"data"`
}

// ComparisonRequest carries the primary subject's validated result and the
// per-competitor evidence to the comparison model.
type ComparisonRequest struct {
	Subject     string
	Primary     *ValidationResult
	Competitors []CompetitorEvidence
}

// ComparisonResult is the side-by-side analysis returned by the comparison
// model, passed through to the final payload unchanged.
type ComparisonResult struct {
	SWOTTable             []map[string]string `json:"swot_table,omitempty"`
	MarketPositionSummary string              `json:"market_position_summary,omitempty"`
	Error                 string              `json:"error,omitempty"`
}

// Validator answers a requirement from scraped evidence.
type Validator interface {
	Validate(ctx context.Context, req ValidationRequest) (*ValidationResult, error)
}

// Comparator compares the primary subject against competitor evidence.
type Comparator interface {
	Compare(ctx context.Context, req ComparisonRequest) (*ComparisonResult, error)
}

// Degraded builds the ValidationResult used when the validation call fails:
// answer_found=false with the failure message, so the run can still finish.
func Degraded(err error) *ValidationResult {
	return &ValidationResult{AnswerFound: false, Error: err.Error()}
}

// DecodeValidation parses model output into a ValidationResult, failing
// closed: undecodable output becomes a degraded result, never an exported
// parse error.
func DecodeValidation(data []byte) *ValidationResult {
	var res ValidationResult
	if err := json.Unmarshal(data, &res); err != nil {
		return Degraded(fmt.Errorf("malformed model output: %w", err))
	}
	return &res
}

// DecodeComparison parses model output into a ComparisonResult. Output that
// does not match the schema is an error; the pipeline treats comparison
// failure as non-fatal and omits the section.
func DecodeComparison(data []byte) (*ComparisonResult, error) {
	var res ComparisonResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("malformed model output: %w", err)
	}
	if res.Error != "" {
		return nil, fmt.Errorf("comparison model error: %s", res.Error)
	}
	return &res, nil
}
