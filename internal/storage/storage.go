package storage

import (
	"context"
	"time"
)

// Company is the subject record evidence attaches to, keyed by name.
type Company struct {
	ID        string
	Name      string
	LogoURL   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EvidenceRecord is one persisted scrape: the page text plus the requirement
// that prompted the run. The persisted copy outlives the run.
type EvidenceRecord struct {
	ID        string
	CompanyID string
	Prompt    string
	Domain    string
	URL       string
	Text      string
	CreatedAt time.Time
}

// Filter narrows ListEvidence queries.
type Filter struct {
	CompanyID string
	Domain    string
	Since     *time.Time
	Limit     int
}

// Store persists companies and their raw evidence. Implementations
// serialize their own writes; the pipeline issues them sequentially and
// treats any failure as non-fatal.
type Store interface {
	// UpsertCompany creates the company if absent and returns its ID either way.
	UpsertCompany(ctx context.Context, name string) (string, error)
	SaveEvidence(ctx context.Context, rec *EvidenceRecord) error
	ListEvidence(ctx context.Context, filter Filter) ([]*EvidenceRecord, error)
	Close() error
}
