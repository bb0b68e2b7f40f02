package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/FranksOps/dossier/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresStore implements storage.Store
var _ storage.Store = (*postgresStore)(nil)

type postgresStore struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS companies (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	logo_url TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS evidence (
	id TEXT PRIMARY KEY,
	company_id TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	prompt TEXT NOT NULL,
	domain TEXT NOT NULL,
	url TEXT NOT NULL,
	raw_text TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_evidence_company ON evidence(company_id);
`

// New creates a Postgres-backed storage.Store.
func New(ctx context.Context, dsn string) (storage.Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &postgresStore{pool: pool}, nil
}

func (s *postgresStore) UpsertCompany(ctx context.Context, name string) (string, error) {
	now := time.Now().UTC()
	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO companies (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (name) DO UPDATE SET updated_at = EXCLUDED.updated_at
		RETURNING id
	`, uuid.New().String(), name, now).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upserting company: %w", err)
	}
	return id, nil
}

func (s *postgresStore) SaveEvidence(ctx context.Context, rec *storage.EvidenceRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO evidence (id, company_id, prompt, domain, url, raw_text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, rec.CompanyID, rec.Prompt, rec.Domain, rec.URL, rec.Text, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving evidence: %w", err)
	}
	return nil
}

func (s *postgresStore) ListEvidence(ctx context.Context, filter storage.Filter) ([]*storage.EvidenceRecord, error) {
	query := `SELECT id, company_id, prompt, domain, url, raw_text, created_at FROM evidence WHERE 1=1`
	args := []any{}
	n := 1

	if filter.CompanyID != "" {
		query += fmt.Sprintf(` AND company_id = $%d`, n)
		args = append(args, filter.CompanyID)
		n++
	}
	if filter.Domain != "" {
		query += fmt.Sprintf(` AND domain = $%d`, n)
		args = append(args, filter.Domain)
		n++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, n)
		args = append(args, *filter.Since)
		n++
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, n)
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying evidence: %w", err)
	}
	defer rows.Close()

	var records []*storage.EvidenceRecord
	for rows.Next() {
		var r storage.EvidenceRecord
		if err := rows.Scan(&r.ID, &r.CompanyID, &r.Prompt, &r.Domain, &r.URL, &r.Text, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning evidence row: %w", err)
		}
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating evidence rows: %w", err)
	}

	return records, nil
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}
