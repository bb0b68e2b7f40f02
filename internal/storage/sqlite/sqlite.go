package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/FranksOps/dossier/internal/storage"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ensure sqliteStore implements storage.Store
var _ storage.Store = (*sqliteStore)(nil)

type sqliteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS companies (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	logo_url TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS evidence (
	id TEXT PRIMARY KEY,
	company_id TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	prompt TEXT NOT NULL,
	domain TEXT NOT NULL,
	url TEXT NOT NULL,
	raw_text TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_evidence_company ON evidence(company_id);
`

// New creates a SQLite-backed storage.Store. The dsn is a file path or
// ":memory:".
func New(dsn string) (storage.Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) UpsertCompany(ctx context.Context, name string) (string, error) {
	now := time.Now().UTC()
	var id string

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO companies (id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET updated_at = excluded.updated_at
		RETURNING id
	`, uuid.New().String(), name, now, now).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upserting company: %w", err)
	}
	return id, nil
}

func (s *sqliteStore) SaveEvidence(ctx context.Context, rec *storage.EvidenceRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO evidence (id, company_id, prompt, domain, url, raw_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.CompanyID, rec.Prompt, rec.Domain, rec.URL, rec.Text, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving evidence: %w", err)
	}
	return nil
}

func (s *sqliteStore) ListEvidence(ctx context.Context, filter storage.Filter) ([]*storage.EvidenceRecord, error) {
	query := `SELECT id, company_id, prompt, domain, url, raw_text, created_at FROM evidence WHERE 1=1`
	args := []any{}

	if filter.CompanyID != "" {
		query += ` AND company_id = ?`
		args = append(args, filter.CompanyID)
	}
	if filter.Domain != "" {
		query += ` AND domain = ?`
		args = append(args, filter.Domain)
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, *filter.Since)
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
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

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
