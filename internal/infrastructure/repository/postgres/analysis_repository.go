package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/document-analyzer/internal/core/domain"
)

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func (r *AnalysisRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	content TEXT NOT NULL,
	source_key TEXT NOT NULL DEFAULT '',
	page_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_owner_created_at ON documents(owner_id, created_at DESC);

CREATE TABLE IF NOT EXISTS analyses (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id),
	user_prompt TEXT,
	status TEXT NOT NULL CHECK (status IN ('final', 'discarded')),
	prompt_version TEXT NOT NULL,
	result JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_document_created_at ON analyses(document_id, created_at DESC);

-- At most one live analysis per document.
CREATE UNIQUE INDEX IF NOT EXISTS uq_analyses_document_final ON analyses(document_id) WHERE status = 'final';
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) CreateDocument(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (id, owner_id, content, source_key, page_count, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`,
		doc.ID, doc.OwnerID, doc.Content, doc.SourceKey, doc.PageCount, doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) GetDocument(ctx context.Context, ownerID, documentID string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, owner_id, content, source_key, page_count, created_at
FROM documents
WHERE id = $1 AND owner_id = $2
`, documentID, ownerID)

	var doc domain.Document
	err := row.Scan(&doc.ID, &doc.OwnerID, &doc.Content, &doc.SourceKey, &doc.PageCount, &doc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", documentID))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &doc, nil
}

// FinalizeAnalysis locks the document row, discards its current final
// analysis and inserts the new one in a single transaction. Concurrent calls
// for the same document serialize on the row lock.
func (r *AnalysisRepository) FinalizeAnalysis(ctx context.Context, analysis *domain.Analysis) error {
	resultJSON, err := json.Marshal(analysis.Result)
	if err != nil {
		return fmt.Errorf("marshal analysis result: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin finalize tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var lockedID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM documents WHERE id = $1 FOR UPDATE`, analysis.DocumentID).Scan(&lockedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.WrapError(domain.ErrDocumentNotFound, "finalize analysis", fmt.Errorf("id=%s", analysis.DocumentID))
		}
		return fmt.Errorf("lock document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE analyses
SET status = $2
WHERE document_id = $1 AND status = $3
`, analysis.DocumentID, string(domain.AnalysisDiscarded), string(domain.AnalysisFinal)); err != nil {
		return fmt.Errorf("discard previous analyses: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO analyses (id, document_id, user_prompt, status, prompt_version, result, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		analysis.ID, analysis.DocumentID, nullableString(analysis.UserPrompt), string(domain.AnalysisFinal),
		analysis.PromptVersion, resultJSON, analysis.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit finalize tx: %w", err)
	}
	analysis.Status = domain.AnalysisFinal
	return nil
}

func (r *AnalysisRepository) ListAnalyses(ctx context.Context, documentID string) ([]domain.Analysis, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, document_id, user_prompt, status, prompt_version, result, created_at
FROM analyses
WHERE document_id = $1
ORDER BY created_at DESC, id DESC
`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Analysis, 0)
	for rows.Next() {
		analysis, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, analysis)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(s scanner) (domain.Analysis, error) {
	var (
		analysis   domain.Analysis
		userPrompt sql.NullString
		status     string
		resultRaw  []byte
	)
	if err := s.Scan(
		&analysis.ID, &analysis.DocumentID, &userPrompt, &status,
		&analysis.PromptVersion, &resultRaw, &analysis.CreatedAt,
	); err != nil {
		return domain.Analysis{}, fmt.Errorf("scan analysis: %w", err)
	}
	if err := json.Unmarshal(resultRaw, &analysis.Result); err != nil {
		return domain.Analysis{}, fmt.Errorf("unmarshal analysis result: %w", err)
	}
	if userPrompt.Valid {
		p := userPrompt.String
		analysis.UserPrompt = &p
	}
	analysis.Status = domain.AnalysisStatus(status)
	return analysis, nil
}

func nullableString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
