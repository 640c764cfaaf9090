package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
)

// DocumentRepository persists canonical documents. doc_hash is unique and
// conflicting inserts are skipped.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository creates a new repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const insertDocumentQuery = `
	INSERT INTO documents
		(id, agency_id, url, doc_hash, document_type, type_confidence, title,
		 raw_text, cleaned_text, quality_score, published_date, source_metadata, ingested_at)
	VALUES
		(:id, :agency_id, :url, :doc_hash, :document_type, :type_confidence, :title,
		 :raw_text, :cleaned_text, :quality_score, :published_date, :source_metadata, :ingested_at)
	ON CONFLICT (doc_hash) DO NOTHING`

// BulkInsert writes docs in one transaction and returns how many rows were
// new. A duplicate doc_hash is not an error.
func (r *DocumentRepository) BulkInsert(ctx context.Context, docs []*domain.CanonicalDocument) (int64, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin document insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareNamedContext(ctx, insertDocumentQuery)
	if err != nil {
		return 0, fmt.Errorf("prepare document insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, doc := range docs {
		res, execErr := stmt.ExecContext(ctx, doc)
		if execErr != nil {
			return 0, fmt.Errorf("insert document %s: %w", doc.DocHash, execErr)
		}
		n, rowsErr := res.RowsAffected()
		if rowsErr != nil {
			return 0, fmt.Errorf("rows affected for %s: %w", doc.DocHash, rowsErr)
		}
		inserted += n
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return 0, fmt.Errorf("commit document insert: %w", commitErr)
	}
	return inserted, nil
}

// Count returns the number of stored documents.
func (r *DocumentRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM documents`); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}
