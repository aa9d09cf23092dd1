// Package repositories provides the PostgreSQL implementations of the domain
// repository interfaces.
package repositories

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loanlens/loanlens/internal/domain/document"
	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
	"github.com/loanlens/loanlens/pkg/errors"
	"github.com/loanlens/loanlens/pkg/types/common"
)

const documentColumns = `id, filename, content_type, size_bytes, storage_key,
       status, failure_note, page_count, scanned, uploaded_at, processed_at`

// DocumentRepository is the PostgreSQL implementation of document.Repository.
// Page text lives in its own table keyed by (document_id, page) so the
// highlight surface can fetch one page without loading the document.
type DocumentRepository struct {
	pool *pgxpool.Pool
	log  logging.Logger
}

// NewDocumentRepository constructs a ready-to-use DocumentRepository.
func NewDocumentRepository(pool *pgxpool.Pool, log logging.Logger) *DocumentRepository {
	return &DocumentRepository{pool: pool, log: log}
}

// Create persists a freshly uploaded document record.
func (r *DocumentRepository) Create(ctx context.Context, d *document.Document) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		d.ID, d.Filename, d.ContentType, d.SizeBytes, d.StorageKey,
		d.Status, d.FailureNote, d.PageCount, d.Scanned, d.UploadedAt, d.ProcessedAt,
	)
	if err != nil {
		r.log.Error("insert document failed",
			logging.String("document_id", string(d.ID)), logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "insert document")
	}
	return nil
}

// GetByID loads one document by its id.
func (r *DocumentRepository) GetByID(ctx context.Context, id common.ID) (*document.Document, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	return r.scanDocument(row, id)
}

// List returns one page of documents, newest first, plus the total count.
func (r *DocumentRepository) List(ctx context.Context, p common.Pagination) ([]*document.Document, int, error) {
	pageSize := p.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	page := p.Page
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&total); err != nil {
		r.log.Error("count documents failed", logging.Err(err))
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "count documents")
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		ORDER BY uploaded_at DESC
		LIMIT $1 OFFSET $2`, pageSize, offset)
	if err != nil {
		r.log.Error("list documents failed", logging.Err(err))
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "list documents")
	}
	defer rows.Close()

	docs := make([]*document.Document, 0, pageSize)
	for rows.Next() {
		var d document.Document
		if err := rows.Scan(
			&d.ID, &d.Filename, &d.ContentType, &d.SizeBytes, &d.StorageKey,
			&d.Status, &d.FailureNote, &d.PageCount, &d.Scanned, &d.UploadedAt, &d.ProcessedAt,
		); err != nil {
			r.log.Error("scan document row failed", logging.Err(err))
			return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "scan document row")
		}
		docs = append(docs, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "iterate documents")
	}
	return docs, total, nil
}

// Update persists the document's lifecycle fields.
func (r *DocumentRepository) Update(ctx context.Context, d *document.Document) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE documents
		SET status = $1, failure_note = $2, page_count = $3, scanned = $4, processed_at = $5
		WHERE id = $6`,
		d.Status, d.FailureNote, d.PageCount, d.Scanned, d.ProcessedAt, d.ID,
	)
	if err != nil {
		r.log.Error("update document failed",
			logging.String("document_id", string(d.ID)), logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "update document")
	}
	if tag.RowsAffected() == 0 {
		return errors.Newf(errors.ErrCodeDocumentNotFound, "document %s not found", d.ID)
	}
	return nil
}

// SavePageTexts replaces the document's extracted pages in one transaction.
func (r *DocumentRepository) SavePageTexts(ctx context.Context, id common.ID, pages []document.PageText) error {
	r.log.Debug("saving page texts",
		logging.String("document_id", string(id)), logging.Int("pages", len(pages)))

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "begin page text transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM page_texts WHERE document_id = $1`, id); err != nil {
		r.log.Error("clear page texts failed",
			logging.String("document_id", string(id)), logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "clear page texts")
	}

	for _, p := range pages {
		leaves, err := json.Marshal(p.Leaves)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "encode page leaves")
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO page_texts (document_id, page, leaves, scanned)
			VALUES ($1,$2,$3,$4)`,
			id, p.Page, leaves, p.Scanned,
		); err != nil {
			r.log.Error("insert page text failed",
				logging.String("document_id", string(id)), logging.Int("page", p.Page), logging.Err(err))
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "insert page text")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "commit page texts")
	}
	return nil
}

// GetPageTexts returns every stored page in page order.
func (r *DocumentRepository) GetPageTexts(ctx context.Context, id common.ID) ([]document.PageText, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT page, leaves, scanned
		FROM page_texts
		WHERE document_id = $1
		ORDER BY page ASC`, id)
	if err != nil {
		r.log.Error("query page texts failed",
			logging.String("document_id", string(id)), logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "query page texts")
	}
	defer rows.Close()

	var pages []document.PageText
	for rows.Next() {
		p, err := scanPageText(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "iterate page texts")
	}
	return pages, nil
}

// GetPageText returns a single stored page.
func (r *DocumentRepository) GetPageText(ctx context.Context, id common.ID, page int) (*document.PageText, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT page, leaves, scanned
		FROM page_texts
		WHERE document_id = $1 AND page = $2`, id, page)

	p, err := scanPageText(row)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPageText(row pgx.Row) (document.PageText, error) {
	var p document.PageText
	var leavesJSON []byte
	if err := row.Scan(&p.Page, &leavesJSON, &p.Scanned); err != nil {
		if err == pgx.ErrNoRows {
			return document.PageText{}, errors.New(errors.ErrCodePageOutOfRange, "page text not found")
		}
		return document.PageText{}, errors.Wrap(err, errors.ErrCodeDatabaseError, "scan page text")
	}
	if len(leavesJSON) > 0 {
		if err := json.Unmarshal(leavesJSON, &p.Leaves); err != nil {
			return document.PageText{}, errors.Wrap(err, errors.ErrCodeSerialization, "decode page leaves")
		}
	}
	return p, nil
}

func (r *DocumentRepository) scanDocument(row pgx.Row, id common.ID) (*document.Document, error) {
	var d document.Document
	err := row.Scan(
		&d.ID, &d.Filename, &d.ContentType, &d.SizeBytes, &d.StorageKey,
		&d.Status, &d.FailureNote, &d.PageCount, &d.Scanned, &d.UploadedAt, &d.ProcessedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.Newf(errors.ErrCodeDocumentNotFound, "document %s not found", id)
		}
		r.log.Error("scan document failed",
			logging.String("document_id", string(id)), logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scan document")
	}
	return &d, nil
}
