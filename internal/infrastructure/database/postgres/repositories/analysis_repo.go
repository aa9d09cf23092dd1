package repositories

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loanlens/loanlens/internal/domain/analysis"
	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
	"github.com/loanlens/loanlens/pkg/errors"
	"github.com/loanlens/loanlens/pkg/types/common"
)

// AnalysisRepository is the PostgreSQL implementation of analysis.Repository.
// The bundle lives in one row with a JSONB column per category, so each read
// surface fetches only its own column. Category getters return empty slices,
// never nil.
type AnalysisRepository struct {
	pool *pgxpool.Pool
	log  logging.Logger
}

// NewAnalysisRepository constructs a ready-to-use AnalysisRepository.
func NewAnalysisRepository(pool *pgxpool.Pool, log logging.Logger) *AnalysisRepository {
	return &AnalysisRepository{pool: pool, log: log}
}

// SaveBundle upserts the full analysis for a document.
func (r *AnalysisRepository) SaveBundle(ctx context.Context, b *analysis.Bundle) error {
	summary, err := json.Marshal(b.Summary)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode summary")
	}
	flags, err := json.Marshal(emptyIfNilFlags(b.RedFlags))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode red flags")
	}
	clauses, err := json.Marshal(emptyIfNilClauses(b.Clauses))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode hidden clauses")
	}
	terms, err := json.Marshal(emptyIfNilTerms(b.Terms))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode financial terms")
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO analyses (document_id, summary, red_flags, hidden_clauses, financial_terms)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (document_id) DO UPDATE SET
			summary = EXCLUDED.summary,
			red_flags = EXCLUDED.red_flags,
			hidden_clauses = EXCLUDED.hidden_clauses,
			financial_terms = EXCLUDED.financial_terms,
			updated_at = NOW()`,
		b.DocumentID, summary, flags, clauses, terms,
	)
	if err != nil {
		r.log.Error("save analysis bundle failed",
			logging.String("document_id", string(b.DocumentID)), logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "save analysis bundle")
	}
	return nil
}

// GetBundle loads the complete analysis for a document.
func (r *AnalysisRepository) GetBundle(ctx context.Context, docID common.ID) (*analysis.Bundle, error) {
	var summaryJSON, flagsJSON, clausesJSON, termsJSON []byte
	err := r.pool.QueryRow(ctx, `
		SELECT summary, red_flags, hidden_clauses, financial_terms
		FROM analyses
		WHERE document_id = $1`, docID,
	).Scan(&summaryJSON, &flagsJSON, &clausesJSON, &termsJSON)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.Newf(errors.ErrCodeAnalysisNotFound, "no analysis for document %s", docID)
		}
		r.log.Error("load analysis bundle failed",
			logging.String("document_id", string(docID)), logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "load analysis bundle")
	}

	b := &analysis.Bundle{DocumentID: docID}
	if len(summaryJSON) > 0 {
		if err := json.Unmarshal(summaryJSON, &b.Summary); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode summary")
		}
	}
	if err := decodeList(flagsJSON, &b.RedFlags, "red flags"); err != nil {
		return nil, err
	}
	if err := decodeList(clausesJSON, &b.Clauses, "hidden clauses"); err != nil {
		return nil, err
	}
	if err := decodeList(termsJSON, &b.Terms, "financial terms"); err != nil {
		return nil, err
	}
	b.RedFlags = emptyIfNilFlags(b.RedFlags)
	b.Clauses = emptyIfNilClauses(b.Clauses)
	b.Terms = emptyIfNilTerms(b.Terms)
	return b, nil
}

// GetSummary loads only the summary column.
func (r *AnalysisRepository) GetSummary(ctx context.Context, docID common.ID) (*analysis.Summary, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT summary FROM analyses WHERE document_id = $1`, docID).Scan(&raw)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.Newf(errors.ErrCodeAnalysisNotFound, "no analysis for document %s", docID)
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "load summary")
	}

	var s *analysis.Summary
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode summary")
		}
	}
	if s == nil {
		return nil, errors.Newf(errors.ErrCodeAnalysisNotFound, "no summary for document %s", docID)
	}
	return s, nil
}

// GetRedFlags loads only the red flag list.
func (r *AnalysisRepository) GetRedFlags(ctx context.Context, docID common.ID) ([]analysis.RedFlag, error) {
	var flags []analysis.RedFlag
	if err := r.getCategory(ctx, docID, "red_flags", &flags); err != nil {
		return nil, err
	}
	return emptyIfNilFlags(flags), nil
}

// GetHiddenClauses loads only the hidden clause list.
func (r *AnalysisRepository) GetHiddenClauses(ctx context.Context, docID common.ID) ([]analysis.HiddenClause, error) {
	var clauses []analysis.HiddenClause
	if err := r.getCategory(ctx, docID, "hidden_clauses", &clauses); err != nil {
		return nil, err
	}
	return emptyIfNilClauses(clauses), nil
}

// GetFinancialTerms loads only the financial term list.
func (r *AnalysisRepository) GetFinancialTerms(ctx context.Context, docID common.ID) ([]analysis.FinancialTerm, error) {
	var terms []analysis.FinancialTerm
	if err := r.getCategory(ctx, docID, "financial_terms", &terms); err != nil {
		return nil, err
	}
	return emptyIfNilTerms(terms), nil
}

// getCategory reads one JSONB category column into out. The column name is
// one of the fixed identifiers above, never caller input.
func (r *AnalysisRepository) getCategory(ctx context.Context, docID common.ID, column string, out interface{}) error {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT `+column+` FROM analyses WHERE document_id = $1`, docID).Scan(&raw)
	if err != nil {
		if err == pgx.ErrNoRows {
			return errors.Newf(errors.ErrCodeAnalysisNotFound, "no analysis for document %s", docID)
		}
		r.log.Error("load analysis category failed",
			logging.String("document_id", string(docID)),
			logging.String("category", column), logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "load "+column)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "decode "+column)
	}
	return nil
}

func decodeList(raw []byte, out interface{}, what string) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "decode "+what)
	}
	return nil
}

func emptyIfNilFlags(v []analysis.RedFlag) []analysis.RedFlag {
	if v == nil {
		return []analysis.RedFlag{}
	}
	return v
}

func emptyIfNilClauses(v []analysis.HiddenClause) []analysis.HiddenClause {
	if v == nil {
		return []analysis.HiddenClause{}
	}
	return v
}

func emptyIfNilTerms(v []analysis.FinancialTerm) []analysis.FinancialTerm {
	if v == nil {
		return []analysis.FinancialTerm{}
	}
	return v
}
