package analysis

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"time"

	domainanalysis "github.com/loanlens/loanlens/internal/domain/analysis"
	domaindoc "github.com/loanlens/loanlens/internal/domain/document"
	"github.com/loanlens/loanlens/internal/infrastructure/database/redis"
	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/prometheus"
	"github.com/loanlens/loanlens/pkg/errors"
	"github.com/loanlens/loanlens/pkg/types/common"
)

// Cache tuning for analysis reads. Results are immutable once written, so
// the TTL is generous; invalidation happens on reprocessing.
const (
	cacheTTL    = 6 * time.Hour
	cacheName   = "analysis"
	keySummary  = "summary"
	keyRedFlags = "red_flags"
	keyClauses  = "hidden_clauses"
	keyTerms    = "financial_terms"
)

// cachePrefix is the key namespace for one document's cached reads. The
// worker invalidates by this prefix after every processing run.
func cachePrefix(docID common.ID) string {
	return fmt.Sprintf("doc:%s:", docID)
}

func cacheKey(docID common.ID, part string) string {
	return cachePrefix(docID) + part
}

// Service is the read-side API over analysis results. Every getter returns
// the document's public status alongside the data so the HTTP layer can
// serve processing and failed documents with the same shape.
type Service interface {
	GetSummary(ctx context.Context, docID common.ID) (*SummaryView, error)
	GetRedFlags(ctx context.Context, docID common.ID) (*RedFlagsView, error)
	GetHiddenClauses(ctx context.Context, docID common.ID) (*HiddenClausesView, error)
	GetFinancialTerms(ctx context.Context, docID common.ID, search string) (*FinancialTermsView, error)
}

// SummaryView is the summary read model.
type SummaryView struct {
	DocumentID common.ID              `json:"document_id"`
	Status     string                 `json:"status"`
	Data       *domainanalysis.Summary `json:"data,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// RedFlagsView is the red-flag list read model.
type RedFlagsView struct {
	DocumentID common.ID                `json:"document_id"`
	Status     string                   `json:"status"`
	Count      int                      `json:"count"`
	Data       []domainanalysis.RedFlag `json:"data"`
	Error      string                   `json:"error,omitempty"`
}

// HiddenClausesView is the hidden-clause list read model.
type HiddenClausesView struct {
	DocumentID common.ID                     `json:"document_id"`
	Status     string                        `json:"status"`
	Count      int                           `json:"count"`
	Data       []domainanalysis.HiddenClause `json:"data"`
	Error      string                        `json:"error,omitempty"`
}

// FinancialTermsView is the financial-term list read model. The list key is
// terms, not data; the glossary UI consumes it under that name.
type FinancialTermsView struct {
	DocumentID common.ID                      `json:"document_id"`
	Status     string                         `json:"status"`
	Count      int                            `json:"count"`
	Terms      []domainanalysis.FinancialTerm `json:"terms"`
	Error      string                         `json:"error,omitempty"`
}

type serviceImpl struct {
	docs    domaindoc.Repository
	results domainanalysis.Repository
	cache   redis.Cache
	metrics *prometheus.AppMetrics
	logger  logging.Logger
}

// NewService builds the read-side service. cache may be nil; reads then go
// straight to the repository.
func NewService(
	docs domaindoc.Repository,
	results domainanalysis.Repository,
	cache redis.Cache,
	metrics *prometheus.AppMetrics,
	logger logging.Logger,
) Service {
	if metrics == nil {
		metrics = prometheus.NewNopAppMetrics()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &serviceImpl{
		docs:    docs,
		results: results,
		cache:   cache,
		metrics: metrics,
		logger:  logger.Named("analysis"),
	}
}

// document resolves the id and reports whether results should be loaded:
// only complete documents have them.
func (s *serviceImpl) document(ctx context.Context, docID common.ID) (*domaindoc.Document, bool, error) {
	if err := common.ValidateDocumentID(docID); err != nil {
		return nil, false, errors.InvalidParam(err.Error())
	}
	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, false, err
	}
	return doc, doc.Status == domaindoc.StatusComplete, nil
}

func (s *serviceImpl) GetSummary(ctx context.Context, docID common.ID) (*SummaryView, error) {
	doc, ready, err := s.document(ctx, docID)
	if err != nil {
		return nil, err
	}
	view := &SummaryView{DocumentID: doc.ID, Status: doc.Status.Public(), Error: doc.FailureNote}
	if !ready {
		return view, nil
	}

	var summary domainanalysis.Summary
	if err := s.loadCached(ctx, cacheKey(docID, keySummary), &summary, func(ctx context.Context) (interface{}, error) {
		return s.results.GetSummary(ctx, docID)
	}); err != nil {
		return nil, err
	}
	view.Data = &summary
	return view, nil
}

func (s *serviceImpl) GetRedFlags(ctx context.Context, docID common.ID) (*RedFlagsView, error) {
	doc, ready, err := s.document(ctx, docID)
	if err != nil {
		return nil, err
	}
	view := &RedFlagsView{
		DocumentID: doc.ID,
		Status:     doc.Status.Public(),
		Data:       []domainanalysis.RedFlag{},
		Error:      doc.FailureNote,
	}
	if !ready {
		return view, nil
	}

	var flags []domainanalysis.RedFlag
	if err := s.loadCached(ctx, cacheKey(docID, keyRedFlags), &flags, func(ctx context.Context) (interface{}, error) {
		return s.results.GetRedFlags(ctx, docID)
	}); err != nil {
		return nil, err
	}
	view.Data = flags
	view.Count = len(flags)
	return view, nil
}

func (s *serviceImpl) GetHiddenClauses(ctx context.Context, docID common.ID) (*HiddenClausesView, error) {
	doc, ready, err := s.document(ctx, docID)
	if err != nil {
		return nil, err
	}
	view := &HiddenClausesView{
		DocumentID: doc.ID,
		Status:     doc.Status.Public(),
		Data:       []domainanalysis.HiddenClause{},
		Error:      doc.FailureNote,
	}
	if !ready {
		return view, nil
	}

	var clauses []domainanalysis.HiddenClause
	if err := s.loadCached(ctx, cacheKey(docID, keyClauses), &clauses, func(ctx context.Context) (interface{}, error) {
		return s.results.GetHiddenClauses(ctx, docID)
	}); err != nil {
		return nil, err
	}
	view.Data = clauses
	view.Count = len(clauses)
	return view, nil
}

func (s *serviceImpl) GetFinancialTerms(ctx context.Context, docID common.ID, search string) (*FinancialTermsView, error) {
	doc, ready, err := s.document(ctx, docID)
	if err != nil {
		return nil, err
	}
	view := &FinancialTermsView{
		DocumentID: doc.ID,
		Status:     doc.Status.Public(),
		Terms:      []domainanalysis.FinancialTerm{},
		Error:      doc.FailureNote,
	}
	if !ready {
		return view, nil
	}

	// The full list is cached; the search filter runs in memory so every
	// query shares one cache entry.
	var terms []domainanalysis.FinancialTerm
	if err := s.loadCached(ctx, cacheKey(docID, keyTerms), &terms, func(ctx context.Context) (interface{}, error) {
		return s.results.GetFinancialTerms(ctx, docID)
	}); err != nil {
		return nil, err
	}

	filtered := make([]domainanalysis.FinancialTerm, 0, len(terms))
	for _, t := range terms {
		if t.MatchesSearch(search) {
			filtered = append(filtered, t)
		}
	}
	view.Terms = filtered
	view.Count = len(filtered)
	return view, nil
}

// loadCached reads through the cache and keeps the hit/miss metric honest:
// a hit is a read the loader never saw. Cache unavailability degrades to a
// direct repository load instead of failing the request.
func (s *serviceImpl) loadCached(ctx context.Context, key string, dest interface{}, loader func(ctx context.Context) (interface{}, error)) error {
	if s.cache == nil {
		return s.loadDirect(ctx, dest, loader)
	}

	loaded := false
	err := s.cache.GetOrSet(ctx, key, dest, cacheTTL, func(ctx context.Context) (interface{}, error) {
		loaded = true
		return loader(ctx)
	})
	if err != nil && (errors.IsCode(err, errors.ErrCodeCacheError) || goerrors.Is(err, redis.ErrCacheMiss)) {
		s.logger.Warn("cache unavailable, loading from repository",
			logging.String("key", key), logging.Err(err))
		return s.loadDirect(ctx, dest, loader)
	}
	s.metrics.RecordCacheAccess(cacheName, !loaded)
	return err
}

func (s *serviceImpl) loadDirect(ctx context.Context, dest interface{}, loader func(ctx context.Context) (interface{}, error)) error {
	v, err := loader(ctx)
	if err != nil {
		return err
	}
	return copyValue(v, dest)
}

// copyValue fills dest from a loader result the same way a cache hit would,
// through the JSON shape both paths share.
func copyValue(v, dest interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encoding loaded value")
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "decoding loaded value")
	}
	return nil
}
