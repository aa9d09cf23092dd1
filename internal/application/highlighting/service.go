// Package highlighting exposes the highlight core over stored page text.
// Each document gets a lazily created session holding a coordinator and a
// surface whose leaves come from the rows the worker extracted. Sessions live
// in a bounded in-memory manager; match results are never persisted.
package highlighting

import (
	"context"

	"github.com/loanlens/loanlens/internal/config"
	domaindoc "github.com/loanlens/loanlens/internal/domain/document"
	"github.com/loanlens/loanlens/internal/highlight"
	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/prometheus"
	"github.com/loanlens/loanlens/pkg/errors"
	"github.com/loanlens/loanlens/pkg/types/common"
)

// Service drives highlight runs against analyzed documents.
type Service interface {
	// Activate locates the target on its page and blocks until the run
	// reaches a terminal state. A concurrent Activate on the same document
	// supersedes the running one, which reports the cancelled state.
	Activate(ctx context.Context, input *ActivateInput) (*ActivateResult, error)

	// Clear drops the document's active highlight, if any. Clearing a
	// document without a session is a no-op; both answer idle.
	Clear(ctx context.Context, docID common.ID) (*ClearResult, error)
}

// ActivateInput names the spot to highlight. An empty Nonce is replaced
// server-side so repeated identical requests still re-trigger.
type ActivateInput struct {
	DocumentID common.ID
	Page       int
	Section    string
	Snippet    string
	Nonce      string
}

// ActivateResult is the terminal state of one highlight run.
type ActivateResult struct {
	State         string `json:"state"`
	Tier          string `json:"tier"`
	Page          int    `json:"page"`
	MatchedLeaves []int  `json:"matched_leaves"`
	AnchorLeaf    *int   `json:"anchor_leaf,omitempty"`
}

// ClearResult reports the state after a clear, always idle.
type ClearResult struct {
	State string `json:"state"`
}

type serviceImpl struct {
	docs     domaindoc.Repository
	sessions *sessionManager
	metrics  *prometheus.AppMetrics
	logger   logging.Logger
}

// NewService builds the highlighting service over stored page text. The
// thresholds, text-layer wait, and session cap all come from cfg.
func NewService(
	docs domaindoc.Repository,
	cfg config.HighlightConfig,
	metrics *prometheus.AppMetrics,
	logger logging.Logger,
) Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if metrics == nil {
		metrics = prometheus.NewNopAppMetrics()
	}
	logger = logger.Named("highlighting")

	build := func(docID common.ID) *session {
		surface := newPageSurface(docs, docID)
		coord := highlight.NewCoordinator(surface,
			highlight.WithThresholds(highlight.Thresholds{
				PartialMinWords:    cfg.PartialMinWords,
				PartialPrefixWords: cfg.PartialPrefixWords,
				TokenMinLength:     cfg.TokenMinLength,
				TokenMaxCount:      cfg.TokenMaxCount,
			}),
			highlight.WithWait(cfg.TextLayerWait),
			highlight.WithLogger(logger),
		)
		return &session{coordinator: coord, surface: surface}
	}

	return &serviceImpl{
		docs:     docs,
		sessions: newSessionManager(cfg.SessionLimit, build, metrics),
		metrics:  metrics,
		logger:   logger,
	}
}

func (s *serviceImpl) Activate(ctx context.Context, input *ActivateInput) (*ActivateResult, error) {
	if err := common.ValidateDocumentID(input.DocumentID); err != nil {
		return nil, errors.InvalidParam(err.Error())
	}
	if input.Page < 1 {
		return nil, errors.Newf(errors.ErrCodeHighlightTargetInvalid,
			"page %d is not a valid page number", input.Page)
	}

	doc, err := s.docs.GetByID(ctx, input.DocumentID)
	if err != nil {
		return nil, err
	}
	switch doc.Status {
	case domaindoc.StatusComplete:
	case domaindoc.StatusFailed:
		return nil, errors.New(errors.ErrCodeDocumentNotReady, "document analysis failed; highlighting is unavailable")
	default:
		return nil, errors.New(errors.ErrCodeDocumentNotReady, "document is still being analyzed")
	}
	if input.Page > doc.PageCount {
		return nil, errors.Newf(errors.ErrCodeHighlightTargetInvalid,
			"page %d is out of range; the document has %d pages", input.Page, doc.PageCount)
	}

	nonce := input.Nonce
	if nonce == "" {
		nonce = common.NewNonce()
	}

	sess := s.sessions.acquire(ctx, doc.ID)
	outcome := sess.coordinator.Activate(ctx, highlight.Target{
		Page:    input.Page,
		Section: input.Section,
		Snippet: input.Snippet,
		Nonce:   nonce,
	})
	s.metrics.RecordHighlight(string(outcome.Tier), string(outcome.State), outcome.Elapsed)

	s.logger.Info("highlight resolved",
		logging.String("document_id", string(doc.ID)),
		logging.Int("page", outcome.Page),
		logging.String("state", string(outcome.State)),
		logging.String("tier", string(outcome.Tier)),
		logging.Int("matched_leaves", len(outcome.MatchedLeaves)),
		logging.Duration("elapsed", outcome.Elapsed))

	result := &ActivateResult{
		State:         string(outcome.State),
		Tier:          string(outcome.Tier),
		Page:          outcome.Page,
		MatchedLeaves: outcome.MatchedLeaves,
	}
	if result.MatchedLeaves == nil {
		result.MatchedLeaves = []int{}
	}
	if outcome.AnchorLeaf >= 0 {
		anchor := outcome.AnchorLeaf
		result.AnchorLeaf = &anchor
	}
	return result, nil
}

func (s *serviceImpl) Clear(ctx context.Context, docID common.ID) (*ClearResult, error) {
	if err := common.ValidateDocumentID(docID); err != nil {
		return nil, errors.InvalidParam(err.Error())
	}
	if sess, ok := s.sessions.get(docID); ok {
		sess.coordinator.Clear(ctx)
		s.logger.Debug("highlight cleared", logging.String("document_id", string(docID)))
	}
	return &ClearResult{State: string(highlight.StateIdle)}, nil
}
