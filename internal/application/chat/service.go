// Package chat answers questions about an analyzed document. Answers come
// from the LLM backend grounded in the document text and its analysis
// catalog; the references attached to each answer come from keyword overlap
// against the catalog. Conversation history lives in Redis with a TTL, keyed
// per document and conversation.
package chat

import (
	"context"
	goerrors "errors"
	"fmt"
	"strings"
	"time"

	domainanalysis "github.com/loanlens/loanlens/internal/domain/analysis"
	domaindoc "github.com/loanlens/loanlens/internal/domain/document"
	"github.com/loanlens/loanlens/internal/infrastructure/database/redis"
	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
	"github.com/loanlens/loanlens/internal/intelligence/analyzer"
	"github.com/loanlens/loanlens/internal/intelligence/docparse"
	"github.com/loanlens/loanlens/internal/intelligence/heuristic"
	"github.com/loanlens/loanlens/pkg/errors"
	"github.com/loanlens/loanlens/pkg/types/common"
)

// History tuning. Eight turns keeps the prompt grounded without growing it
// past the analyzer's input budget.
const (
	historyTTL      = time.Hour
	maxHistoryTurns = 8
	maxReferences   = 3
)

// ConversationEngine is the analyzer surface chat needs.
type ConversationEngine interface {
	ChatAvailable() bool
	Chat(ctx context.Context, ex *docparse.Extraction, b *domainanalysis.Bundle, history []analyzer.Turn, message string) (string, error)
}

// Service answers document questions.
type Service interface {
	Ask(ctx context.Context, input *AskInput) (*AskResult, error)
}

// AskInput is one chat request. An empty ConversationID starts a new
// conversation.
type AskInput struct {
	DocumentID     common.ID
	Message        string
	ConversationID common.ID
}

// AskResult is the answer plus the catalog items it most plausibly concerns.
type AskResult struct {
	DocumentID     common.ID                  `json:"document_id"`
	ConversationID common.ID                  `json:"conversation_id"`
	Response       string                     `json:"response"`
	References     []domainanalysis.Reference `json:"references"`
}

type serviceImpl struct {
	docs    domaindoc.Repository
	results domainanalysis.Repository
	cache   redis.Cache
	engine  ConversationEngine
	logger  logging.Logger
}

// NewService builds the chat service. cache may be nil; conversations are
// then stateless and every question stands alone.
func NewService(
	docs domaindoc.Repository,
	results domainanalysis.Repository,
	cache redis.Cache,
	engine ConversationEngine,
	logger logging.Logger,
) Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &serviceImpl{
		docs:    docs,
		results: results,
		cache:   cache,
		engine:  engine,
		logger:  logger.Named("chat"),
	}
}

func historyKey(docID, convID common.ID) string {
	return fmt.Sprintf("chat:%s:%s", docID, convID)
}

func (s *serviceImpl) Ask(ctx context.Context, input *AskInput) (*AskResult, error) {
	if strings.TrimSpace(input.Message) == "" {
		return nil, errors.New(errors.ErrCodeChatMessageEmpty, "message must not be empty")
	}
	if err := common.ValidateDocumentID(input.DocumentID); err != nil {
		return nil, errors.InvalidParam(err.Error())
	}
	if s.engine == nil || !s.engine.ChatAvailable() {
		return nil, errors.New(errors.ErrCodeAnalyzerUnavailable, "chat requires an LLM backend")
	}

	doc, err := s.docs.GetByID(ctx, input.DocumentID)
	if err != nil {
		return nil, err
	}
	switch doc.Status {
	case domaindoc.StatusComplete:
	case domaindoc.StatusFailed:
		return nil, errors.New(errors.ErrCodeDocumentNotReady, "document analysis failed; chat is unavailable")
	default:
		return nil, errors.New(errors.ErrCodeDocumentNotReady, "document is still being analyzed")
	}

	bundle, err := s.results.GetBundle(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	pages, err := s.docs.GetPageTexts(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	extraction := &docparse.Extraction{
		PageCount: doc.PageCount,
		Pages:     pages,
		Scanned:   doc.Scanned,
	}

	convID := input.ConversationID
	if convID == "" {
		convID = common.NewConversationID()
	}
	history := s.loadHistory(ctx, doc.ID, convID)

	response, err := s.engine.Chat(ctx, extraction, bundle, history, input.Message)
	if err != nil {
		return nil, err
	}

	refs := heuristic.References(bundle, input.Message, maxReferences)
	if refs == nil {
		refs = []domainanalysis.Reference{}
	}

	s.saveHistory(ctx, doc.ID, convID, append(history, analyzer.Turn{
		Message:  input.Message,
		Response: response,
	}))

	s.logger.Debug("chat answered",
		logging.String("document_id", string(doc.ID)),
		logging.String("conversation_id", string(convID)),
		logging.Int("references", len(refs)),
		logging.Int("history_turns", len(history)))

	return &AskResult{
		DocumentID:     doc.ID,
		ConversationID: convID,
		Response:       response,
		References:     refs,
	}, nil
}

// loadHistory returns the conversation so far. Any cache problem means an
// empty history; a forgotten conversation answers worse, not wrong.
func (s *serviceImpl) loadHistory(ctx context.Context, docID, convID common.ID) []analyzer.Turn {
	if s.cache == nil {
		return nil
	}
	var turns []analyzer.Turn
	err := s.cache.Get(ctx, historyKey(docID, convID), &turns)
	if err != nil {
		if !goerrors.Is(err, redis.ErrCacheMiss) {
			s.logger.Warn("loading conversation history failed",
				logging.String("conversation_id", string(convID)), logging.Err(err))
		}
		return nil
	}
	return turns
}

func (s *serviceImpl) saveHistory(ctx context.Context, docID, convID common.ID, turns []analyzer.Turn) {
	if s.cache == nil {
		return
	}
	if len(turns) > maxHistoryTurns {
		turns = turns[len(turns)-maxHistoryTurns:]
	}
	if err := s.cache.Set(ctx, historyKey(docID, convID), turns, historyTTL); err != nil {
		s.logger.Warn("saving conversation history failed",
			logging.String("conversation_id", string(convID)), logging.Err(err))
	}
}
