// Package analyzer turns extracted document text into the analysis bundle.
// It fronts two backends: an OpenAI-compatible LLM endpoint and the regex
// heuristics, routed by the configured mode. In "auto" mode each analysis
// category independently falls back to heuristics when the LLM call fails,
// so a flaky backend degrades answers instead of failing the document.
package analyzer

import (
	"context"
	"strings"

	"github.com/loanlens/loanlens/internal/config"
	"github.com/loanlens/loanlens/internal/domain/analysis"
	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
	"github.com/loanlens/loanlens/internal/intelligence/docparse"
	"github.com/loanlens/loanlens/internal/intelligence/heuristic"
	"github.com/loanlens/loanlens/pkg/errors"
	"github.com/loanlens/loanlens/pkg/types/common"
)

// Backend modes.
const (
	BackendLLM       = "llm"
	BackendHeuristic = "heuristic"
	BackendAuto      = "auto"
)

// Sampling temperatures: near-deterministic for extraction, a little looser
// for conversation.
const (
	analysisTemperature = 0.2
	chatTemperature     = 0.7
)

// Turn is one prior exchange in a document conversation.
type Turn struct {
	Message  string `json:"message"`
	Response string `json:"response"`
}

// Engine routes analysis between the LLM client and the heuristic analyzer.
type Engine struct {
	llm       *Client
	heuristic *heuristic.Analyzer
	backend   string
	maxChars  int
	log       logging.Logger
}

// New builds an Engine from the analyzer config. Without an API key the
// engine runs on heuristics alone regardless of the configured backend mode,
// except that "llm" mode then fails analyses instead of silently degrading.
func New(cfg config.AnalyzerConfig, log logging.Logger) *Engine {
	if log == nil {
		log = logging.NewNopLogger()
	}
	e := &Engine{
		heuristic: heuristic.New(),
		backend:   cfg.Backend,
		maxChars:  cfg.MaxInputChars,
		log:       log,
	}
	if cfg.APIKey != "" && cfg.Backend != BackendHeuristic {
		e.llm = NewClient(cfg)
	}
	return e
}

// ChatAvailable reports whether conversational answers can be produced.
// Chat has no heuristic fallback; it needs the LLM backend.
func (e *Engine) ChatAvailable() bool { return e.llm != nil }

// Analyze produces the full analysis bundle for one extracted document.
func (e *Engine) Analyze(ctx context.Context, docID common.ID, ex *docparse.Extraction) (*analysis.Bundle, error) {
	if e.llm == nil {
		if e.backend == BackendLLM {
			return nil, errors.New(errors.ErrCodeAnalyzerUnavailable, "analyzer backend is llm but no api key is configured")
		}
		return e.heuristic.Analyze(docID, ex), nil
	}

	text := ex.AnalysisText(e.maxChars)
	cands := docparse.ScanNumbers(ex.Pages)
	b := &analysis.Bundle{DocumentID: docID}

	summary, err := e.llmSummary(ctx, text, cands)
	if err != nil {
		if err := e.noteFallback(ctx, docID, "summary", err); err != nil {
			return nil, err
		}
		summary = e.heuristic.Summary(ex, cands)
	}
	b.Summary = summary

	flags, err := e.llmRedFlags(ctx, text)
	if err != nil {
		if err := e.noteFallback(ctx, docID, "red_flags", err); err != nil {
			return nil, err
		}
		flags = e.heuristic.RedFlags(ex, cands)
	}
	b.RedFlags = flags

	clauses, err := e.llmClauses(ctx, text)
	if err != nil {
		if err := e.noteFallback(ctx, docID, "hidden_clauses", err); err != nil {
			return nil, err
		}
		clauses = e.heuristic.HiddenClauses(ex)
	}
	b.Clauses = clauses

	terms, err := e.llmTerms(ctx, text)
	if err != nil {
		if err := e.noteFallback(ctx, docID, "financial_terms", err); err != nil {
			return nil, err
		}
		terms = e.heuristic.FinancialTerms(ex, cands)
	}
	b.Terms = terms

	return b, nil
}

// noteFallback decides what a failed LLM category does: propagate in strict
// llm mode or on cancellation, degrade to heuristics otherwise.
func (e *Engine) noteFallback(ctx context.Context, docID common.ID, category string, cause error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if e.backend == BackendLLM {
		return cause
	}
	e.log.Warn("analysis category fell back to heuristics",
		logging.String("document_id", string(docID)),
		logging.String("category", category),
		logging.Err(cause),
	)
	return nil
}

// Chat answers a question about an analyzed document, grounded in its text,
// its analysis catalog, and the recent conversation.
func (e *Engine) Chat(ctx context.Context, ex *docparse.Extraction, b *analysis.Bundle, history []Turn, message string) (string, error) {
	if e.llm == nil {
		return "", errors.New(errors.ErrCodeAnalyzerUnavailable, "chat requires an LLM backend")
	}
	prompt := buildChatPrompt(ex.AnalysisText(e.maxChars), b, history, message)
	raw, err := e.llm.Complete(ctx, chatSystemPrompt, prompt, chatTemperature, false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}

func (e *Engine) llmSummary(ctx context.Context, text string, cands *docparse.Candidates) (*analysis.Summary, error) {
	raw, err := e.llm.Complete(ctx, summarySystemPrompt, buildSummaryPrompt(text, cands), analysisTemperature, true)
	if err != nil {
		return nil, err
	}
	var p summaryPayload
	if err := decodePayload(raw, &p); err != nil {
		return nil, err
	}

	s := &analysis.Summary{
		DocumentType: p.DocumentType,
		Overview:     p.Overview,
		Highlights:   p.Highlights,
		KeyNumbers: analysis.KeyNumbers{
			TotalLoan:    p.KeyNumbers.TotalLoan,
			InterestRate: p.KeyNumbers.InterestRate,
			TermMonths:   p.KeyNumbers.TermMonths,
			Fees:         p.KeyNumbers.Fees,
		},
	}

	// The model reports the payment only when the document states one; the
	// gap is filled by amortization, and total interest is always derived.
	payment := 0.0
	if p.KeyNumbers.MonthlyPayment != nil {
		payment = *p.KeyNumbers.MonthlyPayment
	} else {
		payment = docparse.Round2(docparse.MonthlyPayment(s.KeyNumbers.TotalLoan, s.KeyNumbers.InterestRate, s.KeyNumbers.TermMonths))
	}
	s.KeyNumbers.MonthlyPayment = payment
	s.KeyNumbers.TotalInterest = docparse.Round2(docparse.TotalInterest(s.KeyNumbers.TotalLoan, payment, s.KeyNumbers.TermMonths))
	return s, nil
}

func (e *Engine) llmRedFlags(ctx context.Context, text string) ([]analysis.RedFlag, error) {
	raw, err := e.llm.Complete(ctx, redFlagsSystemPrompt, buildRedFlagsPrompt(text), analysisTemperature, true)
	if err != nil {
		return nil, err
	}
	var p redFlagsPayload
	if err := decodePayload(raw, &p); err != nil {
		return nil, err
	}
	for i := range p.RedFlags {
		p.RedFlags[i].ID = analysis.RedFlagID(i + 1)
	}
	return p.RedFlags, nil
}

func (e *Engine) llmClauses(ctx context.Context, text string) ([]analysis.HiddenClause, error) {
	raw, err := e.llm.Complete(ctx, clausesSystemPrompt, buildClausesPrompt(text), analysisTemperature, true)
	if err != nil {
		return nil, err
	}
	var p clausesPayload
	if err := decodePayload(raw, &p); err != nil {
		return nil, err
	}
	for i := range p.HiddenClauses {
		p.HiddenClauses[i].ID = analysis.HiddenClauseID(i + 1)
	}
	return p.HiddenClauses, nil
}

func (e *Engine) llmTerms(ctx context.Context, text string) ([]analysis.FinancialTerm, error) {
	raw, err := e.llm.Complete(ctx, termsSystemPrompt, buildTermsPrompt(text), analysisTemperature, true)
	if err != nil {
		return nil, err
	}
	var p termsPayload
	if err := decodePayload(raw, &p); err != nil {
		return nil, err
	}
	for i := range p.Terms {
		p.Terms[i].ID = analysis.FinancialTermID(i + 1)
	}
	return p.Terms, nil
}
