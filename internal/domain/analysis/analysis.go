// Package analysis implements the Analysis bounded context: the four result
// categories produced for a processed loan document (summary, red flags,
// hidden clauses, financial terms). The shapes here are the wire contract;
// the analyzer backends in internal/intelligence produce them and the read
// API serves them verbatim.
package analysis

import (
	"fmt"
	"strings"

	"github.com/loanlens/loanlens/pkg/errors"
	"github.com/loanlens/loanlens/pkg/types/common"
)

// HighlightType classifies a summary highlight chip.
type HighlightType string

const (
	HighlightPositive HighlightType = "positive"
	HighlightNegative HighlightType = "negative"
	HighlightWarning  HighlightType = "warning"
)

// Valid reports whether t is a known highlight type.
func (t HighlightType) Valid() bool {
	switch t {
	case HighlightPositive, HighlightNegative, HighlightWarning:
		return true
	}
	return false
}

// Location points at where in the document an item was found.
type Location struct {
	Page    int    `json:"page"`
	Section string `json:"section"`
}

// Valid reports whether the location points at a plausible page.
func (l Location) Valid() bool { return l.Page >= 1 }

// KeyNumbers are the core financial figures of the loan.
type KeyNumbers struct {
	TotalLoan      float64  `json:"total_loan"`
	MonthlyPayment float64  `json:"monthly_payment"`
	InterestRate   float64  `json:"interest_rate"`
	TermMonths     int      `json:"term_months"`
	TotalInterest  float64  `json:"total_interest"`
	Fees           *float64 `json:"fees,omitempty"`
}

// Highlight is one chip on the summary card.
type Highlight struct {
	Type HighlightType `json:"type"`
	Text string        `json:"text"`
}

// Summary is the headline analysis of the document.
type Summary struct {
	DocumentType string      `json:"document_type"`
	Overview     string      `json:"overview"`
	KeyNumbers   KeyNumbers  `json:"key_numbers"`
	Highlights   []Highlight `json:"highlights"`
}

// RedFlag is a problematic clause or condition worth the borrower's
// attention.
type RedFlag struct {
	ID             string          `json:"id"`
	Severity       common.Severity `json:"severity"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Location       Location        `json:"location"`
	Recommendation string          `json:"recommendation"`
}

// Snippet returns the text used to locate the flag on its page. Red flags
// carry no verbatim quote, so the description doubles as the candidate.
func (f RedFlag) Snippet() string { return f.Description }

// HiddenClause is a buried or hard-to-read clause with a plain-English
// translation.
type HiddenClause struct {
	ID           string          `json:"id"`
	Category     string          `json:"category"`
	Title        string          `json:"title"`
	Summary      string          `json:"summary"`
	OriginalText string          `json:"original_text"`
	PlainEnglish string          `json:"plain_english"`
	Impact       common.Severity `json:"impact"`
	Location     Location        `json:"location"`
}

// Snippet returns the verbatim clause text, the best possible locator.
func (c HiddenClause) Snippet() string { return c.OriginalText }

// TermExample illustrates a financial term with the document's own numbers.
type TermExample struct {
	Icon  string `json:"icon"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// FinancialTerm is a piece of jargon explained in plain English.
type FinancialTerm struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	FullName         string      `json:"full_name"`
	ShortDescription string      `json:"short_description"`
	Definition       string      `json:"definition"`
	Example          TermExample `json:"example"`
	YourValue        string      `json:"your_value"`
	Location         Location    `json:"location"`
}

// Snippet returns the document-derived value ("13.2%", "₹2,400"); short but
// usually distinctive enough for the token tier to anchor on.
func (t FinancialTerm) Snippet() string { return t.YourValue }

// Reference points a chat answer back at an analysis record. ClauseID is
// empty when the reference targets prose rather than a cataloged item.
type Reference struct {
	ClauseID string `json:"clause_id,omitempty"`
	Page     int    `json:"page"`
	Section  string `json:"section"`
}

// MatchesSearch reports whether the term matches a case-insensitive search
// query across its name, full name, and description fields.
func (t FinancialTerm) MatchesSearch(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	for _, field := range []string{t.Name, t.FullName, t.ShortDescription, t.Definition} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// Bundle is everything the analyzer produced for one document.
type Bundle struct {
	DocumentID common.ID       `json:"document_id"`
	Summary    *Summary        `json:"summary,omitempty"`
	RedFlags   []RedFlag       `json:"red_flags"`
	Clauses    []HiddenClause  `json:"hidden_clauses"`
	Terms      []FinancialTerm `json:"financial_terms"`
}

// Identifier formats follow the wire contract: rf_001, hc_001, term_001.
func RedFlagID(n int) string       { return fmt.Sprintf("rf_%03d", n) }
func HiddenClauseID(n int) string  { return fmt.Sprintf("hc_%03d", n) }
func FinancialTermID(n int) string { return fmt.Sprintf("term_%03d", n) }

// Sanitize normalizes analyzer output in place so malformed entries from an
// LLM backend never reach storage: ids are renumbered sequentially, unknown
// severities and highlight types are demoted to safe values, and locations
// are clamped to the document's page range.
func (b *Bundle) Sanitize(pageCount int) {
	if b.Summary != nil {
		kept := b.Summary.Highlights[:0]
		for _, h := range b.Summary.Highlights {
			if strings.TrimSpace(h.Text) == "" {
				continue
			}
			if !h.Type.Valid() {
				h.Type = HighlightWarning
			}
			kept = append(kept, h)
		}
		b.Summary.Highlights = kept
	}

	flags := b.RedFlags[:0]
	for _, f := range b.RedFlags {
		if strings.TrimSpace(f.Title) == "" {
			continue
		}
		if !f.Severity.Valid() {
			f.Severity = common.SeverityMedium
		}
		f.Location = clampLocation(f.Location, pageCount)
		f.ID = RedFlagID(len(flags) + 1)
		flags = append(flags, f)
	}
	b.RedFlags = flags

	clauses := b.Clauses[:0]
	for _, c := range b.Clauses {
		if strings.TrimSpace(c.Title) == "" {
			continue
		}
		if !c.Impact.Valid() {
			c.Impact = common.SeverityMedium
		}
		c.Location = clampLocation(c.Location, pageCount)
		c.ID = HiddenClauseID(len(clauses) + 1)
		clauses = append(clauses, c)
	}
	b.Clauses = clauses

	terms := b.Terms[:0]
	for _, tm := range b.Terms {
		if strings.TrimSpace(tm.Name) == "" {
			continue
		}
		tm.Location = clampLocation(tm.Location, pageCount)
		tm.ID = FinancialTermID(len(terms) + 1)
		terms = append(terms, tm)
	}
	b.Terms = terms
}

func clampLocation(l Location, pageCount int) Location {
	if l.Page < 1 {
		l.Page = 1
	}
	if pageCount > 0 && l.Page > pageCount {
		l.Page = pageCount
	}
	return l
}

// Validate checks a sanitized bundle for contract violations. It is the
// storage layer's guard, not a substitute for Sanitize.
func (b *Bundle) Validate() error {
	if b.DocumentID == "" {
		return errors.InvalidParam("analysis bundle requires a document id")
	}
	for _, f := range b.RedFlags {
		if !f.Severity.Valid() {
			return errors.Validation(fmt.Sprintf("red flag %s has invalid severity %q", f.ID, f.Severity))
		}
		if !f.Location.Valid() {
			return errors.Validation(fmt.Sprintf("red flag %s has invalid location page %d", f.ID, f.Location.Page))
		}
	}
	for _, c := range b.Clauses {
		if !c.Impact.Valid() {
			return errors.Validation(fmt.Sprintf("hidden clause %s has invalid impact %q", c.ID, c.Impact))
		}
		if !c.Location.Valid() {
			return errors.Validation(fmt.Sprintf("hidden clause %s has invalid location page %d", c.ID, c.Location.Page))
		}
	}
	for _, tm := range b.Terms {
		if !tm.Location.Valid() {
			return errors.Validation(fmt.Sprintf("financial term %s has invalid location page %d", tm.ID, tm.Location.Page))
		}
	}
	return nil
}
