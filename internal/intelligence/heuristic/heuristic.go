// Package heuristic derives a best-effort analysis bundle from the numeric
// scan and clause patterns alone, with no model call. It is the fallback
// when no LLM backend is configured or a call fails, and the engine behind
// offline CLI analysis.
package heuristic

import (
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/loanlens/loanlens/internal/domain/analysis"
	"github.com/loanlens/loanlens/internal/intelligence/docparse"
	"github.com/loanlens/loanlens/pkg/types/common"
)

// Rate and fee judgment lines, in percent. Rates above the flag line are
// called out hard; fees are judged as a share of the principal.
const (
	competitiveRate   = 6
	aboveAverageRate  = 10
	veryHighRate      = 15
	longTermMonths    = 60
	highFeeShare      = 3
	excessiveFeeShare = 5
)

// Analyzer produces analysis results from scanned candidates and clause
// patterns.
type Analyzer struct{}

// New returns a heuristic Analyzer.
func New() *Analyzer { return &Analyzer{} }

// Analyze builds a complete bundle for one extracted document.
func (a *Analyzer) Analyze(docID common.ID, ex *docparse.Extraction) *analysis.Bundle {
	cands := docparse.ScanNumbers(ex.Pages)
	return &analysis.Bundle{
		DocumentID: docID,
		Summary:    a.Summary(ex, cands),
		RedFlags:   a.RedFlags(ex, cands),
		Clauses:    a.HiddenClauses(ex),
		Terms:      a.FinancialTerms(ex, cands),
	}
}

// Summary picks the first plausible candidate for each key figure and
// derives the payment numbers. When the scan found too little, it returns a
// minimal summary that says so instead of guessing.
func (a *Analyzer) Summary(ex *docparse.Extraction, c *docparse.Candidates) *analysis.Summary {
	if len(c.LoanAmounts) == 0 || len(c.InterestRates) == 0 || len(c.TermMonths) == 0 {
		return &analysis.Summary{
			DocumentType: "Loan Agreement",
			Overview:     "The document did not yield enough labeled figures for an automated summary. Review the key numbers manually.",
			Highlights: []analysis.Highlight{
				{Type: analysis.HighlightWarning, Text: "Limited analysis available"},
			},
		}
	}

	loan := c.LoanAmounts[0].Value
	rate := c.InterestRates[0].Value
	term := int(c.TermMonths[0].Value)

	payment := docparse.Round2(docparse.MonthlyPayment(loan, rate, term))
	interest := docparse.Round2(docparse.TotalInterest(loan, payment, term))

	s := &analysis.Summary{
		DocumentType: "Loan Agreement",
		Overview: "This is a loan for " + moneyString(loan) + " at " + rateString(rate) +
			" interest over " + strconv.Itoa(term) + " months.",
		KeyNumbers: analysis.KeyNumbers{
			TotalLoan:      loan,
			MonthlyPayment: payment,
			InterestRate:   rate,
			TermMonths:     term,
			TotalInterest:  interest,
		},
	}

	if rate > aboveAverageRate {
		s.Highlights = append(s.Highlights, analysis.Highlight{Type: analysis.HighlightNegative, Text: "High Interest Rate"})
	} else if rate < competitiveRate {
		s.Highlights = append(s.Highlights, analysis.Highlight{Type: analysis.HighlightPositive, Text: "Competitive Interest Rate"})
	}
	if term >= longTermMonths {
		s.Highlights = append(s.Highlights, analysis.Highlight{Type: analysis.HighlightWarning, Text: "Long Repayment Term"})
	}
	if total := totalFees(c); total > loan*highFeeShare/100 {
		s.Highlights = append(s.Highlights, analysis.Highlight{Type: analysis.HighlightNegative, Text: "High Fees"})
		fees := docparse.Round2(total)
		s.KeyNumbers.Fees = &fees
	}
	if len(s.Highlights) == 0 {
		s.Highlights = []analysis.Highlight{{Type: analysis.HighlightWarning, Text: "Limited analysis available"}}
	}
	return s
}

// RedFlags applies the rate and fee judgment lines to every candidate, then
// adds flags for risky clause patterns found in the text.
func (a *Analyzer) RedFlags(ex *docparse.Extraction, c *docparse.Candidates) []analysis.RedFlag {
	var flags []analysis.RedFlag
	add := func(f analysis.RedFlag) {
		f.ID = analysis.RedFlagID(len(flags) + 1)
		flags = append(flags, f)
	}

	for _, rate := range c.InterestRates {
		switch {
		case rate.Value > veryHighRate:
			add(analysis.RedFlag{
				Severity:       common.SeverityHigh,
				Title:          "Very High Interest Rate",
				Description:    "Interest rate of " + rateString(rate.Value) + " is significantly above typical market rates.",
				Location:       analysis.Location{Page: rate.Page, Section: "Interest Rate Section"},
				Recommendation: "Shop around for better rates or negotiate with the lender.",
			})
		case rate.Value > aboveAverageRate:
			add(analysis.RedFlag{
				Severity:       common.SeverityMedium,
				Title:          "Above Average Interest Rate",
				Description:    "Interest rate of " + rateString(rate.Value) + " is higher than average market rates.",
				Location:       analysis.Location{Page: rate.Page, Section: "Interest Rate Section"},
				Recommendation: "Consider comparing with other lenders before signing.",
			})
		}
	}

	if len(c.LoanAmounts) > 0 {
		loan := c.LoanAmounts[0].Value
		for _, fee := range c.Fees {
			share := fee.Value / loan * 100
			if share > excessiveFeeShare {
				add(analysis.RedFlag{
					Severity: common.SeverityHigh,
					Title:    "Excessive Fee",
					Description: "Fee of " + moneyString(fee.Value) + " represents " +
						strconv.FormatFloat(share, 'f', 1, 64) + "% of the loan amount.",
					Location:       analysis.Location{Page: fee.Page, Section: "Fees Section"},
					Recommendation: "Negotiate lower fees or look for lenders with more reasonable fee structures.",
				})
			}
		}
	}

	for _, rule := range clauseRules {
		if !rule.flags {
			continue
		}
		page, quote, ok := firstRuleMatch(ex, rule.re)
		if !ok {
			continue
		}
		add(analysis.RedFlag{
			Severity:       rule.flagSeverity,
			Title:          rule.title,
			Description:    quote,
			Location:       analysis.Location{Page: page, Section: rule.section},
			Recommendation: rule.recommendation,
		})
	}

	if len(flags) == 0 {
		add(analysis.RedFlag{
			Severity:       common.SeverityLow,
			Title:          "Limited Analysis Available",
			Description:    "Automated review found no obvious red flags. A manual review of the full document is still recommended.",
			Location:       analysis.Location{Page: 1, Section: "General"},
			Recommendation: "Have the agreement reviewed before signing.",
		})
	}
	return flags
}

func totalFees(c *docparse.Candidates) float64 {
	var total float64
	for _, f := range c.Fees {
		total += f.Value
	}
	return total
}

var enPrinter = message.NewPrinter(language.English)

func moneyString(v float64) string { return enPrinter.Sprintf("$%.2f", v) }

func rateString(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) + "%" }
