package docparse

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/loanlens/loanlens/internal/domain/document"
)

// ---------------------------------------------------------------------------
// Numeric candidate scan
// ---------------------------------------------------------------------------
//
// Loan documents bury their figures in prose. The scan pairs a telling
// keyword with a nearby value on the same line and keeps every plausible hit
// with its surrounding context, leaving disambiguation to the analyzer.

// NumericCandidate is one number found near a keyword, with enough context
// for a later stage to judge it.
type NumericCandidate struct {
	Value   float64 `json:"value"`
	RawText string  `json:"raw_text"`
	Page    int     `json:"page"`
	Context string  `json:"context"`
}

// Candidates groups numeric candidates by the loan figure they may be.
type Candidates struct {
	LoanAmounts     []NumericCandidate `json:"loan_amounts"`
	InterestRates   []NumericCandidate `json:"interest_rates"`
	TermMonths      []NumericCandidate `json:"term_months"`
	MonthlyPayments []NumericCandidate `json:"monthly_payments"`
	Fees            []NumericCandidate `json:"fees"`
}

// Empty reports whether the scan found nothing at all.
func (c *Candidates) Empty() bool {
	return len(c.LoanAmounts) == 0 && len(c.InterestRates) == 0 &&
		len(c.TermMonths) == 0 && len(c.MonthlyPayments) == 0 && len(c.Fees) == 0
}

// Value patterns. Currency covers Western ($25,000.00), Indian (₹25,00,000,
// Rs 25,00,000) and plain (25000) forms; the amount itself is group 1.
const (
	currencyPattern = `(?:(?i:rs\.?)|₹|\$)?\s*([\d,]+(?:\.\d{2})?)`
	percentPattern  = `(\d+(?:\.\d+)?)\s*(?:%|percent)`
	termPattern     = `(\d+)\s*[-\s]?(?:months?|mos?\.?)|(\d+)\s*[-\s]?(?:years?|yrs?\.?)`
)

var (
	loanKeywords = []string{
		`loan\s*amount`, `principal`, `amount\s*financed`, `total\s*loan`,
		`borrowing`, `credit\s*amount`, `loan\s*sanctioned`, `sanctioned\s*amount`,
	}
	interestKeywords = []string{
		`interest\s*rate`, `annual\s*percentage\s*rate`, `apr`,
		`rate\s*of\s*interest`, `fixed\s*rate`, `variable\s*rate`,
	}
	paymentKeywords = []string{
		`monthly\s*payment`, `payment\s*amount`, `installment`,
		`periodic\s*payment`, `emi`, `monthly\s*installment`,
	}
	termKeywords = []string{
		`loan\s*term`, `repayment\s*period`, `tenor`, `duration`,
		`maturity`, `term\s*of\s*loan`,
	}
	feeKeywords = []string{
		`processing\s*fee`, `origination\s*fee`, `late\s*fee`,
		`prepayment\s*penalty`, `service\s*charge`, `closing\s*cost`,
	}
)

var (
	reLoanAmount = keywordValuePattern(loanKeywords, currencyPattern)
	reInterest   = keywordValuePattern(interestKeywords, percentPattern)
	rePayment    = keywordValuePattern(paymentKeywords, currencyPattern)
	reFee        = keywordValuePattern(feeKeywords, currencyPattern)
	reTerm       = regexp.MustCompile(`(?i)(?:` + strings.Join(termKeywords, "|") + `)[^0-9]*` + termPattern)
)

// keywordValuePattern matches any of the keywords followed within ~50 chars
// on the same line by the value pattern.
func keywordValuePattern(keywords []string, value string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:` + strings.Join(keywords, "|") + `)[^\n]{0,50}?` + value)
}

// Plausibility windows keep obviously wrong captures (dates, clause numbers,
// page totals) out of the candidate set.
const (
	minLoanAmount     = 1_000
	maxLoanAmount     = 10_000_000
	minInterestRate   = 0.01
	maxInterestRate   = 50
	minMonthlyPayment = 50
	maxMonthlyPayment = 100_000
	minTermMonths     = 6
	maxTermMonths     = 480
	minFeeAmount      = 0.01
	maxFeeAmount      = 50_000
)

// ScanNumbers walks every page and collects plausible loan figures.
func ScanNumbers(pages []document.PageText) *Candidates {
	c := &Candidates{}
	for _, p := range pages {
		scanPage(c, p.Page, p.Text())
	}
	return c
}

func scanPage(c *Candidates, page int, text string) {
	appendCurrency(&c.LoanAmounts, reLoanAmount, text, page, minLoanAmount, maxLoanAmount)
	appendCurrency(&c.MonthlyPayments, rePayment, text, page, minMonthlyPayment, maxMonthlyPayment)
	appendCurrency(&c.Fees, reFee, text, page, minFeeAmount, maxFeeAmount)

	for _, m := range reInterest.FindAllStringSubmatchIndex(text, -1) {
		v, err := strconv.ParseFloat(text[m[2]:m[3]], 64)
		if err != nil || v < minInterestRate || v > maxInterestRate {
			continue
		}
		c.InterestRates = append(c.InterestRates, candidateAt(text, m, page, v))
	}

	for _, m := range reTerm.FindAllStringSubmatchIndex(text, -1) {
		months := 0
		switch {
		case m[2] >= 0:
			months, _ = strconv.Atoi(text[m[2]:m[3]])
		case m[4] >= 0:
			years, _ := strconv.Atoi(text[m[4]:m[5]])
			months = years * 12
		}
		if months < minTermMonths || months > maxTermMonths {
			continue
		}
		c.TermMonths = append(c.TermMonths, candidateAt(text, m, page, float64(months)))
	}
}

func appendCurrency(dst *[]NumericCandidate, re *regexp.Regexp, text string, page int, min, max float64) {
	for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
		v, ok := parseCurrency(text[m[2]:m[3]])
		if !ok || v < min || v > max {
			continue
		}
		*dst = append(*dst, candidateAt(text, m, page, v))
	}
}

func candidateAt(text string, m []int, page int, value float64) NumericCandidate {
	return NumericCandidate{
		Value:   value,
		RawText: text[m[0]:m[1]],
		Page:    page,
		Context: surrounding(text, m[0], m[1]),
	}
}

// parseCurrency reads "$25,000.00", "Rs 25,00,000" or plain "25000" amounts.
func parseCurrency(raw string) (float64, bool) {
	s := strings.ToUpper(raw)
	for _, junk := range []string{"$", "₹", "RS.", "RS", ",", " "} {
		s = strings.ReplaceAll(s, junk, "")
	}
	s = strings.Trim(s, ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// surrounding returns ~100 chars of context either side of [start,end),
// whitespace-collapsed, with ellipses marking the cut edges.
func surrounding(text string, start, end int) string {
	const window = 100
	ctxStart, ctxEnd := start-window, end+window
	if ctxStart < 0 {
		ctxStart = 0
	}
	if ctxEnd > len(text) {
		ctxEnd = len(text)
	}
	for ctxStart > 0 && !utf8.RuneStart(text[ctxStart]) {
		ctxStart--
	}
	for ctxEnd < len(text) && !utf8.RuneStart(text[ctxEnd]) {
		ctxEnd++
	}

	out := strings.Join(strings.Fields(text[ctxStart:ctxEnd]), " ")
	if ctxStart > 0 {
		out = "..." + out
	}
	if ctxEnd < len(text) {
		out += "..."
	}
	return out
}
