package heuristic

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/loanlens/loanlens/internal/domain/analysis"
	"github.com/loanlens/loanlens/internal/intelligence/docparse"
	"github.com/loanlens/loanlens/pkg/types/common"
)

// maxQuoteRunes caps the verbatim clause text carried in a result.
const maxQuoteRunes = 240

// clauseRule pairs a clause pattern with its plain-English reading. Rules
// with flags set also surface on the red-flags list.
type clauseRule struct {
	category       string
	title          string
	re             *regexp.Regexp
	summary        string
	plainEnglish   string
	impact         common.Severity
	section        string
	flags          bool
	flagSeverity   common.Severity
	recommendation string
}

var clauseRules = []clauseRule{
	{
		category:       "prepayment",
		title:          "Prepayment Penalty",
		re:             regexp.MustCompile(`(?i)pre-?payment (penalty|charge|fee)|early (payoff|settlement|termination) (fee|charge|penalty)|foreclosure charges`),
		summary:        "Paying the loan off early costs extra.",
		plainEnglish:   "If you pay back the loan before the agreed term ends, the lender charges you a fee for doing so.",
		impact:         common.SeverityHigh,
		section:        "Prepayment",
		flags:          true,
		flagSeverity:   common.SeverityHigh,
		recommendation: "Negotiate removal of the prepayment penalty, or plan to hold the loan to term.",
	},
	{
		category:       "arbitration",
		title:          "Mandatory Arbitration",
		re:             regexp.MustCompile(`(?i)(binding|mandatory) arbitration|arbitration (clause|proceedings?)|class action waiver`),
		summary:        "Disputes skip the courts and go to an arbitrator.",
		plainEnglish:   "If you disagree with the lender, you cannot sue in court. A private arbitrator decides, and their decision is final.",
		impact:         common.SeverityHigh,
		section:        "Dispute Resolution",
		flags:          true,
		flagSeverity:   common.SeverityHigh,
		recommendation: "Understand that signing waives your right to a court trial for disputes.",
	},
	{
		category:       "rates",
		title:          "Variable Interest Rate",
		re:             regexp.MustCompile(`(?i)(variable|floating|adjustable) (interest )?rate|rate (may|can|will) (change|increase|vary|be revised)`),
		summary:        "The interest rate can move after signing.",
		plainEnglish:   "Your rate is not fixed. The lender can raise it later, which raises your monthly payment.",
		impact:         common.SeverityMedium,
		section:        "Interest",
		flags:          true,
		flagSeverity:   common.SeverityMedium,
		recommendation: "Check whether the rate has a cap and how often it can be revised.",
	},
	{
		category:       "default",
		title:          "Acceleration on Default",
		re:             regexp.MustCompile(`(?i)accelerat(e|ion|ed)|immediately due and payable|cross-default`),
		summary:        "One missed payment can make the whole balance due.",
		plainEnglish:   "If you default, the lender can demand the entire remaining loan at once instead of the normal installments.",
		impact:         common.SeverityHigh,
		section:        "Default",
		flags:          true,
		flagSeverity:   common.SeverityMedium,
		recommendation: "Know the cure period and exactly what counts as a default event.",
	},
	{
		category:       "fees",
		title:          "Late Payment Charges",
		re:             regexp.MustCompile(`(?i)late (payment )?(fee|charge|penalty)|penal (interest|charges?)`),
		summary:        "Missed due dates carry extra charges.",
		plainEnglish:   "Paying after the due date adds a fee on top of your installment, and these can compound month over month.",
		impact:         common.SeverityMedium,
		section:        "Fees",
	},
	{
		category:     "insurance",
		title:        "Insurance Requirement",
		re:           regexp.MustCompile(`(?i)(required|mandatory|must (obtain|maintain))[^.\n]{0,40}insurance|insurance[^.\n]{0,40}(required|mandatory)`),
		summary:      "The loan requires you to carry insurance.",
		plainEnglish: "You must buy and keep an insurance policy as a loan condition. If you let it lapse, the lender may buy one for you at your cost.",
		impact:       common.SeverityMedium,
		section:      "Insurance",
	},
	{
		category:       "payment",
		title:          "Balloon Payment",
		re:             regexp.MustCompile(`(?i)balloon payment|lump[- ]sum payment at (the end|maturity)`),
		summary:        "A large final payment is due at the end of the term.",
		plainEnglish:   "The regular installments do not fully repay the loan. A much larger single payment is due at the end.",
		impact:         common.SeverityHigh,
		section:        "Repayment",
		flags:          true,
		flagSeverity:   common.SeverityHigh,
		recommendation: "Confirm the balloon amount and plan how you will cover it at maturity.",
	},
	{
		category:     "modification",
		title:        "Unilateral Terms Changes",
		re:           regexp.MustCompile(`(?i)(lender|bank) (may|reserves the right to) (change|modify|amend|revise)`),
		summary:      "The lender can change terms without your consent.",
		plainEnglish: "The lender may alter parts of this agreement on their own. You usually only find out through a notice.",
		impact:       common.SeverityMedium,
		section:      "General Terms",
	},
	{
		category:     "renewal",
		title:        "Automatic Renewal",
		re:           regexp.MustCompile(`(?i)automatic(ally)? renew(s|ed|al)?`),
		summary:      "The agreement renews by itself unless you act.",
		plainEnglish: "When the term ends, the agreement continues automatically unless you cancel within the notice window.",
		impact:       common.SeverityLow,
		section:      "Term",
	},
}

// HiddenClauses scans the document for the clause patterns and returns one
// entry per rule that matched, quoting the sentence around the first hit.
func (a *Analyzer) HiddenClauses(ex *docparse.Extraction) []analysis.HiddenClause {
	var out []analysis.HiddenClause
	for _, rule := range clauseRules {
		page, quote, ok := firstRuleMatch(ex, rule.re)
		if !ok {
			continue
		}
		out = append(out, analysis.HiddenClause{
			ID:           analysis.HiddenClauseID(len(out) + 1),
			Category:     rule.category,
			Title:        rule.title,
			Summary:      rule.summary,
			OriginalText: quote,
			PlainEnglish: rule.plainEnglish,
			Impact:       rule.impact,
			Location:     analysis.Location{Page: page, Section: rule.section},
		})
	}
	return out
}

// firstRuleMatch walks the pages in order and returns the page and the
// sentence around the first match of re.
func firstRuleMatch(ex *docparse.Extraction, re *regexp.Regexp) (int, string, bool) {
	for _, p := range ex.Pages {
		text := p.Text()
		loc := re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		return p.Page, sentenceAround(text, loc[0], loc[1]), true
	}
	return 0, "", false
}

// sentenceAround expands [start,end) to the surrounding sentence, capped at
// maxQuoteRunes with a trailing ellipsis.
func sentenceAround(text string, start, end int) string {
	from := start
	for from > 0 && text[from-1] != '.' && text[from-1] != '\n' {
		from--
	}
	to := end
	for to < len(text) && text[to] != '\n' {
		if text[to] == '.' {
			to++
			break
		}
		to++
	}

	quote := strings.TrimSpace(text[from:to])
	if utf8.RuneCountInString(quote) > maxQuoteRunes {
		runes := []rune(quote)
		quote = strings.TrimSpace(string(runes[:maxQuoteRunes])) + "..."
	}
	return quote
}
