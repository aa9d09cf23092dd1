package analyzer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/loanlens/loanlens/internal/domain/analysis"
	"github.com/loanlens/loanlens/internal/intelligence/docparse"
	"github.com/loanlens/loanlens/pkg/errors"
)

// How much of the analysis catalog and history a chat prompt carries.
const (
	chatContextFlags   = 5
	chatContextClauses = 5
	chatHistoryTurns   = 5
)

const summarySystemPrompt = `You are a financial document analyst specializing in loan agreements.
Extract the key numbers and write a summary a non-expert borrower can follow.

Guidelines:
1. The numeric candidates provided were found by regex and may contain false positives. Verify each value against its context before trusting it.
2. When several candidates exist for one field, prefer the one in the most authoritative context.
3. If a value is not clearly stated in the document, use null rather than guessing.
4. Judge highlights against typical market terms: "positive" for fixed rates, no prepayment penalty or modest fees; "negative" for high interest rates or large fees; "warning" for prepayment penalties, variable rates, balloon payments or arbitration clauses.`

const redFlagsSystemPrompt = `You are a consumer protection analyst specializing in loan agreements.
Identify red flags: terms that are unfavorable, unusual, or potentially harmful to the borrower.

Look for: excessive fees, penalty clauses (prepayment, acceleration, cross-default), interest problems (above-market rates, uncapped variable rates), hidden costs (mandatory insurance, balloon payments), legal concerns (mandatory arbitration, waiver of rights), and unfair terms (unilateral modification, automatic renewal).

Severity: "high" when it could cost the borrower significant money or rights, "medium" for above-normal but not extreme terms, "low" for minor concerns worth noting.

Be specific about why something is a red flag, give an actionable recommendation, and include the page and section. If there are no red flags, return an empty array.`

const clausesSystemPrompt = `You are a legal document analyst who makes loan agreements understandable to everyday people.
Find hidden clauses: legal language that is buried, complex, or easy to miss and could affect the borrower.

Look for: prepayment terms, default and acceleration provisions, arbitration clauses and class action waivers, fee escalation, insurance requirements, collateral provisions, unilateral modification rights, and liability waivers.

For each clause quote the actual text from the document (abbreviate long passages with ...), translate it into plain English, and explain the real-world impact. Impact: "high" when it could significantly affect the borrower's finances or rights, "medium" when important but manageable, "low" when merely good to know. If there are no hidden clauses, return an empty array.`

const termsSystemPrompt = `You are a financial educator who makes loan documents understandable.
Identify financial terms a borrower might not understand and explain them in plain English.

Look for loan terms (APR, Principal, EMI, Tenure, Collateral), fees and charges, legal terms (Default, Acceleration, Foreclosure, Lien), payment terms (Amortization, Balloon Payment, Grace Period), and rate types (Fixed, Variable, Floating).

Only extract terms that actually appear in this document. Explain each as if the borrower has no financial background, give a contextual example using this document's actual values, and report the document's own value for the term. Icons: 💡 for informational examples, ⚠️ for cautions, ✅ for positive examples. If no terms need explaining, return an empty array.`

const chatSystemPrompt = `You are a helpful assistant that answers questions about loan documents.
Help the borrower understand their agreement by answering in plain, clear language.

Guidelines:
1. Answer only from the document text provided; if the information is not there, say so clearly.
2. Use simple, non-technical language and cite page numbers and section names when referencing the document.
3. Use the document's actual values in examples where relevant.
4. When a previously identified item is relevant, reference it by its id (for example hc_001 or rf_001).
5. Be supportive and non-judgmental; borrowers may be stressed about this decision.`

var promptPrinter = message.NewPrinter(language.English)

// buildSummaryPrompt lays out the candidate scan next to the document text so
// the model can cross-check figures instead of re-deriving them.
func buildSummaryPrompt(text string, c *docparse.Candidates) string {
	var b strings.Builder
	b.WriteString("Analyze this loan document and extract the key numbers.\n\n")
	b.WriteString("=== EXTRACTED NUMERIC CANDIDATES ===\n")
	b.WriteString(candidatesSection(c))
	b.WriteString("\n\n=== FULL DOCUMENT TEXT ===\n")
	b.WriteString(text)
	b.WriteString(`

=== TASK ===
1. Review the candidates and the document text.
2. Select the correct loan amount, interest rate and term.
3. Report the monthly payment only if the document states one; do not calculate it.
4. Write an overview and highlights for the borrower.

Return a JSON object with this exact structure:
{
  "document_type": "string",
  "overview": "string, two or three sentences",
  "key_numbers": {
    "total_loan": number,
    "interest_rate": number,
    "term_months": integer,
    "monthly_payment": number or null,
    "fees": number or null
  },
  "highlights": [{"type": "positive|negative|warning", "text": "string"}]
}`)
	return b.String()
}

func candidatesSection(c *docparse.Candidates) string {
	var b strings.Builder
	money := func(title string, list []docparse.NumericCandidate) {
		if len(list) == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(title + ":\n")
		for _, cand := range list {
			promptPrinter.Fprintf(&b, "  - $%.2f (page %d)\n", cand.Value, cand.Page)
			fmt.Fprintf(&b, "    Context: %q\n", cand.Context)
		}
	}

	money("LOAN AMOUNT CANDIDATES", c.LoanAmounts)

	if len(c.InterestRates) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("INTEREST RATE CANDIDATES:\n")
		for _, cand := range c.InterestRates {
			fmt.Fprintf(&b, "  - %s%% (page %d)\n", strconv.FormatFloat(cand.Value, 'f', -1, 64), cand.Page)
			fmt.Fprintf(&b, "    Context: %q\n", cand.Context)
		}
	}
	if len(c.TermMonths) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("LOAN TERM CANDIDATES:\n")
		for _, cand := range c.TermMonths {
			fmt.Fprintf(&b, "  - %d months (page %d)\n", int(cand.Value), cand.Page)
			fmt.Fprintf(&b, "    Context: %q\n", cand.Context)
		}
	}

	money("MONTHLY PAYMENT CANDIDATES", c.MonthlyPayments)
	money("FEE CANDIDATES", c.Fees)

	if b.Len() == 0 {
		return "No numeric candidates found via regex; extract the figures from the document text directly."
	}
	return strings.TrimRight(b.String(), "\n")
}

func buildRedFlagsPrompt(text string) string {
	return `Analyze this loan document for red flags: terms that are unfavorable or potentially harmful to the borrower.

=== DOCUMENT TEXT ===
` + text + `

=== TASK ===
Read the whole document, identify terms unfavorable to the borrower, and compare fees, rates and terms against industry standards.

Return a JSON object with this exact structure:
{
  "red_flags": [
    {
      "severity": "high|medium|low",
      "title": "string",
      "description": "string, why this is problematic",
      "location": {"page": integer, "section": "string"},
      "recommendation": "string, actionable advice"
    }
  ]
}

If no red flags are found, return {"red_flags": []}`
}

func buildClausesPrompt(text string) string {
	return `Analyze this loan document for hidden clauses: complex legal language that borrowers might miss or not understand.

=== DOCUMENT TEXT ===
` + text + `

=== TASK ===
Identify clauses written in dense legal language, buried in long paragraphs, or easy to overlook, that could have a significant impact on the borrower.

Return a JSON object with this exact structure:
{
  "hidden_clauses": [
    {
      "category": "string, e.g. prepayment, arbitration, fees, default, insurance, modification",
      "title": "string",
      "summary": "string, one line",
      "original_text": "string, exact text from the document",
      "plain_english": "string, simple translation",
      "impact": "high|medium|low",
      "location": {"page": integer, "section": "string"}
    }
  ]
}

If no hidden clauses are found, return {"hidden_clauses": []}`
}

func buildTermsPrompt(text string) string {
	return `Analyze this loan document and extract the financial and legal terms that need explanation.

=== DOCUMENT TEXT ===
` + text + `

=== TASK ===
Scan the document for financial terminology a borrower might not understand.

Return a JSON object with this exact structure:
{
  "terms": [
    {
      "name": "string, the term as it appears (e.g. APR)",
      "full_name": "string, expanded name (e.g. Annual Percentage Rate)",
      "short_description": "string, one line",
      "definition": "string, plain English explanation",
      "example": {
        "icon": "💡|⚠️|✅",
        "title": "string",
        "text": "string, example using this document's actual values"
      },
      "your_value": "string, the value from this document (e.g. '13.2%', '$500'), or empty",
      "location": {"page": integer, "section": "string"}
    }
  ]
}

If no terms need explaining, return {"terms": []}`
}

// buildChatPrompt assembles the conversation context: document text, the
// stored analysis catalog (so answers can cite rf_/hc_ ids), and the recent
// history, followed by the question.
func buildChatPrompt(text string, b *analysis.Bundle, history []Turn, message string) string {
	parts := []string{"=== LOAN DOCUMENT TEXT ===\n" + text}

	if b != nil && b.Summary != nil {
		var sb strings.Builder
		sb.WriteString("=== DOCUMENT SUMMARY ===\n")
		sb.WriteString("Type: " + b.Summary.DocumentType + "\n")
		sb.WriteString("Overview: " + b.Summary.Overview + "\n")
		promptPrinter.Fprintf(&sb, "Loan Amount: $%.2f\n", b.Summary.KeyNumbers.TotalLoan)
		fmt.Fprintf(&sb, "Interest Rate: %s%%\n", strconv.FormatFloat(b.Summary.KeyNumbers.InterestRate, 'f', -1, 64))
		fmt.Fprintf(&sb, "Term: %d months", b.Summary.KeyNumbers.TermMonths)
		parts = append(parts, sb.String())
	}

	if b != nil && len(b.RedFlags) > 0 {
		flags := b.RedFlags
		if len(flags) > chatContextFlags {
			flags = flags[:chatContextFlags]
		}
		var sb strings.Builder
		sb.WriteString("=== RED FLAGS IDENTIFIED ===")
		for _, f := range flags {
			fmt.Fprintf(&sb, "\n- [%s] %s: %s (Page %d)", f.ID, f.Title, f.Description, f.Location.Page)
		}
		parts = append(parts, sb.String())
	}

	if b != nil && len(b.Clauses) > 0 {
		clauses := b.Clauses
		if len(clauses) > chatContextClauses {
			clauses = clauses[:chatContextClauses]
		}
		var sb strings.Builder
		sb.WriteString("=== HIDDEN CLAUSES IDENTIFIED ===")
		for _, c := range clauses {
			fmt.Fprintf(&sb, "\n- [%s] %s: %s (Page %d)", c.ID, c.Title, c.PlainEnglish, c.Location.Page)
		}
		parts = append(parts, sb.String())
	}

	if len(history) > 0 {
		turns := history
		if len(turns) > chatHistoryTurns {
			turns = turns[len(turns)-chatHistoryTurns:]
		}
		var sb strings.Builder
		sb.WriteString("=== PREVIOUS CONVERSATION ===")
		for _, turn := range turns {
			fmt.Fprintf(&sb, "\nUser: %s\nAssistant: %s", turn.Message, turn.Response)
		}
		parts = append(parts, sb.String())
	}

	parts = append(parts, "=== CURRENT QUESTION ===\n"+message+
		"\n\nAnswer this question about the loan document. Be specific, cite page numbers and sections when referencing the document, and use plain English.")
	return strings.Join(parts, "\n\n")
}

// Payload shapes the model is asked to return. Ids are assigned after
// decoding; the model never invents them.
type summaryPayload struct {
	DocumentType string `json:"document_type"`
	Overview     string `json:"overview"`
	KeyNumbers   struct {
		TotalLoan      float64  `json:"total_loan"`
		InterestRate   float64  `json:"interest_rate"`
		TermMonths     int      `json:"term_months"`
		MonthlyPayment *float64 `json:"monthly_payment"`
		Fees           *float64 `json:"fees"`
	} `json:"key_numbers"`
	Highlights []analysis.Highlight `json:"highlights"`
}

type redFlagsPayload struct {
	RedFlags []analysis.RedFlag `json:"red_flags"`
}

type clausesPayload struct {
	HiddenClauses []analysis.HiddenClause `json:"hidden_clauses"`
}

type termsPayload struct {
	Terms []analysis.FinancialTerm `json:"terms"`
}

// extractJSON slices the first balanced-looking object out of a model reply,
// tolerating prose or code fences around it.
func extractJSON(s string) ([]byte, error) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return nil, errors.New(errors.ErrCodeAnalyzerBadResponse, "no JSON object in analyzer response")
	}
	return []byte(s[start : end+1]), nil
}

func decodePayload(raw string, v interface{}) error {
	data, err := extractJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, errors.ErrCodeAnalyzerBadResponse, "decode analyzer payload")
	}
	return nil
}
