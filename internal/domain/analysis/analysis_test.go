package analysis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loanlens/loanlens/pkg/types/common"
)

func TestIdentifierFormats(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "rf_001", RedFlagID(1))
	assert.Equal(t, "hc_012", HiddenClauseID(12))
	assert.Equal(t, "term_123", FinancialTermID(123))
}

func TestSnippetSources(t *testing.T) {
	t.Parallel()

	f := RedFlag{Description: "Late fee of 5% per month compounds"}
	assert.Equal(t, f.Description, f.Snippet())

	c := HiddenClause{OriginalText: "Borrower waives the right to trial by jury"}
	assert.Equal(t, c.OriginalText, c.Snippet())

	term := FinancialTerm{YourValue: "13.2%"}
	assert.Equal(t, "13.2%", term.Snippet())
}

func TestFinancialTerm_MatchesSearch(t *testing.T) {
	t.Parallel()

	term := FinancialTerm{
		Name:             "APR",
		FullName:         "Annual Percentage Rate",
		ShortDescription: "the true yearly cost of the loan",
		Definition:       "Includes interest plus mandatory fees.",
	}

	assert.True(t, term.MatchesSearch(""))
	assert.True(t, term.MatchesSearch("apr"))
	assert.True(t, term.MatchesSearch("PERCENTAGE"))
	assert.True(t, term.MatchesSearch("yearly cost"))
	assert.True(t, term.MatchesSearch("  fees "))
	assert.False(t, term.MatchesSearch("balloon"))
}

func TestBundle_Sanitize(t *testing.T) {
	t.Parallel()

	fees := 450.0
	b := &Bundle{
		DocumentID: "doc_1a2b3c4d5e6f",
		Summary: &Summary{
			DocumentType: "Personal Loan Agreement",
			Overview:     "A fixed-rate personal loan.",
			KeyNumbers:   KeyNumbers{TotalLoan: 25000, Fees: &fees},
			Highlights: []Highlight{
				{Type: "positive", Text: "No prepayment penalty"},
				{Type: "shiny", Text: "Unknown type gets demoted"},
				{Type: "negative", Text: "   "},
			},
		},
		RedFlags: []RedFlag{
			{ID: "rf_999", Severity: "catastrophic", Title: "Excessive late fee", Location: Location{Page: 42}},
			{Title: "   "},
			{Severity: common.SeverityLow, Title: "Variable rate reset", Location: Location{Page: 0}},
		},
		Clauses: []HiddenClause{
			{Title: "Arbitration clause", Impact: common.SeverityHigh, Location: Location{Page: 3}},
		},
		Terms: []FinancialTerm{
			{Name: "APR", Location: Location{Page: -2}},
			{Name: ""},
		},
	}

	b.Sanitize(10)

	require.Len(t, b.Summary.Highlights, 2)
	assert.Equal(t, HighlightWarning, b.Summary.Highlights[1].Type)

	require.Len(t, b.RedFlags, 2)
	assert.Equal(t, "rf_001", b.RedFlags[0].ID)
	assert.Equal(t, common.SeverityMedium, b.RedFlags[0].Severity, "unknown severity demoted")
	assert.Equal(t, 10, b.RedFlags[0].Location.Page, "page clamped to document range")
	assert.Equal(t, "rf_002", b.RedFlags[1].ID)
	assert.Equal(t, 1, b.RedFlags[1].Location.Page)

	require.Len(t, b.Clauses, 1)
	assert.Equal(t, "hc_001", b.Clauses[0].ID)

	require.Len(t, b.Terms, 1)
	assert.Equal(t, "term_001", b.Terms[0].ID)
	assert.Equal(t, 1, b.Terms[0].Location.Page)

	assert.NoError(t, b.Validate())
}

func TestBundle_ValidateRejectsBadEntries(t *testing.T) {
	t.Parallel()

	b := &Bundle{DocumentID: "doc_1a2b3c4d5e6f", RedFlags: []RedFlag{{
		ID: "rf_001", Severity: "absurd", Title: "x", Location: Location{Page: 1},
	}}}
	assert.Error(t, b.Validate())

	b = &Bundle{}
	assert.Error(t, b.Validate())
}

func TestKeyNumbers_JSONShape(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(KeyNumbers{
		TotalLoan:      25000,
		MonthlyPayment: 562.14,
		InterestRate:   12.5,
		TermMonths:     60,
		TotalInterest:  8728.40,
	})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	for _, key := range []string{"total_loan", "monthly_payment", "interest_rate", "term_months", "total_interest"} {
		assert.Contains(t, m, key)
	}
	assert.NotContains(t, m, "fees", "absent fees are omitted")
}

func TestHiddenClause_JSONShape(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(HiddenClause{
		ID:           "hc_001",
		Category:     "prepayment",
		Title:        "Prepayment Penalty",
		Summary:      "Charges 3% for early payoff",
		OriginalText: "Borrower shall pay 3% of the outstanding balance",
		PlainEnglish: "Paying early costs 3% of what you still owe",
		Impact:       common.SeverityHigh,
		Location:     Location{Page: 4, Section: "Termination"},
	})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "Borrower shall pay 3% of the outstanding balance", m["original_text"])
	assert.Equal(t, "high", m["impact"])
	loc := m["location"].(map[string]any)
	assert.Equal(t, float64(4), loc["page"])
}
