package heuristic

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loanlens/loanlens/pkg/types/common"
)

func TestHiddenClauses_MatchesRulesInOrder(t *testing.T) {
	t.Parallel()

	ex := pagesOf(
		[]string{"A pre-payment penalty of 3% of the outstanding balance applies."},
		[]string{"The lender reserves the right to modify the fee schedule at any time."},
		[]string{"This agreement shall automatically renew for successive one-year terms."},
	)
	clauses := New().HiddenClauses(ex)
	require.Len(t, clauses, 3)

	assert.Equal(t, "hc_001", clauses[0].ID)
	assert.Equal(t, "prepayment", clauses[0].Category)
	assert.Equal(t, common.SeverityHigh, clauses[0].Impact)
	assert.Equal(t, 1, clauses[0].Location.Page)
	assert.Equal(t, "Prepayment", clauses[0].Location.Section)
	assert.Equal(t, "A pre-payment penalty of 3% of the outstanding balance applies.", clauses[0].OriginalText)
	assert.NotEmpty(t, clauses[0].PlainEnglish)

	assert.Equal(t, "hc_002", clauses[1].ID)
	assert.Equal(t, "modification", clauses[1].Category)
	assert.Equal(t, common.SeverityMedium, clauses[1].Impact)
	assert.Equal(t, 2, clauses[1].Location.Page)

	assert.Equal(t, "hc_003", clauses[2].ID)
	assert.Equal(t, "renewal", clauses[2].Category)
	assert.Equal(t, common.SeverityLow, clauses[2].Impact)
	assert.Equal(t, 3, clauses[2].Location.Page)
}

func TestHiddenClauses_NoMatches(t *testing.T) {
	t.Parallel()

	ex := pagesOf([]string{"The borrower and lender agree to the schedule attached."})
	assert.Empty(t, New().HiddenClauses(ex))
}

func TestFirstRuleMatch_EarliestPageWins(t *testing.T) {
	t.Parallel()

	ex := pagesOf(
		[]string{"Nothing of note on this page."},
		[]string{"A balloon payment of $8,000 is due at maturity."},
		[]string{"The balloon payment may be refinanced."},
	)
	rule := clauseRules[0]
	for _, r := range clauseRules {
		if r.category == "payment" {
			rule = r
			break
		}
	}
	page, quote, ok := firstRuleMatch(ex, rule.re)
	require.True(t, ok)
	assert.Equal(t, 2, page)
	assert.Equal(t, "A balloon payment of $8,000 is due at maturity.", quote)
}

func TestSentenceAround(t *testing.T) {
	t.Parallel()

	t.Run("expands to the enclosing sentence", func(t *testing.T) {
		t.Parallel()
		text := "Fees apply. A pre-payment penalty of 3% applies to early settlement. Other terms follow."
		start := strings.Index(text, "pre-payment")
		require.GreaterOrEqual(t, start, 0)
		got := sentenceAround(text, start, start+len("pre-payment penalty"))
		assert.Equal(t, "A pre-payment penalty of 3% applies to early settlement.", got)
	})

	t.Run("newlines bound the quote", func(t *testing.T) {
		t.Parallel()
		text := "first line\nballoon payment due at maturity\nlast line"
		start := strings.Index(text, "balloon")
		got := sentenceAround(text, start, start+len("balloon payment"))
		assert.Equal(t, "balloon payment due at maturity", got)
	})

	t.Run("start of text needs no sentinel", func(t *testing.T) {
		t.Parallel()
		text := "binding arbitration governs all disputes."
		got := sentenceAround(text, 0, len("binding arbitration"))
		assert.Equal(t, "binding arbitration governs all disputes.", got)
	})

	t.Run("long sentences are capped", func(t *testing.T) {
		t.Parallel()
		text := "The parties agree that " + strings.Repeat("in each and every case ", 20) + "binding arbitration applies without exception or appeal whatsoever"
		start := strings.Index(text, "binding")
		got := sentenceAround(text, start, start+len("binding arbitration"))
		assert.True(t, strings.HasSuffix(got, "..."))
		assert.LessOrEqual(t, utf8.RuneCountInString(got), maxQuoteRunes+3)
	})
}
