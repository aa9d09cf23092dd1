package highlight

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_Transforms(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"lowercase", "Borrower SHALL Pay", "borrower shall pay"},
		{"ellipsis run dropped", "early termination... Borrower shall pay", "early termination borrower shall pay"},
		{"unicode ellipsis dropped", "fee… applies", "fee applies"},
		{"two dots dropped", "clause 4.. continues", "clause 4 continues"},
		{"single dot kept", "rate of 3.5 percent", "rate of 3.5 percent"},
		{"rupee stripped", "pay ₹50000 upfront", "pay 50000 upfront"},
		{"dollar stripped", "a $1,500 fee", "a 1500 fee"},
		{"euro pound yen stripped", "€10 £20 ¥30", "10 20 30"},
		{"percent kept", "3% of the outstanding balance", "3% of the outstanding balance"},
		{"parens and hyphen kept", "(pre-payment) penalty", "(pre-payment) penalty"},
		{"commas and quotes stripped", `the "Borrower", hereafter`, "the borrower hereafter"},
		{"whitespace collapsed", "a \t b\n\nc", "a b c"},
		{"trimmed", "  padded  ", "padded"},
		{"digits kept", "term of 360 months", "term of 360 months"},
		{"non latin letters kept", "lату termination", "lату termination"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Normalize(tc.in))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"Borrower shall pay 3% of the outstanding balance",
		"early termination... Borrower shall pay 3% of the outstanding balance",
		"₹1,00,000 (one lakh) due…",
		"a.$.b",
		"MIXED case WITH   spacing\tand\nnewlines",
		"ﬁxed-rate ２５％",
		"lату termination fee blah blah blah blah blah blah",
		"..leading and trailing..",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "normalize must be a fixed point for %q", in)
	}
}

func TestNormalize_StripCanMergePeriods(t *testing.T) {
	t.Parallel()

	// Removing the currency symbol between periods must not leave an
	// ellipsis-like run behind.
	got := Normalize("a.$.b")
	assert.Equal(t, "a b", got)
	assert.Equal(t, got, Normalize(got))
}

func TestWords(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Words(""))
	assert.Equal(t, []string{"borrower", "shall", "pay"}, Words("borrower shall pay"))
}
