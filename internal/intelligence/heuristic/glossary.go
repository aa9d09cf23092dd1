package heuristic

import (
	"regexp"
	"strconv"

	"github.com/loanlens/loanlens/internal/domain/analysis"
	"github.com/loanlens/loanlens/internal/intelligence/docparse"
)

// Example icons follow the wire contract.
const (
	iconInfo     = "💡"
	iconWarning  = "⚠️"
	iconPositive = "✅"
)

// glossaryEntry explains one piece of loan jargon. The example uses fixed
// illustrative numbers; valueOf pulls the document's own figure out of the
// candidate scan for the your_value field, or returns "" when the document
// does not state one.
type glossaryEntry struct {
	name        string
	fullName    string
	short       string
	definition  string
	re          *regexp.Regexp
	icon        string
	exampleName string
	exampleText string
	section     string
	valueOf     func(*docparse.Candidates) string
}

var glossary = []glossaryEntry{
	{
		name:        "Principal",
		fullName:    "Principal Loan Amount",
		short:       "The amount you actually borrow.",
		definition:  "The principal is the sum the lender hands over to you. Interest is charged on this amount, so every figure in the agreement flows from it.",
		re:          regexp.MustCompile(`(?i)\bprincipal\b`),
		icon:        iconInfo,
		exampleName: "Your borrowed amount",
		exampleText: "Borrow $20,000 and the principal is $20,000; interest accrues on that full amount from day one, even if fees were deducted before payout.",
		section:     "Loan Amount",
		valueOf:     firstMoney(func(c *docparse.Candidates) []docparse.NumericCandidate { return c.LoanAmounts }),
	},
	{
		name:        "APR",
		fullName:    "Annual Percentage Rate",
		short:       "The yearly cost of the loan as a percentage.",
		definition:  "The APR folds the interest rate and certain fees into one yearly percentage, so two loan offers can be compared directly.",
		re:          regexp.MustCompile(`(?i)\bapr\b|annual percentage rate`),
		icon:        iconWarning,
		exampleName: "Comparing offers",
		exampleText: "A loan at 10% interest plus a 2% processing fee has an APR near 12%; the cheaper-looking offer is not always the cheaper loan.",
		section:     "Interest",
		valueOf:     firstRate,
	},
	{
		name:        "Interest Rate",
		fullName:    "Annual Interest Rate",
		short:       "What the lender charges you for borrowing.",
		definition:  "The interest rate sets how much the lender charges on the outstanding balance each year. Even one percentage point changes the total cost substantially over a long term.",
		re:          regexp.MustCompile(`(?i)rate of interest|interest rate`),
		icon:        iconInfo,
		exampleName: "Cost of borrowing",
		exampleText: "On a $10,000 balance, 12% per year is about $100 of interest in the first month; early installments are mostly interest, not principal.",
		section:     "Interest",
		valueOf:     firstRate,
	},
	{
		name:        "EMI",
		fullName:    "Equated Monthly Installment",
		short:       "The fixed amount you pay every month.",
		definition:  "An EMI is one fixed monthly payment combining interest and principal repayment, sized so the loan is fully repaid by the end of the term.",
		re:          regexp.MustCompile(`(?i)\bemi\b|equated monthly installment|monthly installment`),
		icon:        iconInfo,
		exampleName: "Your monthly outgo",
		exampleText: "A $10,000 loan at 12% over 24 months works out to about $470 a month; the same amount is due every month for the whole term.",
		section:     "Repayment",
		valueOf:     firstMoney(func(c *docparse.Candidates) []docparse.NumericCandidate { return c.MonthlyPayments }),
	},
	{
		name:        "Tenure",
		fullName:    "Loan Tenure",
		short:       "How long you will be repaying.",
		definition:  "The tenure is the repayment period. A longer tenure lowers each installment but raises the total interest paid over the life of the loan.",
		re:          regexp.MustCompile(`(?i)\btenure\b|\btenor\b|loan term|repayment period`),
		icon:        iconWarning,
		exampleName: "Term length",
		exampleText: "Stretching a $10,000 loan from 3 years to 5 years drops the installment by a third but adds hundreds of dollars in total interest.",
		section:     "Repayment",
		valueOf:     firstTerm,
	},
	{
		name:        "Processing Fee",
		fullName:    "Loan Processing Fee",
		short:       "A one-time charge for setting up the loan.",
		definition:  "The processing fee is deducted or charged up front for underwriting the loan. It is part of the true cost even though it is not interest.",
		re:          regexp.MustCompile(`(?i)processing fee|origination fee`),
		icon:        iconWarning,
		exampleName: "Upfront cost",
		exampleText: "A 2% fee on a $20,000 loan is $400 gone before you see the money; include it when comparing offers, not just the rate.",
		section:     "Fees",
		valueOf:     firstMoney(func(c *docparse.Candidates) []docparse.NumericCandidate { return c.Fees }),
	},
	{
		name:        "Prepayment Penalty",
		fullName:    "Prepayment Penalty",
		short:       "A charge for repaying the loan early.",
		definition:  "If you clear the loan before the term ends, the lender recovers some of the interest it loses by charging this penalty on the amount prepaid.",
		re:          regexp.MustCompile(`(?i)pre-?payment (penalty|charge|fee)`),
		icon:        iconWarning,
		exampleName: "Early exit cost",
		exampleText: "Paying off a $15,000 balance with a 3% penalty costs $450 just to leave; check this figure before refinancing elsewhere.",
		section:     "Prepayment",
		valueOf:     noValue,
	},
	{
		name:        "Collateral",
		fullName:    "Collateral Security",
		short:       "An asset the lender can take if you default.",
		definition:  "Collateral is property pledged against the loan, such as a vehicle or house. Defaulting lets the lender seize and sell it to recover the balance.",
		re:          regexp.MustCompile(`(?i)\bcollateral\b|security interest|hypothecat`),
		icon:        iconWarning,
		exampleName: "What is at stake",
		exampleText: "On a car loan the car itself is usually the collateral; miss enough payments and the lender can repossess and sell it.",
		section:     "Security",
		valueOf:     noValue,
	},
	{
		name:        "Default",
		fullName:    "Event of Default",
		short:       "Breaking the loan terms, not just missing payments.",
		definition:  "A default is any breach the agreement names, including missed payments, lapsed insurance, or false statements. Defaults trigger the remedies clauses.",
		re:          regexp.MustCompile(`(?i)event of default|\bdefault\b`),
		icon:        iconWarning,
		exampleName: "More than late payments",
		exampleText: "Letting required insurance lapse can count as a default even with every payment on time, giving the lender the same remedies as a missed payment.",
		section:     "Default",
		valueOf:     noValue,
	},
	{
		name:        "Fixed Rate",
		fullName:    "Fixed Interest Rate",
		short:       "The rate stays the same for the whole term.",
		definition:  "A fixed rate never changes after signing, so the installment is predictable for the entire term regardless of market movements.",
		re:          regexp.MustCompile(`(?i)fixed (interest )?rate`),
		icon:        iconPositive,
		exampleName: "Predictable payments",
		exampleText: "Sign at a fixed 9% and the installment is the same in year five as in month one, whatever market rates do in between.",
		section:     "Interest",
		valueOf:     firstRate,
	},
	{
		name:        "Amortization",
		fullName:    "Amortization Schedule",
		short:       "How each payment splits between interest and principal.",
		definition:  "Amortization is the repayment plan where early installments are mostly interest and later ones mostly principal. The schedule shows the split month by month.",
		re:          regexp.MustCompile(`(?i)amorti[sz]ation|amorti[sz]ed`),
		icon:        iconInfo,
		exampleName: "Where payments go",
		exampleText: "In month one of a 5-year loan, roughly two thirds of the installment can be interest; by the final year the split is reversed.",
		section:     "Repayment",
		valueOf:     noValue,
	},
	{
		name:        "Grace Period",
		fullName:    "Payment Grace Period",
		short:       "Extra days to pay before penalties start.",
		definition:  "The grace period is the window after the due date during which a payment still counts as on time and no late fee applies.",
		re:          regexp.MustCompile(`(?i)grace period|moratorium`),
		icon:        iconPositive,
		exampleName: "Breathing room",
		exampleText: "With a 15-day grace period, a payment due on the 1st triggers no late fee until the 16th, though interest may still accrue.",
		section:     "Repayment",
		valueOf:     noValue,
	},
}

// FinancialTerms explains the glossary entries that actually appear in the
// document, filling your_value with the document's own figures where the
// number scan found them.
func (a *Analyzer) FinancialTerms(ex *docparse.Extraction, c *docparse.Candidates) []analysis.FinancialTerm {
	var out []analysis.FinancialTerm
	for _, entry := range glossary {
		page, ok := firstPageMatching(ex, entry.re)
		if !ok {
			continue
		}
		out = append(out, analysis.FinancialTerm{
			ID:               analysis.FinancialTermID(len(out) + 1),
			Name:             entry.name,
			FullName:         entry.fullName,
			ShortDescription: entry.short,
			Definition:       entry.definition,
			Example: analysis.TermExample{
				Icon:  entry.icon,
				Title: entry.exampleName,
				Text:  entry.exampleText,
			},
			YourValue: entry.valueOf(c),
			Location:  analysis.Location{Page: page, Section: entry.section},
		})
	}
	return out
}

func firstPageMatching(ex *docparse.Extraction, re *regexp.Regexp) (int, bool) {
	for _, p := range ex.Pages {
		if re.MatchString(p.Text()) {
			return p.Page, true
		}
	}
	return 0, false
}

func noValue(*docparse.Candidates) string { return "" }

func firstMoney(pick func(*docparse.Candidates) []docparse.NumericCandidate) func(*docparse.Candidates) string {
	return func(c *docparse.Candidates) string {
		list := pick(c)
		if len(list) == 0 {
			return ""
		}
		return moneyString(list[0].Value)
	}
}

func firstRate(c *docparse.Candidates) string {
	if len(c.InterestRates) == 0 {
		return ""
	}
	return rateString(c.InterestRates[0].Value)
}

func firstTerm(c *docparse.Candidates) string {
	if len(c.TermMonths) == 0 {
		return ""
	}
	return strconv.Itoa(int(c.TermMonths[0].Value)) + " months"
}
