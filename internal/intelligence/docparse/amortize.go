package docparse

import "math"

// MonthlyPayment computes the fixed installment for a principal amortized at
// annualRate percent over termMonths:
//
//	PMT = P * r(1+r)^n / ((1+r)^n - 1)
//
// with r the monthly rate. A zero rate degenerates to straight division.
func MonthlyPayment(principal, annualRate float64, termMonths int) float64 {
	if termMonths <= 0 || principal <= 0 {
		return 0
	}
	if annualRate == 0 {
		return principal / float64(termMonths)
	}
	r := annualRate / 12 / 100
	pow := math.Pow(1+r, float64(termMonths))
	return principal * (r * pow) / (pow - 1)
}

// TotalInterest is the interest paid over the whole term at a fixed
// installment.
func TotalInterest(principal, monthlyPayment float64, termMonths int) float64 {
	return monthlyPayment*float64(termMonths) - principal
}

// Round2 rounds a derived money figure to cents.
func Round2(v float64) float64 { return math.Round(v*100) / 100 }
