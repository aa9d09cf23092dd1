package docparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMonthlyPayment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		principal  float64
		annualRate float64
		termMonths int
		want       float64
		delta      float64
	}{
		{"standard amortization", 10000, 6.0, 12, 860.66, 0.01},
		{"zero rate divides evenly", 12000, 0, 24, 500, 1e-9},
		{"long tenor", 2500000, 12.5, 60, 56245, 5},
		{"zero term", 10000, 6.0, 0, 0, 1e-9},
		{"zero principal", 0, 6.0, 12, 0, 1e-9},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := MonthlyPayment(tt.principal, tt.annualRate, tt.termMonths)
			assert.InDelta(t, tt.want, got, tt.delta)
		})
	}
}

func TestTotalInterest(t *testing.T) {
	t.Parallel()

	payment := MonthlyPayment(10000, 6.0, 12)
	got := TotalInterest(10000, payment, 12)

	// Twelve payments of ~860.66 repay ~10327.97 in total.
	assert.InDelta(t, 327.97, got, 0.05)
	assert.Positive(t, got)

	assert.InDelta(t, 0, TotalInterest(12000, 500, 24), 1e-9)
}
