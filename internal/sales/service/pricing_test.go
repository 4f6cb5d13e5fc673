package service

import (
	"testing"

	"github.com/pharmacore/pharmacore-backend/internal/sales/repository"
	"github.com/stretchr/testify/assert"
)

func TestPriceLine(t *testing.T) {
	cases := []struct {
		name            string
		unitPrice       float64
		quantity        int
		discountPercent float64
		taxPercent      float64
		expected        LinePricing
	}{
		{
			name:      "no discount no tax",
			unitPrice: 10.00,
			quantity:  3,
			expected:  LinePricing{Subtotal: 30.00, LineTotal: 30.00},
		},
		{
			name:            "discount then tax on discounted amount",
			unitPrice:       100.00,
			quantity:        2,
			discountPercent: 10,
			taxPercent:      5,
			expected: LinePricing{
				Subtotal:       200.00,
				DiscountAmount: 20.00,
				TaxAmount:      9.00,
				LineTotal:      189.00,
			},
		},
		{
			name:            "fractional amounts round to cents",
			unitPrice:       3.33,
			quantity:        3,
			discountPercent: 7.5,
			taxPercent:      12,
			expected: LinePricing{
				Subtotal:       9.99,
				DiscountAmount: 0.75,
				TaxAmount:      1.11,
				LineTotal:      10.35,
			},
		},
		{
			name:            "full discount",
			unitPrice:       50.00,
			quantity:        1,
			discountPercent: 100,
			taxPercent:      18,
			expected: LinePricing{
				Subtotal:       50.00,
				DiscountAmount: 50.00,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := PriceLine(tc.unitPrice, tc.quantity, tc.discountPercent, tc.taxPercent)
			assert.InDelta(t, tc.expected.Subtotal, got.Subtotal, 0.001)
			assert.InDelta(t, tc.expected.DiscountAmount, got.DiscountAmount, 0.001)
			assert.InDelta(t, tc.expected.TaxAmount, got.TaxAmount, 0.001)
			assert.InDelta(t, tc.expected.LineTotal, got.LineTotal, 0.001)
		})
	}
}

func TestComputeTotals(t *testing.T) {
	lines := []LinePricing{
		PriceLine(100.00, 2, 10, 5), // 189.00
		PriceLine(25.50, 4, 0, 0),   // 102.00
	}

	totals := ComputeTotals(lines, 15.00, 5.00, 311.00)
	assert.InDelta(t, 302.00, totals.Subtotal, 0.001)
	assert.InDelta(t, 20.00, totals.DiscountAmount, 0.001)
	assert.InDelta(t, 9.00, totals.TaxAmount, 0.001)
	assert.InDelta(t, 311.00, totals.Total, 0.001)
	assert.InDelta(t, 0.00, totals.BalanceDue, 0.001)
	assert.Equal(t, repository.PaymentStatusCompleted, totals.PaymentStatus)
}

func TestComputeTotalsPaymentStatus(t *testing.T) {
	lines := []LinePricing{PriceLine(100.00, 1, 0, 0)}

	unpaid := ComputeTotals(lines, 0, 0, 0)
	assert.Equal(t, repository.PaymentStatusPending, unpaid.PaymentStatus)
	assert.InDelta(t, 100.00, unpaid.BalanceDue, 0.001)

	partial := ComputeTotals(lines, 0, 0, 40.00)
	assert.Equal(t, repository.PaymentStatusPartial, partial.PaymentStatus)
	assert.InDelta(t, 60.00, partial.BalanceDue, 0.001)

	overpaid := ComputeTotals(lines, 0, 0, 120.00)
	assert.Equal(t, repository.PaymentStatusCompleted, overpaid.PaymentStatus)
	assert.InDelta(t, -20.00, overpaid.BalanceDue, 0.001)
}
