package service

import (
	"math"

	"github.com/pharmacore/pharmacore-backend/internal/sales/repository"
)

// LinePricing holds the computed money amounts of one sale line
type LinePricing struct {
	Subtotal       float64
	DiscountAmount float64
	TaxAmount      float64
	LineTotal      float64
}

// PriceLine computes one line's amounts. Discount applies to the subtotal,
// tax applies to the discounted amount. Each amount is rounded to cents
// before the next step so stored values always add up.
func PriceLine(unitPrice float64, quantity int, discountPercent, taxPercent float64) LinePricing {
	subtotal := round2(unitPrice * float64(quantity))
	discount := round2(subtotal * discountPercent / 100)
	tax := round2((subtotal - discount) * taxPercent / 100)

	return LinePricing{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		TaxAmount:      tax,
		LineTotal:      round2(subtotal - discount + tax),
	}
}

// SaleTotals holds the money aggregate of a whole sale
type SaleTotals struct {
	Subtotal       float64
	DiscountAmount float64
	TaxAmount      float64
	Total          float64
	BalanceDue     float64
	PaymentStatus  string
}

// ComputeTotals aggregates line amounts, applies surcharges and derives the
// payment status from the balance.
func ComputeTotals(lines []LinePricing, shippingCharge, otherCharge, amountPaid float64) SaleTotals {
	var totals SaleTotals
	for _, line := range lines {
		totals.Subtotal = round2(totals.Subtotal + line.Subtotal)
		totals.DiscountAmount = round2(totals.DiscountAmount + line.DiscountAmount)
		totals.TaxAmount = round2(totals.TaxAmount + line.TaxAmount)
		totals.Total = round2(totals.Total + line.LineTotal)
	}

	totals.Total = round2(totals.Total + shippingCharge + otherCharge)
	totals.BalanceDue = round2(totals.Total - amountPaid)

	switch {
	case amountPaid >= totals.Total:
		totals.PaymentStatus = repository.PaymentStatusCompleted
	case amountPaid > 0:
		totals.PaymentStatus = repository.PaymentStatusPartial
	default:
		totals.PaymentStatus = repository.PaymentStatusPending
	}

	return totals
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
