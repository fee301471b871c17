// Package pricing computes sale amounts in whole cents. Every function is pure:
// the same inputs always produce the same amounts.
package pricing

import (
	"github.com/shopspring/decimal"

	"bakerypos/backend/internal/domain"
)

var (
	taxRate = decimal.RequireFromString("0.03")

	discountRates = map[domain.DiscountKind]decimal.Decimal{
		domain.DiscountNone:   decimal.Zero,
		domain.DiscountSenior: decimal.RequireFromString("0.20"),
		domain.DiscountPWD:    decimal.RequireFromString("0.20"),
	}
)

type Line struct {
	UnitPriceCents int64
	Qty            int
}

type Summary struct {
	SubtotalCents int64
	DiscountCents int64
	TaxCents      int64
	TotalCents    int64
	TenderedCents int64
	ChangeCents   int64
}

func TaxRate() decimal.Decimal {
	return taxRate
}

// DiscountRate reports the rate for kind and whether kind is in the policy table.
func DiscountRate(kind domain.DiscountKind) (decimal.Decimal, bool) {
	rate, ok := discountRates[kind]
	return rate, ok
}

func Subtotal(lines []Line) int64 {
	var subtotal int64
	for _, line := range lines {
		subtotal += line.UnitPriceCents * int64(line.Qty)
	}
	return subtotal
}

// Discount applies the policy rate for kind. Kinds outside the table discount nothing.
func Discount(subtotalCents int64, kind domain.DiscountKind) int64 {
	rate, ok := discountRates[kind]
	if !ok || subtotalCents <= 0 {
		return 0
	}
	return applyRate(subtotalCents, rate)
}

func Tax(amountAfterDiscountCents int64) int64 {
	return applyRate(max(0, amountAfterDiscountCents), taxRate)
}

func Total(subtotalCents int64, discountCents int64, taxCents int64) int64 {
	return max(0, subtotalCents-discountCents+taxCents)
}

func Change(totalCents int64, tenderedCents int64) int64 {
	return max(0, tenderedCents-totalCents)
}

func Compute(lines []Line, kind domain.DiscountKind, tenderedCents int64) Summary {
	subtotal := Subtotal(lines)
	discount := Discount(subtotal, kind)
	tax := Tax(subtotal - discount)
	total := Total(subtotal, discount, tax)
	return Summary{
		SubtotalCents: subtotal,
		DiscountCents: discount,
		TaxCents:      tax,
		TotalCents:    total,
		TenderedCents: tenderedCents,
		ChangeCents:   Change(total, tenderedCents),
	}
}

// applyRate rounds half-up; amounts are never negative here.
func applyRate(amountCents int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(amountCents).Mul(rate).Round(0).IntPart()
}
