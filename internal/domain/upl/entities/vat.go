package entities

import (
	"github.com/shopspring/decimal"
)

// Vat is the tax rate a UPL is sold under. AAM, TAM and FAD are the three
// Hungarian exemption categories (subject-exempt, object-exempt, reverse
// charge); they carry no percentage and leave gross price equal to net.
type Vat string

const (
	VatAAM Vat = "AAM"
	VatFAD Vat = "FAD"
	VatTAM Vat = "TAM"
	Vat5   Vat = "5"
	Vat18  Vat = "18"
	Vat27  Vat = "27"
)

var vatMultiplier = map[Vat]decimal.Decimal{
	VatAAM: decimal.NewFromInt(1),
	VatFAD: decimal.NewFromInt(1),
	VatTAM: decimal.NewFromInt(1),
	Vat5:   decimal.NewFromFloat(1.05),
	Vat18:  decimal.NewFromFloat(1.18),
	Vat27:  decimal.NewFromFloat(1.27),
}

// Valid reports whether v is one of the six recognized tax categories.
func (v Vat) Valid() bool {
	_, ok := vatMultiplier[v]
	return ok
}

// Multiplier returns the net-to-gross multiplier for v.
func (v Vat) Multiplier() decimal.Decimal {
	m, ok := vatMultiplier[v]
	if !ok {
		return decimal.NewFromInt(1)
	}
	return m
}

// Gross rounds net*multiplier to the nearest integer minor unit, half
// rounding away from zero.
func (v Vat) Gross(netMinorUnits int64) int64 {
	gross := decimal.NewFromInt(netMinorUnits).Mul(v.Multiplier())
	return gross.Round(0).IntPart()
}
