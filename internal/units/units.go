// Package units converts between human decimal values (dollars, percentages) and the
// integer representations persisted by spreadbook (cents, basis points).
//
// Every monetary or percentage field crosses this boundary exactly once on the way in
// and once on the way out. Arithmetic goes through shopspring/decimal so a float64
// such as 0.29 is read as the decimal it prints as, not as 0.28999...
package units

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Cents is an amount of US dollars in integer cents.
type Cents int64

// BasisPoints is a ratio scaled by 10,000 (0.1357 -> 1357).
type BasisPoints int64

// SharesPerContract is the standard equity option multiplier.
const SharesPerContract = 100

// ToCents converts dollars to cents, rounding half away from zero.
func ToCents(dollars float64) Cents {
	return Cents(decimal.NewFromFloat(dollars).Shift(2).Round(0).IntPart())
}

// FromCents converts cents back to dollars.
func FromCents(c Cents) float64 {
	return decimal.New(int64(c), -2).InexactFloat64()
}

// ToBasisPoints converts a ratio (0.1357 for 13.57%) to basis points.
func ToBasisPoints(ratio float64) BasisPoints {
	return BasisPoints(decimal.NewFromFloat(ratio).Shift(4).Round(0).IntPart())
}

// FromBasisPoints converts basis points back to a ratio.
func FromBasisPoints(bp BasisPoints) float64 {
	return decimal.New(int64(bp), -4).InexactFloat64()
}

// PercentToBasisPoints converts a plain percentage number (13.57 meaning 13.57%).
func PercentToBasisPoints(percent float64) BasisPoints {
	return BasisPoints(decimal.NewFromFloat(percent).Shift(2).Round(0).IntPart())
}

// BasisPointsToPercent converts basis points to a plain percentage number.
func BasisPointsToPercent(bp BasisPoints) float64 {
	return decimal.New(int64(bp), -2).InexactFloat64()
}

// PerShareToContractCents converts a per-share dollar amount to cents per contract.
func PerShareToContractCents(perShare float64) Cents {
	return Cents(decimal.NewFromFloat(perShare).
		Mul(decimal.NewFromInt(SharesPerContract)).
		Shift(2).
		Round(0).
		IntPart())
}

// ParseDollars parses a screener cell such as "$1,234.50" into cents.
func ParseDollars(s string) (Cents, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return 0, fmt.Errorf("invalid dollar amount %q: %w", s, err)
	}
	return Cents(d.Shift(2).Round(0).IntPart()), nil
}

// ParsePercent parses a cell such as "13.57%" into basis points.
func ParsePercent(s string) (BasisPoints, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return 0, fmt.Errorf("invalid percentage %q: %w", s, err)
	}
	return BasisPoints(d.Shift(2).Round(0).IntPart()), nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", "%", "", " ", "").Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty value")
	}
	return decimal.NewFromString(cleaned)
}

// Dollars returns the amount in dollars.
func (c Cents) Dollars() float64 { return FromCents(c) }

// String formats the amount as US currency, e.g. "$1,234.50".
func (c Cents) String() string {
	return money.New(int64(c), money.USD).Display()
}

// Times multiplies the amount by an integer count (contracts, shares).
func (c Cents) Times(n int) Cents { return c * Cents(n) }

// Ratio returns the value as a ratio (1357 -> 0.1357).
func (bp BasisPoints) Ratio() float64 { return FromBasisPoints(bp) }

// Percent returns the value as a plain percentage number (1357 -> 13.57).
func (bp BasisPoints) Percent() float64 { return BasisPointsToPercent(bp) }

// String formats the value as a percentage, e.g. "13.57%".
func (bp BasisPoints) String() string {
	return decimal.New(int64(bp), -2).StringFixed(2) + "%"
}
