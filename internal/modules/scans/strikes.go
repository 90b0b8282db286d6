package scans

import (
	"fmt"
	"strings"

	"github.com/aristath/spreadbook/internal/units"
	"github.com/shopspring/decimal"
)

// ParseStrikePair parses a "a/b" strike string in either order and returns the
// higher strike as sell and the lower as buy.
func ParseStrikePair(s string) (sell, buy units.Cents, err error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidStrike, s)
	}

	a, err := units.ParseDollars(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidStrike, s)
	}
	b, err := units.ParseDollars(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidStrike, s)
	}

	if a <= 0 || b <= 0 || a == b {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidStrike, s)
	}

	if a > b {
		return a, b, nil
	}
	return b, a, nil
}

// FormatStrikePair renders strikes as "sell/buy" with no trailing zeros ("100/97.5").
func FormatStrikePair(sell, buy units.Cents) string {
	return formatStrike(sell) + "/" + formatStrike(buy)
}

// NormalizeStrike rewrites a strike string so the higher strike is listed first.
func NormalizeStrike(s string) (string, error) {
	sell, buy, err := ParseStrikePair(s)
	if err != nil {
		return "", err
	}
	return FormatStrikePair(sell, buy), nil
}

func formatStrike(c units.Cents) string {
	return decimal.New(int64(c), -2).String()
}
