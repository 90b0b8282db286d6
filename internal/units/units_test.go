package units

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToCents(t *testing.T) {
	testCases := []struct {
		dollars  float64
		expected Cents
	}{
		{0, 0},
		{1, 100},
		{0.29, 29},
		{1.15, 115},
		{100000, 10000000},
		{-12.34, -1234},
		{1.005, 101},
		{0.125, 13},
		{19.999, 2000},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, ToCents(tc.dollars), "ToCents(%v)", tc.dollars)
	}
}

func TestCentsRoundTrip_TwoDecimalInputs(t *testing.T) {
	// Every value with at most two decimals must survive the trip unchanged.
	for whole := -300; whole <= 300; whole += 7 {
		for frac := 0; frac < 100; frac++ {
			x := float64(whole) + float64(frac)/100
			x = math.Round(x*100) / 100
			got := FromCents(ToCents(x))
			require.Equal(t, x, got, "round trip of %v", x)
		}
	}
}

func TestBasisPointsRoundTrip(t *testing.T) {
	ratios := []float64{0, 0.1357, 0.8, 0.02, 0.99999, 0.123456, -0.05, 1.5, 0.00004}
	for _, p := range ratios {
		got := FromBasisPoints(ToBasisPoints(p))
		assert.InDelta(t, p, got, 0.0001, "round trip of %v", p)
	}
}

func TestPercentToBasisPoints(t *testing.T) {
	assert.Equal(t, BasisPoints(1357), PercentToBasisPoints(13.57))
	assert.Equal(t, BasisPoints(8000), PercentToBasisPoints(80))
	assert.Equal(t, BasisPoints(200), PercentToBasisPoints(2))
	assert.Equal(t, BasisPoints(-520), PercentToBasisPoints(-5.2))
	assert.Equal(t, 13.57, BasisPointsToPercent(1357))
	assert.Equal(t, BasisPoints(1357), ToBasisPoints(0.1357))
}

func TestPerShareToContractCents(t *testing.T) {
	assert.Equal(t, Cents(5000), PerShareToContractCents(0.5))
	assert.Equal(t, Cents(29), PerShareToContractCents(0.0029))
	assert.Equal(t, Cents(47000), PerShareToContractCents(4.7))
	assert.Equal(t, Cents(12300), PerShareToContractCents(1.23))
}

func TestParseDollars(t *testing.T) {
	c, err := ParseDollars("$1,234.50")
	require.NoError(t, err)
	assert.Equal(t, Cents(123450), c)

	c, err = ParseDollars(" 98.7 ")
	require.NoError(t, err)
	assert.Equal(t, Cents(9870), c)

	_, err = ParseDollars("")
	assert.Error(t, err)

	_, err = ParseDollars("n/a")
	assert.Error(t, err)
}

func TestParsePercent(t *testing.T) {
	bp, err := ParsePercent("13.57%")
	require.NoError(t, err)
	assert.Equal(t, BasisPoints(1357), bp)
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "$1,234.50", Cents(123450).String())
	assert.Equal(t, "13.57%", BasisPoints(1357).String())
	assert.Equal(t, 0.1357, BasisPoints(1357).Ratio())
	assert.Equal(t, 13.57, BasisPoints(1357).Percent())
	assert.Equal(t, 12.34, Cents(1234).Dollars())
	assert.Equal(t, Cents(800), Cents(200).Times(4))
}
