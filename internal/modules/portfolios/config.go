package portfolios

import (
	"fmt"
	"strings"

	"github.com/aristath/spreadbook/internal/units"
)

// EngineConfig holds the strategy tunables. It is passed by value and never
// mutated after NewEngine.
type EngineConfig struct {
	InitialCapital     units.Cents
	MinReturn          units.BasisPoints
	MinProbability     units.BasisPoints
	ContractsPerTrade  int
	TradesPerPortfolio int
	// Scans whose name contains YearlyMarker (case-insensitive) skip the thresholds.
	YearlyMarker string
}

// DefaultEngineConfig returns the stock strategy: $100,000 per portfolio, 2% minimum
// return, 80% minimum probability, 4 contracts per trade, 5 trades per portfolio.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		InitialCapital:     units.ToCents(100000),
		MinReturn:          units.PercentToBasisPoints(2),
		MinProbability:     units.PercentToBasisPoints(80),
		ContractsPerTrade:  4,
		TradesPerPortfolio: 5,
		YearlyMarker:       "yearly",
	}
}

// Validate checks the config for values the engine cannot work with.
func (c EngineConfig) Validate() error {
	if c.InitialCapital <= 0 {
		return fmt.Errorf("initial capital must be positive, got %d cents", c.InitialCapital)
	}
	if c.MinReturn < 0 {
		return fmt.Errorf("minimum return must not be negative, got %d bp", c.MinReturn)
	}
	if c.MinProbability < 0 || c.MinProbability > 10000 {
		return fmt.Errorf("minimum probability must be within 0-10000 bp, got %d", c.MinProbability)
	}
	if c.ContractsPerTrade <= 0 {
		return fmt.Errorf("contracts per trade must be positive, got %d", c.ContractsPerTrade)
	}
	if c.TradesPerPortfolio <= 0 {
		return fmt.Errorf("trades per portfolio must be positive, got %d", c.TradesPerPortfolio)
	}
	return nil
}

// IsYearly reports whether scanName names a yearly scan.
func (c EngineConfig) IsYearly(scanName string) bool {
	if c.YearlyMarker == "" {
		return false
	}
	return strings.Contains(strings.ToLower(scanName), strings.ToLower(c.YearlyMarker))
}
