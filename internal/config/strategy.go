package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aristath/spreadbook/internal/modules/portfolios"
	"github.com/aristath/spreadbook/internal/units"
	"gopkg.in/yaml.v3"
)

// strategyFile is the YAML form of the engine tunables. Omitted keys keep
// their defaults; amounts are dollars and thresholds are percent.
//
//	initial_capital: 100000
//	min_return_percent: 2
//	min_probability_percent: 80
//	contracts_per_trade: 4
//	trades_per_portfolio: 5
//	yearly_marker: yearly
type strategyFile struct {
	InitialCapital        *float64 `yaml:"initial_capital"`
	MinReturnPercent      *float64 `yaml:"min_return_percent"`
	MinProbabilityPercent *float64 `yaml:"min_probability_percent"`
	ContractsPerTrade     *int     `yaml:"contracts_per_trade"`
	TradesPerPortfolio    *int     `yaml:"trades_per_portfolio"`
	YearlyMarker          *string  `yaml:"yearly_marker"`
}

// LoadStrategyFile applies the YAML overrides in path on top of base.
func LoadStrategyFile(path string, base portfolios.EngineConfig) (portfolios.EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read strategy config: %w", err)
	}
	return ParseStrategy(data, base)
}

// ParseStrategy applies YAML overrides on top of base. Unknown keys are rejected.
func ParseStrategy(data []byte, base portfolios.EngineConfig) (portfolios.EngineConfig, error) {
	var file strategyFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return base, fmt.Errorf("failed to parse strategy config: %w", err)
	}

	cfg := base
	if file.InitialCapital != nil {
		cfg.InitialCapital = units.ToCents(*file.InitialCapital)
	}
	if file.MinReturnPercent != nil {
		cfg.MinReturn = units.PercentToBasisPoints(*file.MinReturnPercent)
	}
	if file.MinProbabilityPercent != nil {
		cfg.MinProbability = units.PercentToBasisPoints(*file.MinProbabilityPercent)
	}
	if file.ContractsPerTrade != nil {
		cfg.ContractsPerTrade = *file.ContractsPerTrade
	}
	if file.TradesPerPortfolio != nil {
		cfg.TradesPerPortfolio = *file.TradesPerPortfolio
	}
	if file.YearlyMarker != nil {
		cfg.YearlyMarker = *file.YearlyMarker
	}

	if err := cfg.Validate(); err != nil {
		return base, fmt.Errorf("invalid strategy config: %w", err)
	}
	return cfg, nil
}
