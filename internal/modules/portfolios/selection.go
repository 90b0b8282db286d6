package portfolios

import (
	"sort"

	"github.com/aristath/spreadbook/internal/modules/scans"
)

// Qualify returns the rows that clear the return and probability thresholds.
// Yearly scans are taken as-is.
func Qualify(rows []scans.ScanResult, scanName string, cfg EngineConfig) []scans.ScanResult {
	if cfg.IsYearly(scanName) {
		out := make([]scans.ScanResult, len(rows))
		copy(out, rows)
		return out
	}

	out := make([]scans.ScanResult, 0, len(rows))
	for _, row := range rows {
		if row.ReturnPercent >= cfg.MinReturn && row.ProbMaxProfit >= cfg.MinProbability {
			out = append(out, row)
		}
	}
	return out
}

// Rank returns a copy of rows ordered for kind, best first. Ties keep their
// ingestion order.
func Rank(rows []scans.ScanResult, kind Kind) []scans.ScanResult {
	out := make([]scans.ScanResult, len(rows))
	copy(out, rows)

	switch kind {
	case KindProbability:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].ProbMaxProfit > out[j].ProbMaxProfit
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].ReturnPercent > out[j].ReturnPercent
		})
	}
	return out
}

// SelectCycled picks n rows from ranked, wrapping around when there are fewer than n.
// The same ticker may therefore appear more than once.
func SelectCycled(ranked []scans.ScanResult, n int) []scans.ScanResult {
	if len(ranked) == 0 || n <= 0 {
		return nil
	}
	out := make([]scans.ScanResult, n)
	for i := 0; i < n; i++ {
		out[i] = ranked[i%len(ranked)]
	}
	return out
}
