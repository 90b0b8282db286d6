package portfolios

import (
	"context"
	"math"

	"github.com/aristath/spreadbook/internal/units"
	"gonum.org/v1/gonum/stat"
)

// SeriesStats summarizes a portfolio's equity curve. Returns are percentages.
type SeriesStats struct {
	Points          int     `json:"points"`
	TotalReturn     float64 `json:"total_return"`
	MeanDailyReturn float64 `json:"mean_daily_return"`
	StdDailyReturn  float64 `json:"std_daily_return"`
	MaxDrawdown     float64 `json:"max_drawdown"`
}

// ComparisonSeries is one portfolio's history with its summary statistics.
type ComparisonSeries struct {
	Portfolio PortfolioView      `json:"portfolio"`
	History   []HistoryPointView `json:"history"`
	Stats     SeriesStats        `json:"stats"`
}

// Comparison groups the equity curves of several portfolios.
type Comparison struct {
	ScanName *string            `json:"scan_name"`
	Series   []ComparisonSeries `json:"series"`
}

// GetAllPortfolios returns every portfolio, newest scan first.
func (e *Engine) GetAllPortfolios(ctx context.Context) ([]PortfolioView, error) {
	portfolios, err := e.portfolios.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]PortfolioView, 0, len(portfolios))
	for _, p := range portfolios {
		views = append(views, p.View())
	}
	return views, nil
}

// GetPortfolioWithTrades returns a portfolio and its trades, or ErrPortfolioNotFound.
func (e *Engine) GetPortfolioWithTrades(ctx context.Context, id int64) (*PortfolioWithTrades, error) {
	p, err := e.portfolios.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	trades, err := e.trades.ListByPortfolio(ctx, id)
	if err != nil {
		return nil, err
	}

	out := &PortfolioWithTrades{
		Portfolio: p.View(),
		Trades:    make([]TradeView, 0, len(trades)),
	}
	for _, t := range trades {
		out.Trades = append(out.Trades, t.View())
	}
	return out, nil
}

// GetPortfolioHistory returns a portfolio's daily values, oldest first, or
// ErrPortfolioNotFound.
func (e *Engine) GetPortfolioHistory(ctx context.Context, id int64) ([]HistoryPointView, error) {
	if _, err := e.portfolios.GetByID(ctx, id); err != nil {
		return nil, err
	}

	points, err := e.history.ListByPortfolio(ctx, id)
	if err != nil {
		return nil, err
	}
	return historyViews(points), nil
}

// GetPortfolioComparison returns the history of every portfolio, or of those built
// from scans named scanName, with summary statistics per portfolio.
func (e *Engine) GetPortfolioComparison(ctx context.Context, scanName *string) (*Comparison, error) {
	var (
		portfolios []Portfolio
		err        error
	)
	if scanName != nil {
		portfolios, err = e.portfolios.ListByScanName(ctx, *scanName)
	} else {
		portfolios, err = e.portfolios.ListAll(ctx)
	}
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(portfolios))
	for _, p := range portfolios {
		ids = append(ids, p.ID)
	}
	grouped, err := e.history.ListByPortfolios(ctx, ids)
	if err != nil {
		return nil, err
	}

	cmp := &Comparison{
		ScanName: scanName,
		Series:   make([]ComparisonSeries, 0, len(portfolios)),
	}
	for _, p := range portfolios {
		points := grouped[p.ID]
		cmp.Series = append(cmp.Series, ComparisonSeries{
			Portfolio: p.View(),
			History:   historyViews(points),
			Stats:     computeSeriesStats(p.InitialCapital, points),
		})
	}
	return cmp, nil
}

func historyViews(points []ValueHistoryPoint) []HistoryPointView {
	views := make([]HistoryPointView, 0, len(points))
	for _, p := range points {
		views = append(views, p.View())
	}
	return views
}

// computeSeriesStats measures the curve that starts at initial capital and steps
// through each recorded value.
func computeSeriesStats(initial units.Cents, points []ValueHistoryPoint) SeriesStats {
	stats := SeriesStats{Points: len(points)}
	if initial <= 0 || len(points) == 0 {
		return stats
	}

	values := make([]float64, 0, len(points)+1)
	values = append(values, float64(initial))
	for _, p := range points {
		values = append(values, float64(p.PortfolioValue))
	}

	returns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		returns = append(returns, values[i]/values[i-1]-1)
	}

	stats.TotalReturn = ratioToPercent(values[len(values)-1]/values[0] - 1)
	if len(returns) > 0 {
		mean, std := stat.MeanStdDev(returns, nil)
		stats.MeanDailyReturn = ratioToPercent(mean)
		if len(returns) > 1 {
			stats.StdDailyReturn = ratioToPercent(std)
		}
	}
	stats.MaxDrawdown = ratioToPercent(maxDrawdown(values))

	return stats
}

// maxDrawdown returns the largest peak-to-trough decline as a positive ratio.
func maxDrawdown(values []float64) float64 {
	var peak, worst float64
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// ratioToPercent rounds a ratio to whole basis points and returns it as a percentage.
func ratioToPercent(r float64) float64 {
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return units.BasisPointsToPercent(units.ToBasisPoints(r))
}
