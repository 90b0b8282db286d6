package portfolios

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/spreadbook/internal/database"
	"github.com/aristath/spreadbook/internal/marketdata"
	"github.com/aristath/spreadbook/internal/modules/market_hours"
	"github.com/aristath/spreadbook/internal/modules/scans"
	"github.com/aristath/spreadbook/internal/units"
	"github.com/google/uuid"
)

// CreatePortfoliosFromScan builds the return and probability portfolios for a scan
// key, replacing any portfolios previously built from it. tradesPerPortfolio <= 0
// uses the configured default.
//
// When no row qualifies, existing portfolios for the key are deleted and both ids
// in the result are nil. Each new portfolio gets one P&L pass right away; failures
// there are logged and do not fail the build.
func (e *Engine) CreatePortfoliosFromScan(ctx context.Context, scanDate, scanName string, tradesPerPortfolio int) (*BuildResult, error) {
	name := strings.TrimSpace(scanName)
	if name == "" {
		return nil, fmt.Errorf("scan name is required")
	}
	date, err := market_hours.NormalizeDate(scanDate)
	if err != nil {
		return nil, fmt.Errorf("invalid scan date: %w", err)
	}
	if tradesPerPortfolio <= 0 {
		tradesPerPortfolio = e.cfg.TradesPerPortfolio
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()

	rows, err := e.scans.GetByKey(ctx, date, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load scan results: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrNoScanData, date, name)
	}

	qualified := Qualify(rows, name, e.cfg)
	result := &BuildResult{
		ScanDate:   date,
		ScanName:   name,
		BuildID:    uuid.NewString(),
		Candidates: len(rows),
		Qualified:  len(qualified),
	}

	if len(qualified) == 0 {
		var deleted int64
		err := database.WithTransaction(ctx, e.conn, func(tx *sql.Tx) error {
			n, err := e.portfolios.DeleteForScan(ctx, tx, date, &name)
			deleted = n
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to clear portfolios for %s %s: %w", date, name, err)
		}
		e.log.Warn().
			Str("scan_date", date).
			Str("scan_name", name).
			Int("candidates", len(rows)).
			Int64("deleted", deleted).
			Msg("No candidates qualified, no portfolios built")
		return result, nil
	}

	// Strikes are parsed and entry prices fetched before the transaction opens.
	plans := make(map[Kind][]Trade, len(Kinds))
	entryPrices := e.entryPrices(ctx, date, qualified)
	for _, kind := range Kinds {
		selected := SelectCycled(Rank(qualified, kind), tradesPerPortfolio)
		trades, err := e.planTrades(selected, entryPrices)
		if err != nil {
			return nil, err
		}
		plans[kind] = trades
	}

	now := e.calendar.Now()
	ids := make(map[Kind]int64, len(Kinds))
	err = database.WithTransaction(ctx, e.conn, func(tx *sql.Tx) error {
		if _, err := e.portfolios.DeleteForScan(ctx, tx, date, &name); err != nil {
			return err
		}

		portfolios := e.portfolios.WithTx(tx)
		trades := e.trades.WithTx(tx)
		for _, kind := range Kinds {
			planned := plans[kind]

			var premium units.Cents
			for _, t := range planned {
				premium += t.PremiumPerContract.Times(t.Contracts)
			}

			p := &Portfolio{
				ScanDate:              date,
				ScanName:              name,
				Kind:                  kind,
				Status:                StatusActive,
				InitialCapital:        e.cfg.InitialCapital,
				TotalPremiumCollected: premium,
				CurrentValue:          e.cfg.InitialCapital,
				NetPnl:                0,
				BuildID:               result.BuildID,
				CreatedAt:             now,
				LastUpdated:           now,
			}
			if err := portfolios.Create(ctx, p); err != nil {
				return err
			}

			for i := range planned {
				t := planned[i]
				t.PortfolioID = p.ID
				t.CreatedAt = now
				t.UpdatedAt = now
				if err := trades.Insert(ctx, &t); err != nil {
					return err
				}
			}
			ids[kind] = p.ID
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build portfolios for %s %s: %w", date, name, err)
	}

	returnID, probabilityID := ids[KindReturn], ids[KindProbability]
	result.ReturnPortfolioID = &returnID
	result.ProbabilityPortfolioID = &probabilityID

	e.observer.PortfoliosBuilt(name, len(ids))
	e.log.Info().
		Str("scan_date", date).
		Str("scan_name", name).
		Str("build_id", result.BuildID).
		Int("candidates", len(rows)).
		Int("qualified", len(qualified)).
		Int64("return_portfolio_id", returnID).
		Int64("probability_portfolio_id", probabilityID).
		Dur("duration", time.Since(start)).
		Msg("Portfolios built")

	for _, kind := range Kinds {
		if _, err := e.updatePortfolio(ctx, ids[kind]); err != nil {
			e.log.Warn().
				Err(err).
				Int64("portfolio_id", ids[kind]).
				Msg("Initial P&L pass failed")
		}
	}

	return result, nil
}

// entryPrices looks up each ticker's close on the scan date once, falling back to
// the price captured by the scan.
func (e *Engine) entryPrices(ctx context.Context, scanDate string, rows []scans.ScanResult) map[string]units.Cents {
	prices := make(map[string]units.Cents, len(rows))
	day, err := market_hours.ParseDate(scanDate)
	if err != nil {
		for _, row := range rows {
			if _, ok := prices[row.Ticker]; !ok {
				prices[row.Ticker] = row.Price
			}
		}
		return prices
	}

	for _, row := range rows {
		if _, ok := prices[row.Ticker]; ok {
			continue
		}

		price, err := e.gateway.GetClosePrice(ctx, row.Ticker, day)
		if err != nil || price <= 0 {
			if err != nil && !marketdata.IsNoData(err) {
				e.log.Warn().Err(err).Str("ticker", row.Ticker).Msg("Close price lookup failed, using scan price")
			}
			price = row.Price
		}
		prices[row.Ticker] = price
	}
	return prices
}

func (e *Engine) planTrades(selected []scans.ScanResult, entryPrices map[string]units.Cents) ([]Trade, error) {
	trades := make([]Trade, 0, len(selected))
	for i, row := range selected {
		sell, buy, err := scans.ParseStrikePair(row.Strike)
		if err != nil {
			return nil, fmt.Errorf("scan row %d (%s): %w", row.ID, row.Ticker, err)
		}
		trades = append(trades, newTrade(
			i+1,
			row.Ticker,
			entryPrices[row.Ticker],
			sell,
			buy,
			row.ExpDate,
			e.cfg.ContractsPerTrade,
			row.MaxProfit,
		))
	}
	return trades, nil
}
