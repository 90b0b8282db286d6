package portfolios

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/spreadbook/internal/database"
	"github.com/aristath/spreadbook/internal/marketdata"
	"github.com/aristath/spreadbook/internal/modules/market_hours"
	"github.com/aristath/spreadbook/internal/units"
	"github.com/google/uuid"
)

type markWrite struct {
	tradeID     int64
	spreadValue units.Cents
	stockPrice  *units.Cents
	pnl         units.Cents
	itm         bool
}

type resolveWrite struct {
	tradeID    int64
	ticker     string
	resolution Resolution
	stockPrice units.Cents
	source     string
}

// UpdatePortfolioPnl values every open trade of a portfolio, settles expired ones and
// records the portfolio's value for today.
func (e *Engine) UpdatePortfolioPnl(ctx context.Context, id int64) (*UpdateReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	report, err := e.updatePortfolio(ctx, id)
	failed := 0
	if err != nil {
		failed = 1
	}
	e.observer.PassCompleted("portfolio", time.Since(start), failed)
	return report, err
}

// UpdateAllPortfolioPnl runs a P&L pass over every active portfolio. A failing
// trade or portfolio is reported in the diagnostics and never stops the others.
func (e *Engine) UpdateAllPortfolioPnl(ctx context.Context) (*BatchReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	report := &BatchReport{
		RunID:       uuid.NewString(),
		Diagnostics: make([]Diagnostic, 0),
	}

	active, err := e.portfolios.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active portfolios: %w", err)
	}

	for _, p := range active {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("update pass interrupted: %w", err)
		}

		r, err := e.updatePortfolio(ctx, p.ID)
		if err != nil {
			report.PortfoliosFailed++
			report.Diagnostics = append(report.Diagnostics, Diagnostic{
				PortfolioID: p.ID,
				Reason:      err.Error(),
			})
			e.log.Error().Err(err).Int64("portfolio_id", p.ID).Msg("Portfolio P&L pass failed")
			continue
		}

		report.PortfoliosUpdated++
		if r.Status == StatusClosed {
			report.PortfoliosClosed++
		}
		report.TradesMarked += r.TradesMarked
		report.TradesExpired += r.TradesExpired
		report.TradesSkipped += r.TradesSkipped
		report.Diagnostics = append(report.Diagnostics, r.Diagnostics...)
	}

	elapsed := time.Since(start)
	report.DurationMillis = elapsed.Milliseconds()
	report.Message = fmt.Sprintf("Updated %d of %d active portfolios", report.PortfoliosUpdated, len(active))

	e.observer.PassCompleted("batch", elapsed, report.PortfoliosFailed)
	e.log.Info().
		Str("run_id", report.RunID).
		Int("updated", report.PortfoliosUpdated).
		Int("failed", report.PortfoliosFailed).
		Int("closed", report.PortfoliosClosed).
		Int("trades_marked", report.TradesMarked).
		Int("trades_expired", report.TradesExpired).
		Int("trades_skipped", report.TradesSkipped).
		Dur("duration", elapsed).
		Msg("P&L pass completed")

	return report, nil
}

// updatePortfolio is the unlocked body of a single-portfolio pass. Market data is
// gathered first; all writes then happen in one transaction and the portfolio
// totals are recomputed from what is stored.
func (e *Engine) updatePortfolio(ctx context.Context, id int64) (*UpdateReport, error) {
	p, err := e.portfolios.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	trades, err := e.trades.ListByPortfolio(ctx, id)
	if err != nil {
		return nil, err
	}

	now := e.calendar.Now()
	report := &UpdateReport{PortfolioID: id, Diagnostics: make([]Diagnostic, 0)}
	skip := func(t Trade, reason string) {
		report.TradesSkipped++
		report.Diagnostics = append(report.Diagnostics, Diagnostic{
			PortfolioID: id,
			TradeID:     t.ID,
			Ticker:      t.Ticker,
			Reason:      reason,
		})
	}

	var (
		marks    []markWrite
		resolves []resolveWrite
	)
	for _, t := range trades {
		if t.Status.IsTerminal() {
			continue
		}

		expiration, err := market_hours.ParseDate(t.ExpirationDate)
		if err != nil {
			skip(t, fmt.Sprintf("invalid expiration date %q", t.ExpirationDate))
			continue
		}

		if market_hours.IsExpiredAt(expiration, now) {
			price, source, err := FirstPrice(ctx, e.expirationSources(t, expiration))
			if err != nil {
				e.log.Warn().Err(err).Int64("trade_id", t.ID).Str("ticker", t.Ticker).
					Msg("No price to settle expired trade, leaving it open")
				e.observer.TradeMarked(MarkSkipped)
				skip(t, "no price available to settle expiration")
				continue
			}
			resolves = append(resolves, resolveWrite{
				tradeID:    t.ID,
				ticker:     t.Ticker,
				resolution: ResolveExpiration(t, price),
				stockPrice: price,
				source:     source,
			})
			continue
		}

		valuation, err := e.gateway.GetSpreadValue(ctx, t.Ticker, expiration, t.SellStrike, t.BuyStrike)
		if err != nil {
			outcome := MarkFailed
			if marketdata.IsNoData(err) {
				outcome = MarkNoData
			}
			e.observer.TradeMarked(outcome)
			e.log.Warn().Err(err).Int64("trade_id", t.ID).Str("ticker", t.Ticker).
				Msg("Spread valuation failed, keeping last known values")
			skip(t, err.Error())
			continue
		}

		mark := markWrite{
			tradeID:     t.ID,
			spreadValue: valuation.SpreadValue,
			pnl:         MarkToMarket(t, valuation.SpreadValue),
			itm:         t.IsITM,
		}
		if valuation.UnderlyingPrice > 0 {
			price := valuation.UnderlyingPrice
			mark.stockPrice = &price
			mark.itm = price < t.SellStrike
		}
		marks = append(marks, mark)
	}

	var (
		netPnl    units.Cents
		allClosed = true
	)
	err = database.WithTransaction(ctx, e.conn, func(tx *sql.Tx) error {
		tradeRepo := e.trades.WithTx(tx)

		for _, m := range marks {
			ok, err := tradeRepo.UpdateMark(ctx, m.tradeID, m.spreadValue, m.stockPrice, m.pnl, m.itm, now)
			if err != nil {
				return err
			}
			if ok {
				report.TradesMarked++
			}
		}
		for _, r := range resolves {
			ok, err := tradeRepo.Resolve(ctx, r.tradeID, r.resolution, r.stockPrice, now)
			if err != nil {
				return err
			}
			if ok {
				report.TradesExpired++
			}
		}

		stored, err := tradeRepo.ListByPortfolio(ctx, id)
		if err != nil {
			return err
		}
		for _, t := range stored {
			netPnl += t.CurrentPnl
			if !t.Status.IsTerminal() {
				allClosed = false
			}
		}

		status := StatusActive
		if allClosed {
			status = StatusClosed
		}
		value := p.InitialCapital + netPnl
		if err := e.portfolios.WithTx(tx).UpdateValuation(ctx, id, status, value, netPnl, now); err != nil {
			return err
		}

		return e.history.WithTx(tx).Upsert(ctx, ValueHistoryPoint{
			PortfolioID:    id,
			SnapshotDate:   market_hours.FormatDate(now),
			PortfolioValue: value,
			NetPnl:         netPnl,
			RecordedAt:     now,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save P&L for portfolio %d: %w", id, err)
	}

	for range marks {
		e.observer.TradeMarked(MarkOK)
	}
	for _, r := range resolves {
		e.observer.TradeResolved(string(r.resolution.Status))
		e.log.Info().
			Int64("portfolio_id", id).
			Int64("trade_id", r.tradeID).
			Str("ticker", r.ticker).
			Str("status", string(r.resolution.Status)).
			Str("price_source", r.source).
			Str("settle_price", r.stockPrice.String()).
			Str("pnl", r.resolution.Pnl.String()).
			Msg("Trade expired")
	}

	report.Status = StatusActive
	if allClosed {
		report.Status = StatusClosed
	}
	report.NetPnl = units.FromCents(netPnl)
	report.CurrentValue = units.FromCents(p.InitialCapital + netPnl)

	e.log.Debug().
		Int64("portfolio_id", id).
		Str("status", string(report.Status)).
		Str("net_pnl", netPnl.String()).
		Int("marked", report.TradesMarked).
		Int("expired", report.TradesExpired).
		Int("skipped", report.TradesSkipped).
		Msg("Portfolio P&L updated")

	return report, nil
}

// expirationSources is the price chain used to settle an expired trade.
func (e *Engine) expirationSources(t Trade, expiration time.Time) []PriceSource {
	return []PriceSource{
		{
			Name: SourceCurrentQuote,
			Fetch: func(ctx context.Context) (units.Cents, error) {
				return e.gateway.GetCurrentPrice(ctx, t.Ticker)
			},
		},
		{
			Name: SourceExpirationClose,
			Fetch: func(ctx context.Context) (units.Cents, error) {
				day := e.calendar.LastTradingDayOnOrBefore(expiration)
				return e.gateway.GetClosePrice(ctx, t.Ticker, day)
			},
		},
		storedPriceSource(t),
	}
}
