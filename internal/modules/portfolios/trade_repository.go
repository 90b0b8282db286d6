package portfolios

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/spreadbook/internal/database"
	"github.com/aristath/spreadbook/internal/units"
	"github.com/rs/zerolog"
)

// tradeColumns is the list of columns for the trades table.
// Column order must match scanTrade().
const tradeColumns = `id, portfolio_id, position, ticker, entry_stock_price, sell_strike, buy_strike,
expiration_date, contracts, premium_per_contract, spread_width, max_loss_per_contract,
current_spread_value, current_stock_price, current_pnl, status, is_itm, created_at, updated_at, resolved_at`

// TradeRepository handles trades database operations. Writes never move a trade
// out of a terminal status: every update is guarded by status = 'open'.
type TradeRepository struct {
	q   database.Querier
	log zerolog.Logger
}

// NewTradeRepository creates a new trade repository.
func NewTradeRepository(q database.Querier, log zerolog.Logger) *TradeRepository {
	return &TradeRepository{
		q:   q,
		log: log.With().Str("repo", "trades").Logger(),
	}
}

// WithTx returns a repository bound to tx.
func (r *TradeRepository) WithTx(tx *sql.Tx) *TradeRepository {
	return &TradeRepository{q: tx, log: r.log}
}

// Insert stores t and sets its ID.
func (r *TradeRepository) Insert(ctx context.Context, t *Trade) error {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO trades
		(portfolio_id, position, ticker, entry_stock_price, sell_strike, buy_strike, expiration_date,
		 contracts, premium_per_contract, spread_width, max_loss_per_contract, current_spread_value,
		 current_stock_price, current_pnl, status, is_itm, created_at, updated_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.PortfolioID,
		t.Position,
		t.Ticker,
		int64(t.EntryStockPrice),
		int64(t.SellStrike),
		int64(t.BuyStrike),
		t.ExpirationDate,
		t.Contracts,
		int64(t.PremiumPerContract),
		int64(t.SpreadWidth),
		int64(t.MaxLossPerContract),
		int64(t.CurrentSpreadValue),
		nullCents(t.CurrentStockPrice),
		int64(t.CurrentPnl),
		string(t.Status),
		boolToInt(t.IsITM),
		t.CreatedAt.Unix(),
		t.UpdatedAt.Unix(),
		nullTime(t.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade %s: %w", t.Ticker, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	t.ID = id
	return nil
}

// ListByPortfolio returns a portfolio's trades in selection order.
func (r *TradeRepository) ListByPortfolio(ctx context.Context, portfolioID int64) ([]Trade, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+tradeColumns+" FROM trades WHERE portfolio_id = ? ORDER BY position, id", portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	trades := make([]Trade, 0)
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}

	return trades, nil
}

// UpdateMark records a mark-to-market valuation of an open trade. A nil stockPrice
// keeps the stored underlying price. It reports false when the trade is no longer open.
func (r *TradeRepository) UpdateMark(ctx context.Context, id int64, spreadValue units.Cents, stockPrice *units.Cents, pnl units.Cents, itm bool, at time.Time) (bool, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE trades
		SET current_spread_value = ?, current_stock_price = COALESCE(?, current_stock_price),
		    current_pnl = ?, is_itm = ?, updated_at = ?
		WHERE id = ? AND status = 'open'
	`, int64(spreadValue), nullCents(stockPrice), int64(pnl), boolToInt(itm), at.Unix(), id)
	if err != nil {
		return false, fmt.Errorf("failed to mark trade %d: %w", id, err)
	}
	return affectedOne(res)
}

// Resolve settles an open trade at stockPrice. It reports false when the trade
// was already resolved.
func (r *TradeRepository) Resolve(ctx context.Context, id int64, res Resolution, stockPrice units.Cents, at time.Time) (bool, error) {
	result, err := r.q.ExecContext(ctx, `
		UPDATE trades
		SET status = ?, current_spread_value = ?, current_stock_price = ?, current_pnl = ?,
		    is_itm = ?, updated_at = ?, resolved_at = ?
		WHERE id = ? AND status = 'open'
	`, string(res.Status), int64(res.SpreadValue), int64(stockPrice), int64(res.Pnl),
		boolToInt(res.IsITM), at.Unix(), at.Unix(), id)
	if err != nil {
		return false, fmt.Errorf("failed to resolve trade %d: %w", id, err)
	}
	return affectedOne(result)
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

func scanTrade(rows *sql.Rows) (Trade, error) {
	var (
		t                                Trade
		entry, sell, buy, premium, width int64
		maxLoss, spreadValue, pnl        int64
		stockPrice, resolvedAt           sql.NullInt64
		status                           string
		itm                              int
		createdAt, updatedAt             int64
	)

	err := rows.Scan(
		&t.ID, &t.PortfolioID, &t.Position, &t.Ticker, &entry, &sell, &buy,
		&t.ExpirationDate, &t.Contracts, &premium, &width, &maxLoss,
		&spreadValue, &stockPrice, &pnl, &status, &itm, &createdAt, &updatedAt, &resolvedAt,
	)
	if err != nil {
		return Trade{}, fmt.Errorf("failed to scan trade: %w", err)
	}

	t.EntryStockPrice = units.Cents(entry)
	t.SellStrike = units.Cents(sell)
	t.BuyStrike = units.Cents(buy)
	t.PremiumPerContract = units.Cents(premium)
	t.SpreadWidth = units.Cents(width)
	t.MaxLossPerContract = units.Cents(maxLoss)
	t.CurrentSpreadValue = units.Cents(spreadValue)
	t.CurrentPnl = units.Cents(pnl)
	t.Status = TradeStatus(status)
	t.IsITM = itm != 0
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	t.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	if stockPrice.Valid {
		price := units.Cents(stockPrice.Int64)
		t.CurrentStockPrice = &price
	}
	if resolvedAt.Valid {
		resolved := time.Unix(resolvedAt.Int64, 0).UTC()
		t.ResolvedAt = &resolved
	}

	return t, nil
}

func nullCents(c *units.Cents) sql.NullInt64 {
	if c == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*c), Valid: true}
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
