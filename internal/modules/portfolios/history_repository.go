package portfolios

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/spreadbook/internal/database"
	"github.com/aristath/spreadbook/internal/units"
	"github.com/rs/zerolog"
)

// HistoryRepository stores one valuation per portfolio per market date.
type HistoryRepository struct {
	q   database.Querier
	log zerolog.Logger
}

// NewHistoryRepository creates a new value history repository.
func NewHistoryRepository(q database.Querier, log zerolog.Logger) *HistoryRepository {
	return &HistoryRepository{
		q:   q,
		log: log.With().Str("repo", "value_history").Logger(),
	}
}

// WithTx returns a repository bound to tx.
func (r *HistoryRepository) WithTx(tx *sql.Tx) *HistoryRepository {
	return &HistoryRepository{q: tx, log: r.log}
}

// Upsert records p, replacing any earlier point for the same portfolio and date.
func (r *HistoryRepository) Upsert(ctx context.Context, p ValueHistoryPoint) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO value_history (portfolio_id, snapshot_date, portfolio_value, net_pnl, recorded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(portfolio_id, snapshot_date) DO UPDATE SET
			portfolio_value = excluded.portfolio_value,
			net_pnl = excluded.net_pnl,
			recorded_at = excluded.recorded_at
	`, p.PortfolioID, p.SnapshotDate, int64(p.PortfolioValue), int64(p.NetPnl), p.RecordedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert value history for portfolio %d: %w", p.PortfolioID, err)
	}
	return nil
}

// ListByPortfolio returns a portfolio's history, oldest date first.
func (r *HistoryRepository) ListByPortfolio(ctx context.Context, portfolioID int64) ([]ValueHistoryPoint, error) {
	return r.list(ctx, `
		SELECT portfolio_id, snapshot_date, portfolio_value, net_pnl, recorded_at
		FROM value_history
		WHERE portfolio_id = ?
		ORDER BY snapshot_date
	`, portfolioID)
}

// ListByPortfolios returns the history of several portfolios grouped by portfolio id.
func (r *HistoryRepository) ListByPortfolios(ctx context.Context, ids []int64) (map[int64][]ValueHistoryPoint, error) {
	grouped := make(map[int64][]ValueHistoryPoint, len(ids))
	if len(ids) == 0 {
		return grouped, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	points, err := r.list(ctx, `
		SELECT portfolio_id, snapshot_date, portfolio_value, net_pnl, recorded_at
		FROM value_history
		WHERE portfolio_id IN (`+placeholders+`)
		ORDER BY portfolio_id, snapshot_date
	`, args...)
	if err != nil {
		return nil, err
	}

	for _, p := range points {
		grouped[p.PortfolioID] = append(grouped[p.PortfolioID], p)
	}
	return grouped, nil
}

func (r *HistoryRepository) list(ctx context.Context, query string, args ...interface{}) ([]ValueHistoryPoint, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query value history: %w", err)
	}
	defer rows.Close()

	points := make([]ValueHistoryPoint, 0)
	for rows.Next() {
		var (
			p                 ValueHistoryPoint
			value, pnl, recAt int64
		)
		if err := rows.Scan(&p.PortfolioID, &p.SnapshotDate, &value, &pnl, &recAt); err != nil {
			return nil, fmt.Errorf("failed to scan value history: %w", err)
		}
		p.PortfolioValue = units.Cents(value)
		p.NetPnl = units.Cents(pnl)
		p.RecordedAt = time.Unix(recAt, 0).UTC()
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating value history: %w", err)
	}

	return points, nil
}
