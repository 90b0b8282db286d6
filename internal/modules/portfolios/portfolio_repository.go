package portfolios

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/spreadbook/internal/database"
	"github.com/aristath/spreadbook/internal/units"
	"github.com/rs/zerolog"
)

// portfolioColumns is the list of columns for the portfolios table.
// Column order must match scanPortfolio().
const portfolioColumns = `id, scan_date, scan_name, kind, status, initial_capital, total_premium_collected,
current_value, net_pnl, build_id, created_at, last_updated`

// PortfolioRepository handles portfolios database operations.
type PortfolioRepository struct {
	q   database.Querier
	log zerolog.Logger
}

// NewPortfolioRepository creates a new portfolio repository.
func NewPortfolioRepository(q database.Querier, log zerolog.Logger) *PortfolioRepository {
	return &PortfolioRepository{
		q:   q,
		log: log.With().Str("repo", "portfolios").Logger(),
	}
}

// WithTx returns a repository bound to tx.
func (r *PortfolioRepository) WithTx(tx *sql.Tx) *PortfolioRepository {
	return &PortfolioRepository{q: tx, log: r.log}
}

// Create inserts p and sets its ID.
func (r *PortfolioRepository) Create(ctx context.Context, p *Portfolio) error {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO portfolios
		(scan_date, scan_name, kind, status, initial_capital, total_premium_collected,
		 current_value, net_pnl, build_id, created_at, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ScanDate,
		p.ScanName,
		string(p.Kind),
		string(p.Status),
		int64(p.InitialCapital),
		int64(p.TotalPremiumCollected),
		int64(p.CurrentValue),
		int64(p.NetPnl),
		p.BuildID,
		p.CreatedAt.Unix(),
		p.LastUpdated.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s portfolio: %w", p.Kind, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	p.ID = id
	return nil
}

// GetByID returns the portfolio with id, or ErrPortfolioNotFound.
func (r *PortfolioRepository) GetByID(ctx context.Context, id int64) (*Portfolio, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+portfolioColumns+" FROM portfolios WHERE id = ?", id)
	p, err := scanPortfolio(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrPortfolioNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio %d: %w", id, err)
	}
	return &p, nil
}

// ListAll returns every portfolio, newest scan first.
func (r *PortfolioRepository) ListAll(ctx context.Context) ([]Portfolio, error) {
	return r.list(ctx, "SELECT "+portfolioColumns+" FROM portfolios ORDER BY scan_date DESC, scan_name, kind")
}

// ListActive returns portfolios that still hold open trades.
func (r *PortfolioRepository) ListActive(ctx context.Context) ([]Portfolio, error) {
	return r.list(ctx, "SELECT "+portfolioColumns+" FROM portfolios WHERE status = ? ORDER BY id", string(StatusActive))
}

// ListByScanName returns the portfolios built from scans named scanName, oldest first.
func (r *PortfolioRepository) ListByScanName(ctx context.Context, scanName string) ([]Portfolio, error) {
	return r.list(ctx, "SELECT "+portfolioColumns+" FROM portfolios WHERE scan_name = ? ORDER BY scan_date, kind", scanName)
}

// UpdateValuation writes the result of a P&L pass.
func (r *PortfolioRepository) UpdateValuation(ctx context.Context, id int64, status Status, currentValue, netPnl units.Cents, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE portfolios
		SET status = ?, current_value = ?, net_pnl = ?, last_updated = ?
		WHERE id = ?
	`, string(status), int64(currentValue), int64(netPnl), at.Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update portfolio %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrPortfolioNotFound, id)
	}
	return nil
}

// DeleteForScan deletes the portfolios built from a scan date, optionally limited to
// one scan name, together with their trades and history. It runs on q so callers
// can include it in their own transaction.
func (r *PortfolioRepository) DeleteForScan(ctx context.Context, q database.Querier, scanDate string, scanName *string) (int64, error) {
	where := "scan_date = ?"
	args := []interface{}{scanDate}
	if scanName != nil {
		where += " AND scan_name = ?"
		args = append(args, *scanName)
	}

	// Children go first so nothing depends on the FK pragma being on.
	if _, err := q.ExecContext(ctx,
		"DELETE FROM trades WHERE portfolio_id IN (SELECT id FROM portfolios WHERE "+where+")", args...); err != nil {
		return 0, fmt.Errorf("failed to delete trades for %s: %w", scanDate, err)
	}
	if _, err := q.ExecContext(ctx,
		"DELETE FROM value_history WHERE portfolio_id IN (SELECT id FROM portfolios WHERE "+where+")", args...); err != nil {
		return 0, fmt.Errorf("failed to delete value history for %s: %w", scanDate, err)
	}

	res, err := q.ExecContext(ctx, "DELETE FROM portfolios WHERE "+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete portfolios for %s: %w", scanDate, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if n > 0 {
		r.log.Debug().Str("scan_date", scanDate).Int64("deleted", n).Msg("Deleted portfolios for scan")
	}
	return n, nil
}

func (r *PortfolioRepository) list(ctx context.Context, query string, args ...interface{}) ([]Portfolio, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	portfolios := make([]Portfolio, 0)
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		portfolios = append(portfolios, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolios: %w", err)
	}

	return portfolios, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPortfolio(s rowScanner) (Portfolio, error) {
	var (
		p                            Portfolio
		kind, status                 string
		capital, premium, value, pnl int64
		createdAt, lastUpdated       int64
	)

	err := s.Scan(
		&p.ID, &p.ScanDate, &p.ScanName, &kind, &status,
		&capital, &premium, &value, &pnl, &p.BuildID, &createdAt, &lastUpdated,
	)
	if err != nil {
		return Portfolio{}, err
	}

	p.Kind = Kind(kind)
	p.Status = Status(status)
	p.InitialCapital = units.Cents(capital)
	p.TotalPremiumCollected = units.Cents(premium)
	p.CurrentValue = units.Cents(value)
	p.NetPnl = units.Cents(pnl)
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	p.LastUpdated = time.Unix(lastUpdated, 0).UTC()

	return p, nil
}
