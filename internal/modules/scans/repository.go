package scans

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/spreadbook/internal/database"
	"github.com/aristath/spreadbook/internal/units"
	"github.com/rs/zerolog"
)

// scanResultColumns is the list of columns for the scan_results table.
// Column order must match scanScanResult().
const scanResultColumns = `id, scan_date, scan_name, ticker, company_name, price, price_change,
iv_rank, iv_percentile, strike, moneyness, exp_date, days_to_exp, total_opt_vol,
prob_max_profit, max_profit, max_loss, return_percent, created_at`

// Repository handles scan_results database operations.
type Repository struct {
	q   database.Querier
	log zerolog.Logger
}

// NewRepository creates a new scan results repository.
func NewRepository(q database.Querier, log zerolog.Logger) *Repository {
	return &Repository{
		q:   q,
		log: log.With().Str("repo", "scan_results").Logger(),
	}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *sql.Tx) *Repository {
	return &Repository{q: tx, log: r.log}
}

// InsertBatch inserts rows, setting ID and CreatedAt on each.
func (r *Repository) InsertBatch(ctx context.Context, rows []ScanResult) error {
	now := time.Now().Unix()

	query := `
		INSERT INTO scan_results
		(scan_date, scan_name, ticker, company_name, price, price_change, iv_rank, iv_percentile,
		 strike, moneyness, exp_date, days_to_exp, total_opt_vol, prob_max_profit, max_profit,
		 max_loss, return_percent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for i := range rows {
		row := &rows[i]
		res, err := r.q.ExecContext(ctx, query,
			row.ScanDate,
			row.ScanName,
			row.Ticker,
			row.CompanyName,
			int64(row.Price),
			int64(row.PriceChange),
			int64(row.IVRank),
			int64(row.IVPercentile),
			row.Strike,
			int64(row.Moneyness),
			row.ExpDate,
			row.DaysToExp,
			row.TotalOptVol,
			int64(row.ProbMaxProfit),
			int64(row.MaxProfit),
			int64(row.MaxLoss),
			int64(row.ReturnPercent),
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert scan result %s: %w", row.Ticker, err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get insert ID: %w", err)
		}
		row.ID = id
		row.CreatedAt = now
	}

	return nil
}

// DeleteByKey deletes the rows for a scan date, optionally limited to one scan name.
func (r *Repository) DeleteByKey(ctx context.Context, scanDate string, scanName *string) (int64, error) {
	query := "DELETE FROM scan_results WHERE scan_date = ?"
	args := []interface{}{scanDate}
	if scanName != nil {
		query += " AND scan_name = ?"
		args = append(args, *scanName)
	}

	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete scan results for %s: %w", scanDate, err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// Exists reports whether any row is stored for the key.
func (r *Repository) Exists(ctx context.Context, scanDate, scanName string) (bool, error) {
	var exists int
	err := r.q.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM scan_results WHERE scan_date = ? AND scan_name = ?)",
		scanDate, scanName,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check scan existence: %w", err)
	}
	return exists == 1, nil
}

// GetByKey returns the rows for a key in ingestion order.
func (r *Repository) GetByKey(ctx context.Context, scanDate, scanName string) ([]ScanResult, error) {
	query := "SELECT " + scanResultColumns + " FROM scan_results WHERE scan_date = ? AND scan_name = ? ORDER BY id"
	return r.query(ctx, query, scanDate, scanName)
}

// GetForDate returns rows for a date, optionally filtered by scan name, best return first.
func (r *Repository) GetForDate(ctx context.Context, scanDate string, scanName *string) ([]ScanResult, error) {
	query := "SELECT " + scanResultColumns + " FROM scan_results WHERE scan_date = ?"
	args := []interface{}{scanDate}
	if scanName != nil {
		query += " AND scan_name = ?"
		args = append(args, *scanName)
	}
	query += " ORDER BY return_percent DESC, id"
	return r.query(ctx, query, args...)
}

// ListDates returns one summary per stored key, newest date first.
func (r *Repository) ListDates(ctx context.Context) ([]ScanDateSummary, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT scan_date, scan_name, COUNT(*)
		FROM scan_results
		GROUP BY scan_date, scan_name
		ORDER BY scan_date DESC, scan_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list scan dates: %w", err)
	}
	defer rows.Close()

	summaries := make([]ScanDateSummary, 0)
	for rows.Next() {
		var s ScanDateSummary
		if err := rows.Scan(&s.ScanDate, &s.ScanName, &s.Count); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scan summaries: %w", err)
	}

	return summaries, nil
}

func (r *Repository) query(ctx context.Context, query string, args ...interface{}) ([]ScanResult, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan results: %w", err)
	}
	defer rows.Close()

	results := make([]ScanResult, 0)
	for rows.Next() {
		s, err := scanScanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scan results: %w", err)
	}

	return results, nil
}

func scanScanResult(rows *sql.Rows) (ScanResult, error) {
	var (
		s                                               ScanResult
		price, priceChange, ivRank, ivPercentile, money int64
		prob, maxProfit, maxLoss, returnPercent         int64
	)

	err := rows.Scan(
		&s.ID, &s.ScanDate, &s.ScanName, &s.Ticker, &s.CompanyName,
		&price, &priceChange, &ivRank, &ivPercentile, &s.Strike, &money,
		&s.ExpDate, &s.DaysToExp, &s.TotalOptVol,
		&prob, &maxProfit, &maxLoss, &returnPercent, &s.CreatedAt,
	)
	if err != nil {
		return ScanResult{}, fmt.Errorf("failed to scan scan result: %w", err)
	}

	s.Price = units.Cents(price)
	s.PriceChange = units.BasisPoints(priceChange)
	s.IVRank = units.BasisPoints(ivRank)
	s.IVPercentile = units.BasisPoints(ivPercentile)
	s.Moneyness = units.BasisPoints(money)
	s.ProbMaxProfit = units.BasisPoints(prob)
	s.MaxProfit = units.Cents(maxProfit)
	s.MaxLoss = units.Cents(maxLoss)
	s.ReturnPercent = units.BasisPoints(returnPercent)

	return s, nil
}
