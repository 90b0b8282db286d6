package scans

import (
	"context"
	"errors"
	"testing"

	"github.com/aristath/spreadbook/internal/database"
	testutil "github.com/aristath/spreadbook/internal/testing"
	"github.com/aristath/spreadbook/internal/units"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tablePurger deletes portfolios directly, the way the portfolio repository does.
type tablePurger struct {
	calls int
	err   error
}

func (p *tablePurger) DeleteForScan(ctx context.Context, q database.Querier, scanDate string, scanName *string) (int64, error) {
	p.calls++
	if p.err != nil {
		return 0, p.err
	}
	query := "DELETE FROM portfolios WHERE scan_date = ?"
	args := []interface{}{scanDate}
	if scanName != nil {
		query += " AND scan_name = ?"
		args = append(args, *scanName)
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type staticSource struct {
	rows []RawRow
	err  error
}

func (s staticSource) FetchScan(ctx context.Context, scanName string) ([]RawRow, error) {
	return s.rows, s.err
}

func newTestService(t *testing.T) (*Service, *database.DB, *tablePurger) {
	t.Helper()
	db := testutil.NewStrategyTestDB(t)
	purger := &tablePurger{}
	return NewService(db.Conn(), purger, zerolog.Nop()), db, purger
}

func sampleRows() []RawRow {
	return []RawRow{
		{Ticker: "AAPL", Strike: "215/210", ExpDate: "2025-02-21", Price: 228.5, ProbMaxProfit: 84.12, MaxProfit: 0.55, MaxLoss: 4.45, ReturnPercent: 12.36},
		{Ticker: "MSFT", Strike: "395/400", ExpDate: "2025-02-21", Price: 425.1, ProbMaxProfit: 81.5, MaxProfit: 0.62, MaxLoss: 4.38, ReturnPercent: 14.16},
		{Ticker: "KO", Strike: "60/57.5", ExpDate: "2025-02-21", Price: 62.4, ProbMaxProfit: 76, MaxProfit: 0.31, MaxLoss: 2.19, ReturnPercent: 1.42},
	}
}

func insertPortfolio(t *testing.T, db *database.DB, scanDate, scanName, kind string) {
	t.Helper()
	_, err := db.Conn().Exec(`
		INSERT INTO portfolios (scan_date, scan_name, kind, initial_capital, current_value, created_at, last_updated)
		VALUES (?, ?, ?, 10000000, 10000000, 0, 0)`, scanDate, scanName, kind)
	require.NoError(t, err)
}

func TestSaveScanResults(t *testing.T) {
	service, db, _ := newTestService(t)
	ctx := context.Background()

	n, err := service.SaveScanResults(ctx, sampleRows(), "weekly", "01/17/2025")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	exists, err := service.ScanExistsForDate(ctx, "2025-01-17", "weekly")
	require.NoError(t, err)
	assert.True(t, exists)

	stored, err := service.Repository().GetByKey(ctx, "2025-01-17", "weekly")
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, "AAPL", stored[0].Ticker, "ingestion order is preserved")
	assert.Equal(t, "400/395", stored[1].Strike)
	assert.Equal(t, units.Cents(6200), stored[1].MaxProfit)
	assert.Equal(t, testutil.CountRows(t, db.Conn(), "scan_results"), 3)
}

func TestSaveScanResults_EmptyInputHasNoSideEffects(t *testing.T) {
	service, db, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.SaveScanResults(ctx, sampleRows(), "weekly", "2025-01-17")
	require.NoError(t, err)

	n, err := service.SaveScanResults(ctx, nil, "weekly", "2025-01-17")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 3, testutil.CountRows(t, db.Conn(), "scan_results"), "existing rows untouched")
}

func TestSaveScanResults_SameKeyReplaces(t *testing.T) {
	service, db, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.SaveScanResults(ctx, sampleRows(), "weekly", "2025-01-17")
	require.NoError(t, err)
	_, err = service.SaveScanResults(ctx, sampleRows()[:1], "weekly", "2025-01-17")
	require.NoError(t, err)
	_, err = service.SaveScanResults(ctx, sampleRows(), "monthly", "2025-01-17")
	require.NoError(t, err)

	weekly, err := service.Repository().GetByKey(ctx, "2025-01-17", "weekly")
	require.NoError(t, err)
	assert.Len(t, weekly, 1)
	assert.Equal(t, 4, testutil.CountRows(t, db.Conn(), "scan_results"))
}

func TestSaveScanResults_InvalidRowWritesNothing(t *testing.T) {
	service, db, _ := newTestService(t)
	ctx := context.Background()

	rows := sampleRows()
	rows = append(rows, RawRow{Ticker: "", Strike: "10/5", ExpDate: "2025-02-21"})

	_, err := service.SaveScanResults(ctx, rows, "weekly", "2025-01-17")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRow)
	assert.Zero(t, testutil.CountRows(t, db.Conn(), "scan_results"))
}

func TestSaveScanResults_InvalidKey(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.SaveScanResults(ctx, sampleRows(), " ", "2025-01-17")
	assert.Error(t, err)
	_, err = service.SaveScanResults(ctx, sampleRows(), "weekly", "not a date")
	assert.Error(t, err)
}

func TestDeleteScanDataForDate(t *testing.T) {
	service, db, purger := newTestService(t)
	ctx := context.Background()

	_, err := service.SaveScanResults(ctx, sampleRows(), "weekly", "2025-01-17")
	require.NoError(t, err)
	_, err = service.SaveScanResults(ctx, sampleRows(), "monthly", "2025-01-17")
	require.NoError(t, err)
	insertPortfolio(t, db, "2025-01-17", "weekly", "return")
	insertPortfolio(t, db, "2025-01-17", "weekly", "probability")
	insertPortfolio(t, db, "2025-01-17", "monthly", "return")

	name := "weekly"
	result, err := service.DeleteScanDataForDate(ctx, "2025-01-17", &name)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Portfolios)
	assert.Equal(t, int64(3), result.ScanResults)
	assert.Equal(t, 1, purger.calls)

	exists, err := service.ScanExistsForDate(ctx, "2025-01-17", "weekly")
	require.NoError(t, err)
	assert.False(t, exists)

	// nil name purges the rest of the date
	result, err = service.DeleteScanDataForDate(ctx, "2025-01-17", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Portfolios)
	assert.Equal(t, int64(3), result.ScanResults)
	assert.Zero(t, testutil.CountRows(t, db.Conn(), "portfolios"))
}

func TestDeleteScanDataForDate_PurgerFailureRollsBack(t *testing.T) {
	service, db, purger := newTestService(t)
	ctx := context.Background()

	_, err := service.SaveScanResults(ctx, sampleRows(), "weekly", "2025-01-17")
	require.NoError(t, err)
	purger.err = errors.New("locked")

	_, err = service.DeleteScanDataForDate(ctx, "2025-01-17", nil)
	require.Error(t, err)
	assert.Equal(t, 3, testutil.CountRows(t, db.Conn(), "scan_results"))
}

func TestListAndGetScanResults(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.SaveScanResults(ctx, sampleRows(), "weekly", "2025-01-17")
	require.NoError(t, err)
	_, err = service.SaveScanResults(ctx, sampleRows()[:2], "weekly", "2025-01-10")
	require.NoError(t, err)

	summaries, err := service.ListScanDates(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, ScanDateSummary{ScanDate: "2025-01-17", ScanName: "weekly", Count: 3}, summaries[0])
	assert.Equal(t, 2, summaries[1].Count)

	name := "weekly"
	views, err := service.GetScanResults(ctx, "2025-01-17", &name)
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, "MSFT", views[0].Ticker, "sorted by return descending")
	assert.InDelta(t, 14.16, views[0].ReturnPercent, 1e-9)
	assert.InDelta(t, 425.10, views[0].Price, 1e-9)
	assert.InDelta(t, 62.0, views[0].MaxProfit, 1e-9)
	assert.Equal(t, "KO", views[2].Ticker)
}

func TestIngest(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	n, err := service.Ingest(ctx, staticSource{rows: sampleRows()}, "weekly", "2025-01-17")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = service.Ingest(ctx, staticSource{err: errors.New("browser crashed")}, "weekly", "2025-01-17")
	assert.Error(t, err)
}
