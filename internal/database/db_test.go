package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStrategyDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{
		Path: filepath.Join(t.TempDir(), "strategy.db"),
		Name: StrategyDB,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

func TestMigrate_CreatesTablesAndIsIdempotent(t *testing.T) {
	db := newStrategyDB(t)

	require.NoError(t, db.Migrate())

	for _, table := range []string{"scan_results", "portfolios", "trades", "value_history", "quote_cache"} {
		var name string
		err := db.Conn().QueryRow(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
}

func TestMigrate_UnknownNameIsNoop(t *testing.T) {
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "other.db"), Name: "other"})
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.Migrate())
}

func TestForeignKeysCascade(t *testing.T) {
	db := newStrategyDB(t)
	ctx := context.Background()

	res, err := db.ExecContext(ctx, `
		INSERT INTO portfolios (scan_date, scan_name, kind, initial_capital, current_value, created_at, last_updated)
		VALUES ('2025-01-10', 'weekly', 'return', 10000000, 10000000, 0, 0)`)
	require.NoError(t, err)
	portfolioID, err := res.LastInsertId()
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `
		INSERT INTO trades (portfolio_id, position, ticker, entry_stock_price, sell_strike, buy_strike,
			expiration_date, contracts, premium_per_contract, spread_width, max_loss_per_contract,
			current_spread_value, created_at, updated_at)
		VALUES (?, 0, 'AAPL', 10000, 10000, 9500, '2025-02-21', 4, 200, 50000, 49800, 200, 0, 0)`, portfolioID)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `
		INSERT INTO value_history (portfolio_id, snapshot_date, portfolio_value, net_pnl, recorded_at)
		VALUES (?, '2025-01-10', 10000000, 0, 0)`, portfolioID)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, "DELETE FROM portfolios WHERE id = ?", portfolioID)
	require.NoError(t, err)

	var trades, history int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM trades").Scan(&trades))
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM value_history").Scan(&history))
	assert.Zero(t, trades)
	assert.Zero(t, history)
}

func TestTradeRejectsInvertedStrikes(t *testing.T) {
	db := newStrategyDB(t)
	ctx := context.Background()

	res, err := db.ExecContext(ctx, `
		INSERT INTO portfolios (scan_date, scan_name, kind, initial_capital, current_value, created_at, last_updated)
		VALUES ('2025-01-10', 'weekly', 'probability', 1, 1, 0, 0)`)
	require.NoError(t, err)
	id, _ := res.LastInsertId()

	_, err = db.ExecContext(ctx, `
		INSERT INTO trades (portfolio_id, position, ticker, entry_stock_price, sell_strike, buy_strike,
			expiration_date, contracts, premium_per_contract, spread_width, max_loss_per_contract,
			current_spread_value, created_at, updated_at)
		VALUES (?, 0, 'AAPL', 10000, 9500, 10000, '2025-02-21', 4, 200, 50000, 49800, 200, 0, 0)`, id)
	assert.Error(t, err)
}

func TestWithTransaction(t *testing.T) {
	db := newStrategyDB(t)
	ctx := context.Background()

	insert := func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO quote_cache (cache_key, kind, data, expires_at, stored_at) VALUES ('k', 'quote', x'00', 0, 0)`)
		return err
	}

	t.Run("rollback on error", func(t *testing.T) {
		err := WithTransaction(ctx, db.Conn(), func(tx *sql.Tx) error {
			require.NoError(t, insert(tx))
			return errors.New("boom")
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")

		var n int
		require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM quote_cache").Scan(&n))
		assert.Zero(t, n)
	})

	t.Run("rollback on panic", func(t *testing.T) {
		err := WithTransaction(ctx, db.Conn(), func(tx *sql.Tx) error {
			require.NoError(t, insert(tx))
			panic("kaboom")
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "panic in transaction")
	})

	t.Run("commit on success", func(t *testing.T) {
		require.NoError(t, WithTransaction(ctx, db.Conn(), insert))

		var n int
		require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM quote_cache").Scan(&n))
		assert.Equal(t, 1, n)
	})

	t.Run("nil connection", func(t *testing.T) {
		assert.Error(t, WithTransaction(ctx, nil, insert))
	})
}

func TestSnapshotTo(t *testing.T) {
	db := newStrategyDB(t)
	ctx := context.Background()

	dest := filepath.Join(t.TempDir(), "backup", "strategy-snapshot.db")
	require.NoError(t, db.SnapshotTo(ctx, dest))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	assert.Error(t, db.SnapshotTo(ctx, dest), "existing destination is refused")
}

func TestHealthAndStats(t *testing.T) {
	db := newStrategyDB(t)

	require.NoError(t, db.HealthCheck(context.Background()))
	require.NoError(t, db.WALCheckpoint(""))
	assert.Error(t, db.WALCheckpoint("bogus"))

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Greater(t, stats.PageCount, int64(0))
	assert.Greater(t, stats.PageSize, int64(0))
}

func TestBuildConnectionString(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		prefix string
	}{
		{"plain path", "/data/strategy.db", "/data/strategy.db?_pragma=journal_mode(WAL)"},
		{"uri with query", "file:strategy?mode=memory&cache=shared", "file:strategy?mode=memory&cache=shared&_pragma=journal_mode(WAL)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			connStr := buildConnectionString(tt.path)

			assert.True(t, strings.HasPrefix(connStr, tt.prefix), connStr)
			assert.Contains(t, connStr, "_pragma=synchronous(NORMAL)")
			assert.NotContains(t, connStr, "synchronous(OFF)")
			assert.Contains(t, connStr, "_pragma=foreign_keys(1)")
			assert.Contains(t, connStr, "_pragma=busy_timeout(5000)")
		})
	}
}

func TestNew_PoolLimits(t *testing.T) {
	db := newStrategyDB(t)

	assert.Equal(t, 8, db.Conn().Stats().MaxOpenConnections)
}
