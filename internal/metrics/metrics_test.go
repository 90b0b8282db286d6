package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, r *Registry) string {
	t.Helper()
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestRegistry_RecordsEvents(t *testing.T) {
	r := NewRegistry()

	r.ObserveGatewayCall("spread_value", "ok", 120*time.Millisecond)
	r.ObserveGatewayCall("spread_value", "no_data", 80*time.Millisecond)
	r.PortfoliosBuilt("weekly", 2)
	r.TradeMarked("ok")
	r.TradeResolved("expired_profit")
	r.PassCompleted("batch", 3*time.Second, 1)
	r.ObserveJob("pnl_update", time.Second, nil)
	r.ObserveJob("pnl_update", time.Second, errors.New("boom"))
	r.TrackGauge("gateway_breaker_state", "Circuit breaker state", func() float64 { return 2 })

	body := scrape(t, r)
	for _, want := range []string{
		`spreadbook_gateway_calls_total{method="spread_value",outcome="ok"} 1`,
		`spreadbook_gateway_calls_total{method="spread_value",outcome="no_data"} 1`,
		`spreadbook_portfolios_built_total{scan_name="weekly"} 2`,
		`spreadbook_trades_marked_total{outcome="ok"} 1`,
		`spreadbook_trades_resolved_total{status="expired_profit"} 1`,
		`spreadbook_pnl_pass_failures_total{pass="batch"} 1`,
		`spreadbook_job_runs_total{job="pnl_update",result="ok"} 1`,
		`spreadbook_job_runs_total{job="pnl_update",result="error"} 1`,
		`spreadbook_gateway_breaker_state 2`,
		`go_goroutines`,
	} {
		assert.Contains(t, body, want)
	}
}

func TestRegistry_Isolated(t *testing.T) {
	// Two registries in one process must not collide.
	a, b := NewRegistry(), NewRegistry()
	a.TradeMarked("ok")

	assert.Contains(t, scrape(t, a), `spreadbook_trades_marked_total{outcome="ok"} 1`)
	assert.NotContains(t, scrape(t, b), `spreadbook_trades_marked_total{outcome="ok"}`)
}
