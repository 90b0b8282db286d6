package tradier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/spreadbook/internal/clientdata"
	"github.com/aristath/spreadbook/internal/marketdata"
	"github.com/aristath/spreadbook/internal/modules/market_hours"
	testutil "github.com/aristath/spreadbook/internal/testing"
	"github.com/aristath/spreadbook/internal/units"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	quoteSingleJSON = `{"quotes":{"quote":{"symbol":"AAPL","last":101.25,"bid":101.2,"ask":101.3,"close":null,"prevclose":100.5}}}`
	quoteUnmatched  = `{"quotes":{"unmatched_symbols":{"symbol":"NOPE"}}}`
	chainJSON       = `{"options":{"option":[
		{"symbol":"AAPL250221P00100000","strike":100.0,"bid":2.10,"ask":2.30,"last":2.2,"option_type":"put","expiration_date":"2025-02-21"},
		{"symbol":"AAPL250221P00095000","strike":95.0,"bid":0.60,"ask":0.80,"last":0.7,"option_type":"put","expiration_date":"2025-02-21"},
		{"symbol":"AAPL250221C00100000","strike":100.0,"bid":3.10,"ask":3.30,"last":3.2,"option_type":"call","expiration_date":"2025-02-21"}
	]}}`
	emptyChainJSON = `{"options":null}`
	historyJSON    = `{"history":{"day":{"date":"2025-01-17","open":99.0,"high":102.0,"low":98.5,"close":101.75,"volume":1000}}}`
	emptyHistory   = `{"history":null}`
	calendarJSON   = `{"calendar":{"month":1,"year":2025,"days":{"day":[
		{"date":"2025-01-09","status":"closed","description":"Market closed"},
		{"date":"2025-01-10","status":"open"}
	]}}}`
)

func newTestServer(t *testing.T, routes map[string]string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if body == "500" {
			http.Error(w, "upstream exploded", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestClient(t *testing.T, baseURL string, cache *clientdata.Repository) *Client {
	t.Helper()
	client, err := NewClient(Config{BaseURL: baseURL, Token: "test-token", RequestSpacing: time.Millisecond}, cache, market_hours.NewCalendar(), zerolog.Nop())
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := NewClient(Config{}, nil, nil, zerolog.Nop())
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestOneOrMany(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{"single object", `{"symbol":"A"}`, 1},
		{"array", `[{"symbol":"A"},{"symbol":"B"}]`, 2},
		{"null", `null`, 0},
		{"string null", `"null"`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got oneOrMany[Quote]
			require.NoError(t, json.Unmarshal([]byte(tt.input), &got))
			assert.Len(t, got, tt.expected)
		})
	}
}

func TestGetCurrentPrice(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{"/v1/markets/quotes": quoteSingleJSON})
	client := newTestClient(t, srv.URL, nil)

	price, err := client.GetCurrentPrice(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, units.Cents(10125), price)
}

func TestGetCurrentPrice_Unmatched(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{"/v1/markets/quotes": quoteUnmatched})
	client := newTestClient(t, srv.URL, nil)

	_, err := client.GetCurrentPrice(context.Background(), "NOPE")
	assert.ErrorIs(t, err, marketdata.ErrNoData)
}

func TestGetSpreadValue(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{
		"/v1/markets/quotes":         quoteSingleJSON,
		"/v1/markets/options/chains": chainJSON,
	})
	client := newTestClient(t, srv.URL, nil)
	expiration := market_hours.MustParseDate("2025-02-21")

	v, err := client.GetSpreadValue(context.Background(), "AAPL", expiration, 10000, 9500)
	require.NoError(t, err)

	// (2.20 - 0.70) x 100 = $150.00 per contract
	assert.Equal(t, units.Cents(15000), v.SpreadValue)
	assert.Equal(t, units.Cents(10125), v.UnderlyingPrice)
}

func TestGetSpreadValue_ClampedToWidth(t *testing.T) {
	tests := []struct {
		name     string
		sellLast float64
		buyLast  float64
		expected units.Cents
	}{
		{"inside bounds", 2.2, 0.7, 15000},
		{"crossed quotes", 0.5, 0.9, 0},
		{"wider than strikes", 6.4, 0.2, 50000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := fmt.Sprintf(`{"options":{"option":[
				{"symbol":"AAPL250221P00100000","strike":100.0,"last":%g,"option_type":"put","expiration_date":"2025-02-21"},
				{"symbol":"AAPL250221P00095000","strike":95.0,"last":%g,"option_type":"put","expiration_date":"2025-02-21"}
			]}}`, tt.sellLast, tt.buyLast)
			srv, _ := newTestServer(t, map[string]string{
				"/v1/markets/quotes":         quoteSingleJSON,
				"/v1/markets/options/chains": chain,
			})
			client := newTestClient(t, srv.URL, nil)

			v, err := client.GetSpreadValue(context.Background(), "AAPL", market_hours.MustParseDate("2025-02-21"), 10000, 9500)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v.SpreadValue)
		})
	}
}

func TestGetSpreadValue_MissingStrikeIsNoData(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{
		"/v1/markets/quotes":         quoteSingleJSON,
		"/v1/markets/options/chains": chainJSON,
	})
	client := newTestClient(t, srv.URL, nil)

	_, err := client.GetSpreadValue(context.Background(), "AAPL", market_hours.MustParseDate("2025-02-21"), 10000, 9000)
	assert.ErrorIs(t, err, marketdata.ErrNoData)
}

func TestGetSpreadValue_EmptyChain(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{"/v1/markets/options/chains": emptyChainJSON})
	client := newTestClient(t, srv.URL, nil)

	_, err := client.GetSpreadValue(context.Background(), "AAPL", market_hours.MustParseDate("2025-02-21"), 10000, 9500)
	assert.ErrorIs(t, err, marketdata.ErrNoData)
}

func TestGetClosePrice(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{"/v1/markets/history": historyJSON})
	client := newTestClient(t, srv.URL, nil)

	price, err := client.GetClosePrice(context.Background(), "AAPL", market_hours.MustParseDate("2025-01-17"))
	require.NoError(t, err)
	assert.Equal(t, units.Cents(10175), price)

	srvEmpty, _ := newTestServer(t, map[string]string{"/v1/markets/history": emptyHistory})
	clientEmpty := newTestClient(t, srvEmpty.URL, nil)
	_, err = clientEmpty.GetClosePrice(context.Background(), "AAPL", market_hours.MustParseDate("2025-01-18"))
	assert.ErrorIs(t, err, marketdata.ErrNoData)
}

func TestIsTradingDay(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{"/v1/markets/calendar": calendarJSON})
	client := newTestClient(t, srv.URL, nil)
	ctx := context.Background()

	// National day of mourning: closed per the provider, not in the local holiday rules
	open, err := client.IsTradingDay(ctx, market_hours.MustParseDate("2025-01-09"))
	require.NoError(t, err)
	assert.False(t, open)

	open, err = client.IsTradingDay(ctx, market_hours.MustParseDate("2025-01-10"))
	require.NoError(t, err)
	assert.True(t, open)

	// Not listed: local calendar answers (MLK day)
	open, err = client.IsTradingDay(ctx, market_hours.MustParseDate("2025-01-20"))
	require.NoError(t, err)
	assert.False(t, open)
}

func TestIsTradingDay_FallsBackWhenAPIFails(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{"/v1/markets/calendar": "500"})
	client := newTestClient(t, srv.URL, nil)

	open, err := client.IsTradingDay(context.Background(), market_hours.MustParseDate("2025-07-04"))
	require.NoError(t, err)
	assert.False(t, open)
}

func TestCache_FreshHitSkipsAPI(t *testing.T) {
	db := testutil.NewStrategyTestDB(t)
	cache := clientdata.NewRepository(db.Conn())

	srv, calls := newTestServer(t, map[string]string{"/v1/markets/quotes": quoteSingleJSON})
	client := newTestClient(t, srv.URL, cache)
	ctx := context.Background()

	_, err := client.GetCurrentPrice(ctx, "AAPL")
	require.NoError(t, err)
	_, err = client.GetCurrentPrice(ctx, "AAPL")
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestCache_StaleFallbackOnAPIFailure(t *testing.T) {
	db := testutil.NewStrategyTestDB(t)
	cache := clientdata.NewRepository(db.Conn())
	ctx := context.Background()

	// An already expired entry
	require.NoError(t, cache.Store(ctx, clientdata.KindQuote, "AAPL", Quote{Symbol: "AAPL", Last: 99.5}, -time.Minute))

	srv, _ := newTestServer(t, map[string]string{"/v1/markets/quotes": "500"})
	client := newTestClient(t, srv.URL, cache)

	price, err := client.GetCurrentPrice(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, units.Cents(9950), price)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv, calls := newTestServer(t, map[string]string{"/v1/markets/quotes": "500"})
	client := newTestClient(t, srv.URL, nil)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		_, err := client.GetCurrentPrice(ctx, "AAPL")
		assert.Error(t, err)
	}

	assert.Equal(t, "open", client.BreakerState())
	assert.Equal(t, int32(5), atomic.LoadInt32(calls))
}

func TestRequestSpacing(t *testing.T) {
	const spacing = 50 * time.Millisecond

	var (
		mu    sync.Mutex
		times []time.Time
	)
	routes := map[string]string{
		"/v1/markets/options/chains": chainJSON,
		"/v1/markets/quotes":         quoteSingleJSON,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		times = append(times, time.Now())
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(routes[r.URL.Path]))
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL, Token: "test-token", RequestSpacing: spacing}, nil, market_hours.NewCalendar(), zerolog.Nop())
	require.NoError(t, err)

	// One spread valuation needs the chain and the underlying quote.
	throttled := marketdata.NewThrottle(client, spacing, nil, zerolog.Nop())
	expiry := market_hours.MustParseDate("2025-02-21")
	_, err = throttled.GetSpreadValue(context.Background(), "AAPL", expiry, units.Cents(10000), units.Cents(9500))
	require.NoError(t, err)
	_, err = throttled.GetCurrentPrice(context.Background(), "MSFT")
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, times, 3)
	for i := 1; i < len(times); i++ {
		// rate.Limiter may release a token a hair early
		assert.GreaterOrEqual(t, times[i].Sub(times[i-1]), spacing-5*time.Millisecond, "request %d", i)
	}
}
