// Package tradier provides a market data client for the Tradier brokerage REST API.
// It implements marketdata.Gateway: quotes, option chains, daily history and the
// exchange calendar, with a persistent cache and a circuit breaker in front of the API.
package tradier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/aristath/spreadbook/internal/clientdata"
	"github.com/aristath/spreadbook/internal/marketdata"
	"github.com/aristath/spreadbook/internal/modules/market_hours"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the production API.
	DefaultBaseURL = "https://api.tradier.com"
	// SandboxBaseURL serves delayed data for developer accounts.
	SandboxBaseURL = "https://sandbox.tradier.com"
)

// ErrMissingToken is returned when no API token is configured.
var ErrMissingToken = errors.New("tradier API token is required")

// Config holds client configuration.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration

	// RequestSpacing is the minimum delay between two HTTP requests to the API.
	// Cache hits are not spaced. Defaults to marketdata.DefaultCallSpacing.
	RequestSpacing time.Duration
}

// Client is the Tradier market data client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	cacheRepo  *clientdata.Repository
	calendar   *market_hours.Calendar
	log        zerolog.Logger
}

var _ marketdata.Gateway = (*Client)(nil)

// NewClient creates a new Tradier client.
// cacheRepo is optional - if nil, caching is disabled.
// calendar answers IsTradingDay when the calendar endpoint is unavailable.
func NewClient(cfg Config, cacheRepo *clientdata.Repository, calendar *market_hours.Calendar, log zerolog.Logger) (*Client, error) {
	if cfg.Token == "" {
		return nil, ErrMissingToken
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RequestSpacing <= 0 {
		cfg.RequestSpacing = marketdata.DefaultCallSpacing
	}
	if calendar == nil {
		calendar = market_hours.NewCalendar()
	}

	c := &Client{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Every(cfg.RequestSpacing), 1),
		cacheRepo:  cacheRepo,
		calendar:   calendar,
		log:        log.With().Str("client", "tradier").Logger(),
	}
	c.breaker = gobreaker.NewCircuitBreaker(c.breakerSettings())

	return c, nil
}

func (c *Client) breakerSettings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:     "tradier",
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= 5 {
				return true
			}
			if counts.Requests < 20 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) > 0.5
		},
		// An empty answer is a healthy API.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, marketdata.ErrNoData)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	}
}

// BreakerState returns the circuit breaker state for health reporting.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// get performs a GET against path and decodes the JSON body into out.
// Requests are spaced by the client's limiter. A 404 maps to marketdata.ErrNoData.
func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", path, err)
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.doGet(ctx, path, params, out)
	})
	return err
}

func (c *Client) doGet(ctx context.Context, path string, params url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	c.log.Debug().Str("path", path).Str("query", params.Encode()).Msg("Making Tradier request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return marketdata.ErrNoData
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("tradier API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// cached runs fetch unless a fresh entry exists, stores the result, and falls back
// to a stale entry when fetch fails with anything other than ErrNoData.
func cached[T any](ctx context.Context, c *Client, kind clientdata.Kind, key string, ttl time.Duration, fetch func() (T, error)) (T, error) {
	var value T

	if c.cacheRepo != nil {
		found, err := c.cacheRepo.GetIfFresh(ctx, kind, key, &value)
		if err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("Failed to get from cache")
		} else if found {
			return value, nil
		}
	}

	fresh, err := fetch()
	if err == nil {
		if c.cacheRepo != nil {
			if storeErr := c.cacheRepo.Store(ctx, kind, key, fresh, ttl); storeErr != nil {
				c.log.Warn().Err(storeErr).Str("key", key).Msg("Failed to cache response")
			}
		}
		return fresh, nil
	}

	if errors.Is(err, marketdata.ErrNoData) || c.cacheRepo == nil {
		return fresh, err
	}

	found, cacheErr := c.cacheRepo.Get(ctx, kind, key, &value)
	if cacheErr == nil && found {
		c.log.Warn().Err(err).Str("key", key).Msg("API failed, using stale cached data")
		return value, nil
	}

	return fresh, err
}
