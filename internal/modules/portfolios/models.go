// Package portfolios builds paper portfolios of put credit spreads from stored scans
// and keeps their P&L current against market data.
//
// Each (scan date, scan name) key produces up to two portfolios: one holding the
// best-returning candidates and one holding the most probable. Money is integer
// cents and ratios are integer basis points throughout; conversion to human units
// happens only in the View types.
package portfolios

import (
	"errors"
	"time"

	"github.com/aristath/spreadbook/internal/units"
)

// Errors
var (
	ErrNoScanData        = errors.New("no scan data for key")
	ErrPortfolioNotFound = errors.New("portfolio not found")
	ErrNoPrice           = errors.New("no price available")
)

// Kind is the ranking strategy a portfolio was built with.
type Kind string

const (
	KindReturn      Kind = "return"
	KindProbability Kind = "probability"
)

// Kinds lists the portfolio kinds in build order.
var Kinds = []Kind{KindReturn, KindProbability}

// Status is the lifecycle state of a portfolio.
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// TradeStatus is the lifecycle state of a trade. Transitions are one-way out of open.
type TradeStatus string

const (
	TradeOpen          TradeStatus = "open"
	TradeExpiredProfit TradeStatus = "expired_profit"
	TradeExpiredLoss   TradeStatus = "expired_loss"
)

// IsTerminal reports whether the trade has been resolved.
func (s TradeStatus) IsTerminal() bool {
	return s == TradeExpiredProfit || s == TradeExpiredLoss
}

// Portfolio is a tracked paper portfolio. CurrentValue always equals
// InitialCapital + NetPnl.
type Portfolio struct {
	ID                    int64
	ScanDate              string
	ScanName              string
	Kind                  Kind
	Status                Status
	InitialCapital        units.Cents
	TotalPremiumCollected units.Cents
	CurrentValue          units.Cents
	NetPnl                units.Cents
	BuildID               string
	CreatedAt             time.Time
	LastUpdated           time.Time
}

// Trade is one vertical put credit spread held by a portfolio.
type Trade struct {
	ID                 int64
	PortfolioID        int64
	Position           int // selection order within the portfolio, from 1
	Ticker             string
	EntryStockPrice    units.Cents
	SellStrike         units.Cents
	BuyStrike          units.Cents
	ExpirationDate     string // YYYY-MM-DD
	Contracts          int
	PremiumPerContract units.Cents
	SpreadWidth        units.Cents // (sell - buy) x 100
	MaxLossPerContract units.Cents // width - premium
	CurrentSpreadValue units.Cents // per contract
	CurrentStockPrice  *units.Cents
	CurrentPnl         units.Cents // whole position
	Status             TradeStatus
	IsITM              bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ResolvedAt         *time.Time
}

// ValueHistoryPoint is the end-of-pass valuation of a portfolio on one market date.
type ValueHistoryPoint struct {
	PortfolioID    int64
	SnapshotDate   string
	PortfolioValue units.Cents
	NetPnl         units.Cents
	RecordedAt     time.Time
}

// PortfolioView is a Portfolio in dollars for API consumers.
type PortfolioView struct {
	ID                    int64     `json:"id"`
	ScanDate              string    `json:"scan_date"`
	ScanName              string    `json:"scan_name"`
	Kind                  Kind      `json:"kind"`
	Status                Status    `json:"status"`
	InitialCapital        float64   `json:"initial_capital"`
	TotalPremiumCollected float64   `json:"total_premium_collected"`
	CurrentValue          float64   `json:"current_value"`
	NetPnl                float64   `json:"net_pnl"`
	ReturnPercent         float64   `json:"return_percent"`
	BuildID               string    `json:"build_id"`
	CreatedAt             time.Time `json:"created_at"`
	LastUpdated           time.Time `json:"last_updated"`
}

// View converts the portfolio to dollars.
func (p Portfolio) View() PortfolioView {
	var ret float64
	if p.InitialCapital != 0 {
		ret = units.BasisPointsToPercent(units.ToBasisPoints(float64(p.NetPnl) / float64(p.InitialCapital)))
	}
	return PortfolioView{
		ID:                    p.ID,
		ScanDate:              p.ScanDate,
		ScanName:              p.ScanName,
		Kind:                  p.Kind,
		Status:                p.Status,
		InitialCapital:        units.FromCents(p.InitialCapital),
		TotalPremiumCollected: units.FromCents(p.TotalPremiumCollected),
		CurrentValue:          units.FromCents(p.CurrentValue),
		NetPnl:                units.FromCents(p.NetPnl),
		ReturnPercent:         ret,
		BuildID:               p.BuildID,
		CreatedAt:             p.CreatedAt,
		LastUpdated:           p.LastUpdated,
	}
}

// TradeView is a Trade in dollars.
type TradeView struct {
	ID                 int64       `json:"id"`
	PortfolioID        int64       `json:"portfolio_id"`
	Position           int         `json:"position"`
	Ticker             string      `json:"ticker"`
	EntryStockPrice    float64     `json:"entry_stock_price"`
	SellStrike         float64     `json:"sell_strike"`
	BuyStrike          float64     `json:"buy_strike"`
	ExpirationDate     string      `json:"expiration_date"`
	Contracts          int         `json:"contracts"`
	PremiumPerContract float64     `json:"premium_per_contract"`
	SpreadWidth        float64     `json:"spread_width"`
	MaxLossPerContract float64     `json:"max_loss_per_contract"`
	CurrentSpreadValue float64     `json:"current_spread_value"`
	CurrentStockPrice  *float64    `json:"current_stock_price"`
	CurrentPnl         float64     `json:"current_pnl"`
	Status             TradeStatus `json:"status"`
	IsITM              bool        `json:"is_itm"`
	Breakeven          float64     `json:"breakeven"`
	MaxProfit          float64     `json:"max_profit"`
	MaxLoss            float64     `json:"max_loss"`
	UpdatedAt          time.Time   `json:"updated_at"`
	ResolvedAt         *time.Time  `json:"resolved_at,omitempty"`
}

// View converts the trade to dollars.
func (t Trade) View() TradeView {
	payoff := PayoffAtExpiry(t)
	v := TradeView{
		ID:                 t.ID,
		PortfolioID:        t.PortfolioID,
		Position:           t.Position,
		Ticker:             t.Ticker,
		EntryStockPrice:    units.FromCents(t.EntryStockPrice),
		SellStrike:         units.FromCents(t.SellStrike),
		BuyStrike:          units.FromCents(t.BuyStrike),
		ExpirationDate:     t.ExpirationDate,
		Contracts:          t.Contracts,
		PremiumPerContract: units.FromCents(t.PremiumPerContract),
		SpreadWidth:        units.FromCents(t.SpreadWidth),
		MaxLossPerContract: units.FromCents(t.MaxLossPerContract),
		CurrentSpreadValue: units.FromCents(t.CurrentSpreadValue),
		CurrentPnl:         units.FromCents(t.CurrentPnl),
		Status:             t.Status,
		IsITM:              t.IsITM,
		Breakeven:          units.FromCents(payoff.Breakeven),
		MaxProfit:          units.FromCents(payoff.MaxProfit),
		MaxLoss:            units.FromCents(payoff.MaxLoss),
		UpdatedAt:          t.UpdatedAt,
		ResolvedAt:         t.ResolvedAt,
	}
	if t.CurrentStockPrice != nil {
		price := units.FromCents(*t.CurrentStockPrice)
		v.CurrentStockPrice = &price
	}
	return v
}

// HistoryPointView is a ValueHistoryPoint in dollars.
type HistoryPointView struct {
	Date           string  `json:"date"`
	PortfolioValue float64 `json:"portfolio_value"`
	NetPnl         float64 `json:"net_pnl"`
}

// View converts the point to dollars.
func (h ValueHistoryPoint) View() HistoryPointView {
	return HistoryPointView{
		Date:           h.SnapshotDate,
		PortfolioValue: units.FromCents(h.PortfolioValue),
		NetPnl:         units.FromCents(h.NetPnl),
	}
}

// PortfolioWithTrades is a portfolio and its trades in selection order.
type PortfolioWithTrades struct {
	Portfolio PortfolioView `json:"portfolio"`
	Trades    []TradeView   `json:"trades"`
}

// BuildResult reports the portfolios created for a scan key. An id is nil when no
// candidate qualified.
type BuildResult struct {
	ScanDate               string `json:"scan_date"`
	ScanName               string `json:"scan_name"`
	BuildID                string `json:"build_id"`
	Candidates             int    `json:"candidates"`
	Qualified              int    `json:"qualified"`
	ReturnPortfolioID      *int64 `json:"return_portfolio_id"`
	ProbabilityPortfolioID *int64 `json:"probability_portfolio_id"`
}

// Diagnostic records a trade that could not be valued during a pass.
type Diagnostic struct {
	PortfolioID int64  `json:"portfolio_id"`
	TradeID     int64  `json:"trade_id"`
	Ticker      string `json:"ticker"`
	Reason      string `json:"reason"`
}

// UpdateReport is the outcome of one portfolio's P&L pass.
type UpdateReport struct {
	PortfolioID   int64        `json:"portfolio_id"`
	Status        Status       `json:"status"`
	CurrentValue  float64      `json:"current_value"`
	NetPnl        float64      `json:"net_pnl"`
	TradesMarked  int          `json:"trades_marked"`
	TradesExpired int          `json:"trades_expired"`
	TradesSkipped int          `json:"trades_skipped"`
	Diagnostics   []Diagnostic `json:"diagnostics"`
}

// BatchReport is the outcome of a pass over every active portfolio.
type BatchReport struct {
	RunID             string       `json:"run_id"`
	PortfoliosUpdated int          `json:"portfolios_updated"`
	PortfoliosFailed  int          `json:"portfolios_failed"`
	PortfoliosClosed  int          `json:"portfolios_closed"`
	TradesMarked      int          `json:"trades_marked"`
	TradesExpired     int          `json:"trades_expired"`
	TradesSkipped     int          `json:"trades_skipped"`
	Diagnostics       []Diagnostic `json:"diagnostics"`
	Message           string       `json:"message"`
	DurationMillis    int64        `json:"duration_ms"`
}
