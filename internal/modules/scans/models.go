// Package scans provides ingestion, storage and queries for screener scan results.
// A scan is the row set produced by one named screener run on one date; the pair
// (scan date, scan name) is its key.
package scans

import (
	"errors"

	"github.com/aristath/spreadbook/internal/units"
)

// Errors
var (
	ErrInvalidRow    = errors.New("invalid scan row")
	ErrInvalidStrike = errors.New("invalid strike pair")
)

// ScanResult is one screened candidate as persisted. Money fields are cents,
// percentage fields are basis points, dates are YYYY-MM-DD.
type ScanResult struct {
	ID            int64
	ScanDate      string
	ScanName      string
	Ticker        string
	CompanyName   string
	Price         units.Cents
	PriceChange   units.BasisPoints
	IVRank        units.BasisPoints
	IVPercentile  units.BasisPoints
	Strike        string // "sell/buy", higher strike first
	Moneyness     units.BasisPoints
	ExpDate       string
	DaysToExp     int
	TotalOptVol   int64
	ProbMaxProfit units.BasisPoints
	MaxProfit     units.Cents // per contract
	MaxLoss       units.Cents // per contract
	ReturnPercent units.BasisPoints
	CreatedAt     int64
}

// ScanResultView is a ScanResult converted back to human units for API consumers.
type ScanResultView struct {
	ID            int64   `json:"id"`
	ScanDate      string  `json:"scan_date"`
	ScanName      string  `json:"scan_name"`
	Ticker        string  `json:"ticker"`
	CompanyName   string  `json:"company_name"`
	Price         float64 `json:"price"`
	PriceChange   float64 `json:"price_change"`
	IVRank        float64 `json:"iv_rank"`
	IVPercentile  float64 `json:"iv_percentile"`
	Strike        string  `json:"strike"`
	Moneyness     float64 `json:"moneyness"`
	ExpDate       string  `json:"exp_date"`
	DaysToExp     int     `json:"days_to_exp"`
	TotalOptVol   int64   `json:"total_opt_vol"`
	ProbMaxProfit float64 `json:"prob_max_profit"`
	MaxProfit     float64 `json:"max_profit"`
	MaxLoss       float64 `json:"max_loss"`
	ReturnPercent float64 `json:"return_percent"`
}

// View converts the stored integers back to dollars and plain percentages.
func (s ScanResult) View() ScanResultView {
	return ScanResultView{
		ID:            s.ID,
		ScanDate:      s.ScanDate,
		ScanName:      s.ScanName,
		Ticker:        s.Ticker,
		CompanyName:   s.CompanyName,
		Price:         units.FromCents(s.Price),
		PriceChange:   units.BasisPointsToPercent(s.PriceChange),
		IVRank:        units.BasisPointsToPercent(s.IVRank),
		IVPercentile:  units.BasisPointsToPercent(s.IVPercentile),
		Strike:        s.Strike,
		Moneyness:     units.BasisPointsToPercent(s.Moneyness),
		ExpDate:       s.ExpDate,
		DaysToExp:     s.DaysToExp,
		TotalOptVol:   s.TotalOptVol,
		ProbMaxProfit: units.BasisPointsToPercent(s.ProbMaxProfit),
		MaxProfit:     units.FromCents(s.MaxProfit),
		MaxLoss:       units.FromCents(s.MaxLoss),
		ReturnPercent: units.BasisPointsToPercent(s.ReturnPercent),
	}
}

// ScanDateSummary counts the rows stored for one scan key.
type ScanDateSummary struct {
	ScanDate string `json:"scan_date"`
	ScanName string `json:"scan_name"`
	Count    int    `json:"count"`
}
