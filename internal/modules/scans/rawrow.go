package scans

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aristath/spreadbook/internal/modules/market_hours"
	"github.com/aristath/spreadbook/internal/units"
	"github.com/shopspring/decimal"
)

// Number accepts a JSON number or a screener cell string ("$1,234.50", "13.57%", "").
// Empty strings and null decode as zero.
type Number float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*n = 0
		return nil
	}

	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		cleaned := strings.NewReplacer("$", "", ",", "", "%", "", " ", "").Replace(strings.TrimSpace(s))
		if cleaned == "" || cleaned == "-" {
			*n = 0
			return nil
		}
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			return fmt.Errorf("invalid number %q", s)
		}
		*n = Number(d.InexactFloat64())
		return nil
	}

	var f float64
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return fmt.Errorf("invalid number %s", string(trimmed))
	}
	*n = Number(f)
	return nil
}

// RawRow is one row as emitted by the screener scraper. Percentage fields are plain
// numbers (13.57 meaning 13.57%); maxProfit and maxLoss are per-share dollars.
type RawRow struct {
	Ticker        string `json:"ticker"`
	CompanyName   string `json:"companyName"`
	Price         Number `json:"price"`
	PriceChange   Number `json:"priceChange"`
	IVRank        Number `json:"ivRank"`
	IVPercentile  Number `json:"ivPercentile"`
	Strike        string `json:"strike"`
	Moneyness     Number `json:"moneyness"`
	ExpDate       string `json:"expDate"`
	DaysToExp     Number `json:"daysToExp"`
	TotalOptVol   Number `json:"totalOptVol"`
	ProbMaxProfit Number `json:"probMaxProfit"`
	MaxProfit     Number `json:"maxProfit"`
	MaxLoss       Number `json:"maxLoss"`
	ReturnPercent Number `json:"returnPercent"`
}

// Normalize validates the row and converts it to its stored form for the given key.
func (r RawRow) Normalize(scanName, scanDate string) (ScanResult, error) {
	ticker := strings.ToUpper(strings.TrimSpace(r.Ticker))
	if ticker == "" {
		return ScanResult{}, fmt.Errorf("%w: missing ticker", ErrInvalidRow)
	}

	strike, err := NormalizeStrike(r.Strike)
	if err != nil {
		return ScanResult{}, fmt.Errorf("%w: %s: %w", ErrInvalidRow, ticker, err)
	}

	expDate, err := market_hours.NormalizeDate(r.ExpDate)
	if err != nil {
		return ScanResult{}, fmt.Errorf("%w: %s: expiration: %v", ErrInvalidRow, ticker, err)
	}

	return ScanResult{
		ScanDate:      scanDate,
		ScanName:      scanName,
		Ticker:        ticker,
		CompanyName:   strings.TrimSpace(r.CompanyName),
		Price:         units.ToCents(float64(r.Price)),
		PriceChange:   units.PercentToBasisPoints(float64(r.PriceChange)),
		IVRank:        units.PercentToBasisPoints(float64(r.IVRank)),
		IVPercentile:  units.PercentToBasisPoints(float64(r.IVPercentile)),
		Strike:        strike,
		Moneyness:     units.PercentToBasisPoints(float64(r.Moneyness)),
		ExpDate:       expDate,
		DaysToExp:     int(r.DaysToExp),
		TotalOptVol:   int64(r.TotalOptVol),
		ProbMaxProfit: units.PercentToBasisPoints(float64(r.ProbMaxProfit)),
		MaxProfit:     units.PerShareToContractCents(float64(r.MaxProfit)),
		MaxLoss:       units.PerShareToContractCents(float64(r.MaxLoss)),
		ReturnPercent: units.PercentToBasisPoints(float64(r.ReturnPercent)),
	}, nil
}

// ScrapeOutput is the scraper's stdout envelope.
type ScrapeOutput struct {
	Success bool     `json:"success"`
	Error   string   `json:"error,omitempty"`
	Results []RawRow `json:"results"`
}

// DecodeScrapeOutput parses either the scraper envelope or a bare JSON array of rows.
// An envelope with success=false is returned as an error carrying the scraper's message.
func DecodeScrapeOutput(data []byte) ([]RawRow, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty scrape output")
	}

	if trimmed[0] == '[' {
		var rows []RawRow
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("failed to decode scan rows: %w", err)
		}
		return rows, nil
	}

	var out ScrapeOutput
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, fmt.Errorf("failed to decode scrape output: %w", err)
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("scraper reported failure: %s", msg)
	}

	return out.Results, nil
}
