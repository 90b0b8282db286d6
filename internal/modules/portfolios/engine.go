package portfolios

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/aristath/spreadbook/internal/marketdata"
	"github.com/aristath/spreadbook/internal/modules/market_hours"
	"github.com/aristath/spreadbook/internal/modules/scans"
	"github.com/rs/zerolog"
)

// ScanReader loads the stored row set of a scan key.
type ScanReader interface {
	GetByKey(ctx context.Context, scanDate, scanName string) ([]scans.ScanResult, error)
}

// Observer receives engine events, typically for metrics.
type Observer interface {
	PortfoliosBuilt(scanName string, count int)
	TradeMarked(outcome string)
	TradeResolved(status string)
	PassCompleted(pass string, duration time.Duration, failed int)
}

// Mark outcomes reported to Observer.TradeMarked.
const (
	MarkOK      = "ok"
	MarkNoData  = "no_data"
	MarkFailed  = "error"
	MarkSkipped = "skipped"
)

type noopObserver struct{}

func (noopObserver) PortfoliosBuilt(string, int) {}
func (noopObserver) TradeMarked(string) {}
func (noopObserver) TradeResolved(string) {}
func (noopObserver) PassCompleted(string, time.Duration, int) {}

// Engine builds portfolios from scans and runs P&L passes over them.
// Build and update passes are serialized: at most one runs at a time.
type Engine struct {
	mu sync.Mutex

	conn       *sql.DB
	scans      ScanReader
	portfolios *PortfolioRepository
	trades     *TradeRepository
	history    *HistoryRepository
	gateway    marketdata.Gateway
	calendar   *market_hours.Calendar
	cfg        EngineConfig
	observer   Observer
	log        zerolog.Logger
}

// NewEngine creates a portfolio engine. A nil observer disables event reporting.
func NewEngine(
	conn *sql.DB,
	scanReader ScanReader,
	gateway marketdata.Gateway,
	calendar *market_hours.Calendar,
	cfg EngineConfig,
	observer Observer,
	log zerolog.Logger,
) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if observer == nil {
		observer = noopObserver{}
	}
	if calendar == nil {
		calendar = market_hours.NewCalendar()
	}

	return &Engine{
		conn:       conn,
		scans:      scanReader,
		portfolios: NewPortfolioRepository(conn, log),
		trades:     NewTradeRepository(conn, log),
		history:    NewHistoryRepository(conn, log),
		gateway:    gateway,
		calendar:   calendar,
		cfg:        cfg,
		observer:   observer,
		log:        log.With().Str("service", "portfolios").Logger(),
	}, nil
}

// Config returns the engine's strategy configuration.
func (e *Engine) Config() EngineConfig {
	return e.cfg
}

// Portfolios exposes the portfolio repository, which also purges portfolios for
// the scan module.
func (e *Engine) Portfolios() *PortfolioRepository {
	return e.portfolios
}
