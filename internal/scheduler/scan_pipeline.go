package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/spreadbook/internal/modules/market_hours"
	"github.com/aristath/spreadbook/internal/modules/portfolios"
	"github.com/aristath/spreadbook/internal/modules/scans"
	"github.com/rs/zerolog"
)

// ScanIngester fetches a scan from a source and stores it.
type ScanIngester interface {
	Ingest(ctx context.Context, source scans.ScanSource, scanName, scanDate string) (int, error)
}

// PortfolioBuilder builds the paper portfolios for a stored scan.
type PortfolioBuilder interface {
	CreatePortfoliosFromScan(ctx context.Context, scanDate, scanName string, tradesPerPortfolio int) (*portfolios.BuildResult, error)
}

// PipelineResult is the outcome of one scan in a pipeline run.
type PipelineResult struct {
	ScanName string                  `json:"scan_name"`
	ScanDate string                  `json:"scan_date"`
	Rows     int                     `json:"rows"`
	Build    *portfolios.BuildResult `json:"build,omitempty"`
	Error    string                  `json:"error,omitempty"`
}

// ScanPipelineJob scrapes each configured scan, stores the rows and builds
// portfolios from them. The build runs an initial P&L pass.
type ScanPipelineJob struct {
	source    scans.ScanSource
	ingester  ScanIngester
	builder   PortfolioBuilder
	days      TradingDayChecker
	calendar  *market_hours.Calendar
	scanNames []string
	timeout   time.Duration
	log       zerolog.Logger
}

// NewScanPipelineJob creates a new ScanPipelineJob
func NewScanPipelineJob(
	source scans.ScanSource,
	ingester ScanIngester,
	builder PortfolioBuilder,
	days TradingDayChecker,
	calendar *market_hours.Calendar,
	scanNames []string,
	timeout time.Duration,
	log zerolog.Logger,
) *ScanPipelineJob {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &ScanPipelineJob{
		source:    source,
		ingester:  ingester,
		builder:   builder,
		days:      days,
		calendar:  calendar,
		scanNames: scanNames,
		timeout:   timeout,
		log:       log.With().Str("job", "scan_pipeline").Logger(),
	}
}

// Name returns the job name
func (j *ScanPipelineJob) Name() string {
	return "scan_pipeline"
}

// Run executes the pipeline for today's market date.
func (j *ScanPipelineJob) Run() error {
	now := j.calendar.Now()
	if !isTradingDay(j.days, j.calendar, now, j.log) {
		j.log.Debug().Str("date", market_hours.FormatDate(now)).Msg("Not a trading day, skipping")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	_, err := j.RunForDate(ctx, market_hours.FormatDate(now))
	return err
}

// RunForDate runs the pipeline for every configured scan under scanDate.
// A failing scan does not stop the others; all failures are joined in the
// returned error.
func (j *ScanPipelineJob) RunForDate(ctx context.Context, scanDate string) ([]PipelineResult, error) {
	if len(j.scanNames) == 0 {
		return nil, fmt.Errorf("no scan names configured")
	}

	results := make([]PipelineResult, 0, len(j.scanNames))
	var errs []error

	for _, name := range j.scanNames {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		res := PipelineResult{ScanName: name, ScanDate: scanDate}
		if err := j.runScan(ctx, &res); err != nil {
			j.log.Error().Err(err).Str("scan_name", name).Str("scan_date", scanDate).Msg("Scan pipeline failed")
			res.Error = err.Error()
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		results = append(results, res)
	}

	return results, errors.Join(errs...)
}

func (j *ScanPipelineJob) runScan(ctx context.Context, res *PipelineResult) error {
	n, err := j.ingester.Ingest(ctx, j.source, res.ScanName, res.ScanDate)
	if err != nil {
		return err
	}
	res.Rows = n
	if n == 0 {
		j.log.Warn().Str("scan_name", res.ScanName).Msg("Scraper returned no rows")
		return nil
	}

	build, err := j.builder.CreatePortfoliosFromScan(ctx, res.ScanDate, res.ScanName, 0)
	if err != nil {
		return err
	}
	res.Build = build

	j.log.Info().
		Str("scan_name", res.ScanName).
		Str("scan_date", res.ScanDate).
		Int("rows", n).
		Int("qualified", build.Qualified).
		Msg("Scan pipeline completed")
	return nil
}
