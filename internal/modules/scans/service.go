package scans

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/aristath/spreadbook/internal/database"
	"github.com/aristath/spreadbook/internal/modules/market_hours"
	"github.com/rs/zerolog"
)

// PortfolioPurger deletes the portfolios built from a scan key inside the caller's
// transaction. Trades and history follow by cascade.
type PortfolioPurger interface {
	DeleteForScan(ctx context.Context, q database.Querier, scanDate string, scanName *string) (int64, error)
}

// ScanSource produces raw rows for a named screener scan.
type ScanSource interface {
	FetchScan(ctx context.Context, scanName string) ([]RawRow, error)
}

// PurgeResult reports what a purge removed.
type PurgeResult struct {
	Portfolios  int64 `json:"portfolios"`
	ScanResults int64 `json:"scan_results"`
}

// Service implements scan ingestion, purge and queries.
type Service struct {
	conn   *sql.DB
	repo   *Repository
	purger PortfolioPurger
	log    zerolog.Logger
}

// NewService creates a new scan service.
func NewService(conn *sql.DB, purger PortfolioPurger, log zerolog.Logger) *Service {
	return &Service{
		conn:   conn,
		repo:   NewRepository(conn, log),
		purger: purger,
		log:    log.With().Str("service", "scans").Logger(),
	}
}

// Repository exposes the read side to other modules.
func (s *Service) Repository() *Repository {
	return s.repo
}

// normalizeKey validates the scan name and normalizes the date to YYYY-MM-DD.
func normalizeKey(scanDate, scanName string) (string, string, error) {
	name := strings.TrimSpace(scanName)
	if name == "" {
		return "", "", fmt.Errorf("scan name is required")
	}
	date, err := market_hours.NormalizeDate(scanDate)
	if err != nil {
		return "", "", fmt.Errorf("invalid scan date: %w", err)
	}
	return date, name, nil
}

// SaveScanResults stores rows as the row set for (scanDate, scanName), replacing any
// previous set for that key. Empty input returns 0 without touching the store. Any
// invalid row rejects the whole batch before anything is written.
func (s *Service) SaveScanResults(ctx context.Context, rows []RawRow, scanName, scanDate string) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	date, name, err := normalizeKey(scanDate, scanName)
	if err != nil {
		return 0, err
	}

	results := make([]ScanResult, 0, len(rows))
	for i, raw := range rows {
		res, err := raw.Normalize(name, date)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		results = append(results, res)
	}

	var replaced int64
	err = database.WithTransaction(ctx, s.conn, func(tx *sql.Tx) error {
		repo := s.repo.WithTx(tx)

		n, err := repo.DeleteByKey(ctx, date, &name)
		if err != nil {
			return err
		}
		replaced = n

		return repo.InsertBatch(ctx, results)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to save scan results: %w", err)
	}

	s.log.Info().
		Str("scan_date", date).
		Str("scan_name", name).
		Int("saved", len(results)).
		Int64("replaced", replaced).
		Msg("Scan results saved")

	return len(results), nil
}

// ScanExistsForDate reports whether rows are stored for the key.
func (s *Service) ScanExistsForDate(ctx context.Context, scanDate, scanName string) (bool, error) {
	date, name, err := normalizeKey(scanDate, scanName)
	if err != nil {
		return false, err
	}
	return s.repo.Exists(ctx, date, name)
}

// DeleteScanDataForDate removes the portfolios built from the date's scans and then
// the scan rows, in one transaction. A nil scanName purges every scan on that date.
func (s *Service) DeleteScanDataForDate(ctx context.Context, scanDate string, scanName *string) (*PurgeResult, error) {
	date, err := market_hours.NormalizeDate(scanDate)
	if err != nil {
		return nil, fmt.Errorf("invalid scan date: %w", err)
	}

	result := &PurgeResult{}
	err = database.WithTransaction(ctx, s.conn, func(tx *sql.Tx) error {
		if s.purger != nil {
			n, err := s.purger.DeleteForScan(ctx, tx, date, scanName)
			if err != nil {
				return fmt.Errorf("failed to delete portfolios: %w", err)
			}
			result.Portfolios = n
		}

		n, err := s.repo.WithTx(tx).DeleteByKey(ctx, date, scanName)
		if err != nil {
			return err
		}
		result.ScanResults = n
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to purge scan data: %w", err)
	}

	event := s.log.Info().
		Str("scan_date", date).
		Int64("portfolios", result.Portfolios).
		Int64("scan_results", result.ScanResults)
	if scanName != nil {
		event = event.Str("scan_name", *scanName)
	}
	event.Msg("Scan data purged")

	return result, nil
}

// ListScanDates returns a row count per stored scan key.
func (s *Service) ListScanDates(ctx context.Context) ([]ScanDateSummary, error) {
	return s.repo.ListDates(ctx)
}

// GetScanResults returns the human-unit view of a date's scans, best return first.
func (s *Service) GetScanResults(ctx context.Context, scanDate string, scanName *string) ([]ScanResultView, error) {
	date, err := market_hours.NormalizeDate(scanDate)
	if err != nil {
		return nil, fmt.Errorf("invalid scan date: %w", err)
	}

	rows, err := s.repo.GetForDate(ctx, date, scanName)
	if err != nil {
		return nil, err
	}

	views := make([]ScanResultView, 0, len(rows))
	for _, row := range rows {
		views = append(views, row.View())
	}
	return views, nil
}

// Ingest fetches a scan from source and saves it under (scanDate, scanName).
func (s *Service) Ingest(ctx context.Context, source ScanSource, scanName, scanDate string) (int, error) {
	rows, err := source.FetchScan(ctx, scanName)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch scan %q: %w", scanName, err)
	}
	return s.SaveScanResults(ctx, rows, scanName, scanDate)
}
