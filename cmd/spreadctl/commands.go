package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aristath/spreadbook/internal/modules/market_hours"
	"github.com/aristath/spreadbook/internal/modules/scans"
)

var errNoScraper = errors.New("no scraper configured, set SCRAPER_COMMAND or pass --file")

func newIngestCmd(a *app) *cobra.Command {
	var (
		scanDate string
		file     string
	)
	cmd := &cobra.Command{
		Use:   "ingest <scan-name>",
		Short: "Store a scan's rows for a date",
		Long: `Store a scan's rows, replacing any rows already stored for the same
date and scan name. Rows come from the configured scraper, or from a
scraper output envelope with --file (use - for stdin).

Examples:
  spreadctl ingest weekly
  spreadctl ingest weekly --date 2025-01-17 --file scan.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			date := a.dateOrToday(scanDate)
			service := a.container.ScanService

			var (
				n   int
				err error
			)
			if file != "" {
				rows, readErr := readEnvelope(cmd.InOrStdin(), file)
				if readErr != nil {
					return readErr
				}
				n, err = service.SaveScanResults(ctx, rows, args[0], date)
			} else {
				if a.container.ScanSource == nil {
					return errNoScraper
				}
				n, err = service.Ingest(ctx, a.container.ScanSource, args[0], date)
			}
			if err != nil {
				return err
			}
			return a.printJSON(map[string]interface{}{"scan_date": date, "scan_name": args[0], "rows": n})
		},
	}
	cmd.Flags().StringVar(&scanDate, "date", "", "Scan date (default: today in market time)")
	cmd.Flags().StringVar(&file, "file", "", "Read a scraper output envelope from this file instead of running the scraper")
	return cmd
}

func newBuildCmd(a *app) *cobra.Command {
	var trades int
	cmd := &cobra.Command{
		Use:   "build <scan-date> <scan-name>",
		Short: "Build the return and probability portfolios for a stored scan",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.container.Engine.CreatePortfoliosFromScan(cmd.Context(), args[0], args[1], trades)
			if err != nil {
				return err
			}
			return a.printJSON(res)
		},
	}
	cmd.Flags().IntVar(&trades, "trades", 0, "Trades per portfolio (default: strategy setting)")
	return cmd
}

func newUpdateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update [portfolio-id]",
		Short: "Run a P&L pass over one or all active portfolios",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				report, err := a.container.Engine.UpdateAllPortfolioPnl(cmd.Context())
				if err != nil {
					return err
				}
				return a.printJSON(report)
			}

			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			report, err := a.container.Engine.UpdatePortfolioPnl(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.printJSON(report)
		},
	}
}

func newPurgeCmd(a *app) *cobra.Command {
	var scanName string
	cmd := &cobra.Command{
		Use:   "purge <scan-date>",
		Short: "Delete stored scan rows and the portfolios built from them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name *string
			if scanName != "" {
				name = &scanName
			}
			res, err := a.container.ScanService.DeleteScanDataForDate(cmd.Context(), args[0], name)
			if err != nil {
				return err
			}
			return a.printJSON(res)
		},
	}
	cmd.Flags().StringVar(&scanName, "scan", "", "Only purge this scan name")
	return cmd
}

func newPortfoliosCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "portfolios",
		Short: "List all portfolios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			views, err := a.container.Engine.GetAllPortfolios(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return a.printJSON(views)
			}

			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSCAN DATE\tSCAN\tKIND\tSTATUS\tPREMIUM\tVALUE\tNET P&L\tRETURN")
			for _, v := range views {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%.2f\t%.2f\t%.2f\t%.2f%%\n",
					v.ID, v.ScanDate, v.ScanName, v.Kind, v.Status,
					v.TotalPremiumCollected, v.CurrentValue, v.NetPnl, v.ReturnPercent)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <portfolio-id>",
		Short: "Show a portfolio with its trades",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := a.container.Engine.GetPortfolioWithTrades(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.printJSON(p)
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history <portfolio-id>",
		Short: "Show a portfolio's daily value history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			points, err := a.container.Engine.GetPortfolioHistory(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.printJSON(points)
		},
	}
}

func newCompareCmd(a *app) *cobra.Command {
	var scanName string
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare return-ranked against probability-ranked portfolios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var name *string
			if scanName != "" {
				name = &scanName
			}
			cmp, err := a.container.Engine.GetPortfolioComparison(cmd.Context(), name)
			if err != nil {
				return err
			}
			return a.printJSON(cmp)
		},
	}
	cmd.Flags().StringVar(&scanName, "scan", "", "Only compare portfolios of this scan name")
	return cmd
}

func newPipelineCmd(a *app) *cobra.Command {
	var scanDate string
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Scrape, store and build every configured scan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			job := a.container.Jobs.ScanPipeline
			if job == nil {
				return errNoScraper
			}
			results, err := job.RunForDate(cmd.Context(), a.dateOrToday(scanDate))
			if printErr := a.printJSON(results); printErr != nil {
				return printErr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&scanDate, "date", "", "Scan date (default: today in market time)")
	return cmd
}

func newJobsCmd(a *app) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "List or run scheduled jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.printJSON(a.container.Scheduler.Jobs())
		},
	}
	jobsCmd.AddCommand(&cobra.Command{
		Use:   "run <job-name>",
		Short: "Run a job once in the foreground",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.container.Scheduler.RunNow(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s completed\n", args[0])
			return nil
		},
	})
	return jobsCmd
}

func (a *app) dateOrToday(date string) string {
	if date != "" {
		return date
	}
	return market_hours.FormatDate(a.container.Calendar.Now())
}

// readEnvelope decodes a scraper output envelope from path, or from stdin for "-".
func readEnvelope(stdin io.Reader, path string) ([]scans.RawRow, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read scan file: %w", err)
	}
	return scans.DecodeScrapeOutput(data)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid portfolio id %q", s)
	}
	return id, nil
}
