package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aristath/spreadbook/internal/config"
	"github.com/aristath/spreadbook/internal/di"
	"github.com/aristath/spreadbook/pkg/logger"
)

// app carries what every command needs. The container is wired lazily in
// PersistentPreRunE so `--help` never opens the database.
type app struct {
	load      func() (*config.Config, error)
	out       io.Writer
	verbose   bool
	container *di.Container
}

// run executes spreadctl with args and closes the container afterwards,
// including when the command failed.
func run(ctx context.Context, args []string, load func() (*config.Config, error), in io.Reader, out io.Writer) error {
	a := &app{load: load, out: out}
	rootCmd := newRootCmd(a)
	rootCmd.SetArgs(args)
	rootCmd.SetIn(in)

	err := rootCmd.ExecuteContext(ctx)
	if closeErr := a.close(); err == nil {
		err = closeErr
	}
	return err
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "spreadctl",
		Short: "Operate the spreadbook paper-portfolio engine",
		Long: `spreadctl ingests credit-spread screener scans, builds paper portfolios
from them and marks those portfolios to market.

Configuration comes from the same environment variables as the server
(SPREADBOOK_DATA_DIR, MARKET_DATA_PROVIDER, TRADIER_TOKEN, SCRAPER_COMMAND, ...).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			return a.open(cmd.Context())
		},
	}
	rootCmd.SetOut(a.out)
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log to stderr at debug level")

	rootCmd.AddCommand(
		newIngestCmd(a),
		newBuildCmd(a),
		newUpdateCmd(a),
		newPurgeCmd(a),
		newPortfoliosCmd(a),
		newShowCmd(a),
		newHistoryCmd(a),
		newCompareCmd(a),
		newPipelineCmd(a),
		newJobsCmd(a),
	)
	return rootCmd
}

func (a *app) open(ctx context.Context) error {
	cfg, err := a.load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := zerolog.Nop()
	if a.verbose {
		log = logger.New(logger.Config{Level: "debug", Pretty: true, Output: os.Stderr})
	}

	container, err := di.Wire(ctx, cfg, log)
	if err != nil {
		return err
	}

	a.container = container
	return nil
}

func (a *app) close() error {
	if a.container == nil {
		return nil
	}
	err := a.container.Close()
	a.container = nil
	return err
}

func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
