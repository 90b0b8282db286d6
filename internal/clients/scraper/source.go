// Package scraper runs the external screener scraper and decodes its output.
//
// The scraper is an opaque process: it receives the scan name as its last argument,
// writes a JSON envelope {"success", "error", "results"} to stdout and its own
// logging to stderr.
package scraper

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/aristath/spreadbook/internal/modules/scans"
	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"
)

// DefaultTimeout bounds one scraper run.
const DefaultTimeout = 5 * time.Minute

// ErrNotConfigured is returned when no scraper command is set.
var ErrNotConfigured = errors.New("scraper command not configured")

// Config configures the scraper process.
type Config struct {
	// Command is a shell-style command line, e.g. `node scraper/index.js --headless`.
	Command string
	Timeout time.Duration
	// Env is appended to the current environment.
	Env []string
}

// CommandSource is a scans.ScanSource backed by the scraper process.
type CommandSource struct {
	name    string
	args    []string
	timeout time.Duration
	env     []string
	log     zerolog.Logger
}

var _ scans.ScanSource = (*CommandSource)(nil)

// NewCommandSource parses cfg.Command and creates a source.
func NewCommandSource(cfg Config, log zerolog.Logger) (*CommandSource, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, ErrNotConfigured
	}

	words, err := shellquote.Split(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scraper command: %w", err)
	}
	if len(words) == 0 {
		return nil, ErrNotConfigured
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &CommandSource{
		name:    words[0],
		args:    words[1:],
		timeout: timeout,
		env:     cfg.Env,
		log:     log.With().Str("client", "scraper").Logger(),
	}, nil
}

// FetchScan runs the scraper for scanName and returns its rows.
func (s *CommandSource) FetchScan(ctx context.Context, scanName string) ([]scans.RawRow, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	args := append(append([]string{}, s.args...), scanName)
	cmd := exec.CommandContext(ctx, s.name, args...)
	if len(s.env) > 0 {
		cmd.Env = append(os.Environ(), s.env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	s.log.Info().Str("scan_name", scanName).Msg("Running scraper")

	runErr := cmd.Run()
	s.relayLogs(&stderr)

	if runErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("scraper timed out after %s", s.timeout)
		}
		// A failing scraper usually reports why in its envelope.
		if stdout.Len() > 0 {
			if _, err := scans.DecodeScrapeOutput(stdout.Bytes()); err != nil {
				return nil, fmt.Errorf("scraper failed: %w", err)
			}
		}
		return nil, fmt.Errorf("scraper failed: %w", runErr)
	}

	rows, err := scans.DecodeScrapeOutput(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("scraper output: %w", err)
	}

	s.log.Info().
		Str("scan_name", scanName).
		Int("rows", len(rows)).
		Dur("duration", time.Since(start)).
		Msg("Scraper finished")

	return rows, nil
}

// relayLogs forwards the scraper's stderr lines at debug level.
func (s *CommandSource) relayLogs(stderr *bytes.Buffer) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			s.log.Debug().Str("stream", "stderr").Msg(line)
		}
	}
}
