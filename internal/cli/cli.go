package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/uct-events/internal/calendar"
	"github.com/pfrederiksen/uct-events/internal/config"
	"github.com/pfrederiksen/uct-events/internal/dom"
	"github.com/pfrederiksen/uct-events/internal/logger"
	"github.com/pfrederiksen/uct-events/internal/pipeline"
	"github.com/pfrederiksen/uct-events/internal/reconcile"
	"github.com/pfrederiksen/uct-events/internal/scraper"
)

const (
	ExitSuccess = 0
	ExitError   = 1
	// ExitPartial means the run finished but some events failed to sync.
	ExitPartial = 2
)

// DefaultConfigPath is read when --config is not given.
const DefaultConfigPath = "~/.config/uct-events/config.yaml"

var (
	flagConfig  string
	flagFormat  string
	flagVerbose bool
)

// nowFunc is the clock used to resolve dates; tests replace it.
var nowFunc = time.Now

// newStore opens the configured calendar backend; tests replace it.
var newStore = openStore

// exitCode ends the process with a status but no message.
type exitCode int

func (e exitCode) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uct-events",
		Short: "Sync UC Theatre events into a calendar",
		Long: `A CLI tool that scrapes the UC Theatre events page and keeps a calendar
in sync with it. Re-running updates existing entries instead of duplicating them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flagConfig, "config", DefaultConfigPath, "Path to the YAML config file")
	cmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "Output format: text or json")
	cmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable verbose logging")

	cmd.AddCommand(
		newSyncCmd(),
		newExtractCmd(),
		newExportCmd(),
		newWatchCmd(),
		newStatusCmd(),
	)

	return cmd
}

// Execute runs the CLI
func Execute() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}

// Run executes the command line args and returns the process exit status.
func Run(args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.Execute(); err != nil {
		var code exitCode
		if errors.As(err, &code) {
			return int(code)
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitError
	}
	return ExitSuccess
}

// outputFormat validates the --format flag.
func outputFormat() (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(strings.TrimSpace(flagFormat)))
	if format != FormatText && format != FormatJSON {
		return "", fmt.Errorf("invalid format: %s (must be 'text' or 'json')", flagFormat)
	}
	return format, nil
}

// loadConfig reads the config file, applies the environment and sets up
// the default logger. Store settings are only validated when needStore is set.
func loadConfig(cmd *cobra.Command, needStore bool) (*config.Config, *time.Location, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, err
	}
	cfg.ApplyEnv(os.Getenv)

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	if flagVerbose {
		level = logger.LevelDebug
	}
	logger.SetDefault(logger.New(level, cmd.ErrOrStderr()))

	if needStore {
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	return cfg, loc, nil
}

func extractOptions(cfg *config.Config, loc *time.Location) scraper.Options {
	return scraper.Options{
		Anchors:        cfg.Extract.Anchors,
		ShowLabel:      cfg.Extract.ShowLabel,
		MinTitleLength: cfg.Extract.MinTitleLength,
		Location:       loc,
		Duration:       cfg.DefaultDuration,
		SourceURL:      cfg.Source.URL,
	}
}

func pipelineOptions(cfg *config.Config, loc *time.Location, dryRun bool) pipeline.Options {
	return pipeline.Options{
		Extract: extractOptions(cfg, loc),
		Reconcile: reconcile.Options{
			Window:    cfg.Match.Window,
			Tolerance: cfg.Match.Tolerance,
			Workers:   cfg.Workers,
			DryRun:    dryRun,
		},
		PastBuffer: cfg.PastBuffer,
		Lookahead:  time.Duration(cfg.LookaheadDays) * 24 * time.Hour,
	}
}

// openSource picks the document source: a local file, headless Chrome or a
// plain HTTP GET.
func openSource(cfg *config.Config, file string) scraper.Source {
	switch {
	case file != "":
		return scraper.NewFileSource(file)
	case cfg.Source.Browser:
		return scraper.NewBrowserSource(cfg.Source.URL, cfg.Source.UserAgent, cfg.Source.Timeout)
	default:
		return scraper.NewHTTPSource(cfg.Source.URL, cfg.Source.UserAgent, cfg.Source.Timeout)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (calendar.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendGoogle:
		creds, err := cfg.Credentials()
		if err != nil {
			return nil, err
		}
		return calendar.NewGoogleStore(ctx, cfg.Store.CalendarID, calendar.GoogleCredentials(creds)...)
	case config.BackendICS:
		return calendar.OpenICSStore(config.ExpandHome(cfg.Store.ICSPath))
	case config.BackendMemory:
		return calendar.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", config.ErrInvalid, cfg.Store.Backend)
	}
}

// fetchAndExtract reads the listing and runs extraction only.
func fetchAndExtract(ctx context.Context, cfg *config.Config, loc *time.Location, file string) (*scraper.Result, error) {
	doc, err := openSource(cfg, file).Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pipeline.ErrFetch, err)
	}
	x := scraper.NewExtractor(extractOptions(cfg, loc), logger.Default())
	return x.Extract(dom.ParseBytes(doc), nowFunc().In(loc)), nil
}
