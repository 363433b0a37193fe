package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/uct-events/internal/calendar"
	"github.com/pfrederiksen/uct-events/internal/config"
	"github.com/pfrederiksen/uct-events/internal/event"
	"github.com/pfrederiksen/uct-events/internal/logger"
	"github.com/pfrederiksen/uct-events/internal/pipeline"
	"github.com/pfrederiksen/uct-events/internal/storage"
)

func newSyncCmd() *cobra.Command {
	var (
		dryRun bool
		file   string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Scrape the events page and upsert every event into the calendar",
		Example: `  uct-events sync
  uct-events sync --dry-run --verbose
  uct-events sync --file page.html`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat()
			if err != nil {
				return err
			}
			cfg, loc, err := loadConfig(cmd, true)
			if err != nil {
				return err
			}

			report, saved, err := runSync(cmd, cfg, loc, file, dryRun)
			if report == nil {
				return err
			}
			if werr := WriteReport(cmd.OutOrStdout(), report, format, flagVerbose); werr != nil {
				return werr
			}
			if err != nil {
				return err
			}
			if saved != "" && format == FormatText {
				fmt.Fprintf(cmd.OutOrStdout(), "Saved calendar to %s\n", saved)
			}
			if report.HasFailures() {
				return exitCode(ExitPartial)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Plan the changes without writing to the calendar")
	cmd.Flags().StringVar(&file, "file", "", "Read the listing from a local HTML file instead of fetching it")

	return cmd
}

// runSync performs one full run and records its report in the data dir. It
// returns the calendar file it wrote, if any. A run that fails after
// reconciling still returns its report, and that report is recorded too.
func runSync(cmd *cobra.Command, cfg *config.Config, loc *time.Location, file string, dryRun bool) (*pipeline.Report, string, error) {
	ctx := cmd.Context()
	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, "", err
	}

	p := pipeline.New(openSource(cfg, file), store, pipelineOptions(cfg, loc, dryRun), logger.Default())
	report, runErr := p.Run(ctx, nowFunc().In(loc))
	if report == nil {
		return nil, "", runErr
	}

	saveReport(cfg, report)
	logger.Debug("Process metrics", logger.MetricsSnapshot().Fields())

	var saved string
	if ics, ok := store.(*calendar.ICSStore); ok && runErr == nil && !dryRun {
		saved = ics.Path()
	}
	return report, saved, runErr
}

// saveReport writes report to the data dir. Failures are logged only.
func saveReport(cfg *config.Config, report *pipeline.Report) {
	st, err := storage.New(cfg.DataDir)
	if err != nil {
		logger.Error("Could not open data dir", logger.Fields{"data_dir": cfg.DataDir}, err)
		return
	}
	if err := st.SaveReport(report); err != nil {
		logger.Error("Failed to save run report", logger.Fields{"run_id": report.RunID}, err)
	}
}

func newExtractCmd() *cobra.Command {
	var (
		file      string
		sortOrder string
		all       bool
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Print the events found on the listing page",
		Long: `Fetch and parse the listing without touching any calendar. By default only
events inside the sync window are shown; --all lists everything that was parsed.`,
		Example: `  uct-events extract
  uct-events extract --file page.html --format json
  uct-events extract --sort title --verbose`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat()
			if err != nil {
				return err
			}
			order := SortOrder(sortOrder)
			if order != SortByDate && order != SortByTitle {
				return fmt.Errorf("invalid sort order: %s (must be 'date' or 'title')", sortOrder)
			}
			cfg, loc, err := loadConfig(cmd, false)
			if err != nil {
				return err
			}

			now := nowFunc().In(loc)
			res, err := fetchAndExtract(cmd.Context(), cfg, loc, file)
			if err != nil {
				return err
			}

			events := res.Events
			if !all {
				events = eligible(cfg, events, now)
			}
			events = append([]*event.Event(nil), events...)
			sortEvents(events, order)

			return WriteEvents(cmd.OutOrStdout(), &EventsResult{
				ExtractedAt: now,
				SourceURL:   cfg.Source.URL,
				Events:      events,
				EventCount:  len(events),
				Discards:    res.Discards,
			}, format, flagVerbose)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Read the listing from a local HTML file instead of fetching it")
	cmd.Flags().StringVar(&sortOrder, "sort", "date", "Sort order: date or title")
	cmd.Flags().BoolVar(&all, "all", false, "Include events outside the sync window")

	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		file   string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the upcoming events to an iCalendar file",
		Example: `  uct-events export --output uct_events.ics
  uct-events export --file page.html --output -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, loc, err := loadConfig(cmd, false)
			if err != nil {
				return err
			}

			now := nowFunc().In(loc)
			res, err := fetchAndExtract(cmd.Context(), cfg, loc, file)
			if err != nil {
				return err
			}
			events := eligible(cfg, res.Events, now)
			content := calendar.GenerateICS(events, now)

			if output == "-" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), content)
				return err
			}
			path := config.ExpandHome(output)
			if err := calendar.WriteICS(path, content); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d events to %s\n", len(events), filepath.Clean(path))
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Read the listing from a local HTML file instead of fetching it")
	cmd.Flags().StringVarP(&output, "output", "o", "uct_events.ics", "Output path, or - for stdout")

	return cmd
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the report of the last sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat()
			if err != nil {
				return err
			}
			cfg, _, err := loadConfig(cmd, false)
			if err != nil {
				return err
			}

			st, err := storage.New(cfg.DataDir)
			if err != nil {
				return err
			}
			report, err := st.LoadLastReport()
			if errors.Is(err, storage.ErrNoReport) {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
				return nil
			}
			if err != nil {
				return err
			}
			return WriteReport(cmd.OutOrStdout(), report, format, flagVerbose)
		},
	}

	return cmd
}

func eligible(cfg *config.Config, events []*event.Event, now time.Time) []*event.Event {
	return event.InWindow(events, now, cfg.PastBuffer, time.Duration(cfg.LookaheadDays)*24*time.Hour)
}
