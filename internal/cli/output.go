package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pfrederiksen/uct-events/internal/event"
	"github.com/pfrederiksen/uct-events/internal/pipeline"
	"github.com/pfrederiksen/uct-events/internal/reconcile"
	"github.com/pfrederiksen/uct-events/internal/scraper"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

const timeLayout = "Mon Jan 2 2006 3:04 PM"

// EventsResult is what the extract command prints.
type EventsResult struct {
	ExtractedAt time.Time         `json:"extracted_at"`
	SourceURL   string            `json:"source_url"`
	Events      []*event.Event    `json:"events"`
	EventCount  int               `json:"event_count"`
	Discards    []scraper.Discard `json:"discards,omitempty"`
}

// WriteEvents writes extracted events in the specified format
func WriteEvents(w io.Writer, result *EventsResult, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeEventsText(w, result, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteReport writes a run report in the specified format
func WriteReport(w io.Writer, report *pipeline.Report, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, report)
	case FormatText:
		return writeReportText(w, report, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs results as JSON
func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeEventsText(w io.Writer, result *EventsResult, verbose bool) error {
	if result.EventCount == 0 {
		fmt.Fprintln(w, "No events found.")
	}

	for _, evt := range result.Events {
		fmt.Fprintf(w, "%s  %s\n", evt.Start.Format(timeLayout), evt.Title)
		if verbose {
			fmt.Fprintf(w, "     ID: %s\n", evt.Fingerprint)
			fmt.Fprintf(w, "     Ends: %s\n", evt.End.Format(timeLayout))
			if evt.TicketURL != "" {
				fmt.Fprintf(w, "     Tickets: %s\n", evt.TicketURL)
			}
		}
	}
	if result.EventCount > 0 {
		fmt.Fprintf(w, "\nTotal: %d events\n", result.EventCount)
	}

	if verbose && len(result.Discards) > 0 {
		fmt.Fprintf(w, "\nSkipped %d blocks:\n", len(result.Discards))
		for _, d := range result.Discards {
			fmt.Fprintf(w, "  %s: %s\n", discardLabel(d), d.Reason)
		}
	}

	return nil
}

func writeReportText(w io.Writer, r *pipeline.Report, verbose bool) error {
	header := "Run " + r.RunID
	if r.DryRun {
		header += " (dry run)"
	}
	fmt.Fprintln(w, header)
	if !r.FinishedAt.IsZero() {
		fmt.Fprintf(w, "Finished: %s (%s)\n", r.FinishedAt.Format(time.RFC3339), r.Duration)
	}
	fmt.Fprintf(w, "Blocks: %d  Discarded: %d  Extracted: %d  Unique: %d  Eligible: %d\n",
		r.Blocks, r.Discarded, r.Extracted, r.Unique, r.Eligible)

	if r.DryRun {
		inserts, updates := planned(r.Events)
		fmt.Fprintf(w, "Planned %d inserts  %d updates  Failed: %d\n", inserts, updates, r.Failed)
	} else {
		fmt.Fprintf(w, "Inserted %d  Updated %d  Failed: %d\n", r.Inserted, r.Updated, r.Failed)
	}

	for _, o := range r.Events {
		if o.Error == "" && !verbose {
			continue
		}
		line := fmt.Sprintf("  %-6s %s  %s", o.Action, o.Start.Format(timeLayout), o.Title)
		if o.Error != "" {
			line += "  ERROR: " + o.Error
		} else if o.RemoteID != "" {
			line += "  [" + o.RemoteID + "]"
		}
		fmt.Fprintln(w, line)
	}

	if verbose {
		for _, d := range r.Discards {
			fmt.Fprintf(w, "  skip   %s: %s\n", discardLabel(d), d.Reason)
		}
	}

	return nil
}

// planned counts the actions a dry run decided on.
func planned(events []pipeline.EventOutcome) (inserts, updates int) {
	for _, o := range events {
		switch o.Action {
		case string(reconcile.ActionInsert):
			inserts++
		case string(reconcile.ActionUpdate):
			updates++
		}
	}
	return inserts, updates
}

func discardLabel(d scraper.Discard) string {
	if d.Title != "" {
		return d.Title
	}
	if d.Month != "" {
		return fmt.Sprintf("%s %d", d.Month, d.Day)
	}
	return "(untitled)"
}
