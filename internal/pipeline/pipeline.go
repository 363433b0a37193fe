// Package pipeline runs one sync: fetch the listing, extract events, keep
// those inside the look-ahead window, reconcile them against the calendar
// and summarize the outcome in a Report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pfrederiksen/uct-events/internal/calendar"
	"github.com/pfrederiksen/uct-events/internal/dom"
	"github.com/pfrederiksen/uct-events/internal/event"
	"github.com/pfrederiksen/uct-events/internal/logger"
	"github.com/pfrederiksen/uct-events/internal/reconcile"
	"github.com/pfrederiksen/uct-events/internal/scraper"
)

// ErrFetch marks a run that could not read the listing page.
var ErrFetch = errors.New("fetching listing")

// Defaults for the eligibility window.
const (
	DefaultPastBuffer = 24 * time.Hour
	DefaultLookahead  = 365 * 24 * time.Hour
)

// Options configure a Pipeline.
type Options struct {
	Extract   scraper.Options
	Reconcile reconcile.Options
	// PastBuffer keeps shows that started shortly before now.
	PastBuffer time.Duration
	Lookahead  time.Duration
}

// Pipeline binds a document source to a calendar store.
type Pipeline struct {
	source scraper.Source
	store  calendar.Store
	opts   Options
	log    *logger.Logger
}

// New creates a Pipeline. A nil log uses the default logger.
func New(source scraper.Source, store calendar.Store, opts Options, log *logger.Logger) *Pipeline {
	if opts.PastBuffer <= 0 {
		opts.PastBuffer = DefaultPastBuffer
	}
	if opts.Lookahead <= 0 {
		opts.Lookahead = DefaultLookahead
	}
	if log == nil {
		log = logger.Default()
	}
	return &Pipeline{source: source, store: store, opts: opts, log: log}
}

// Run fetches the listing and processes it. A fetch failure aborts the run
// and wraps ErrFetch.
func (p *Pipeline) Run(ctx context.Context, now time.Time) (*Report, error) {
	if p.source == nil {
		return nil, fmt.Errorf("%w: no source configured", ErrFetch)
	}
	doc, err := p.source.Fetch(ctx)
	if err != nil {
		p.log.Error("Failed to fetch listing", logger.Fields{"url": p.opts.Extract.SourceURL}, err)
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return p.Process(ctx, doc, now)
}

// Process runs extraction and reconciliation over an already fetched page.
// Per-event problems are recorded in the report; the returned error is
// reserved for failing to persist the store.
func (p *Pipeline) Process(ctx context.Context, doc []byte, now time.Time) (*Report, error) {
	started := time.Now()
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: started.UTC(),
		Now:       now,
		SourceURL: p.opts.Extract.SourceURL,
		DryRun:    p.opts.Reconcile.DryRun,
	}
	log := p.log.With(logger.Fields{"run_id": report.RunID})

	extracted := scraper.NewExtractor(p.opts.Extract, log).Extract(dom.ParseBytes(doc), now)
	eligible := event.InWindow(extracted.Events, now, p.opts.PastBuffer, p.opts.Lookahead)

	report.Blocks = extracted.Blocks
	report.Discarded = len(extracted.Discards)
	report.Discards = extracted.Discards
	report.Extracted = extracted.Extracted
	report.Unique = len(extracted.Events)
	report.Eligible = len(eligible)

	result := reconcile.New(p.store, p.opts.Reconcile, log).Run(ctx, eligible)
	report.addResult(result)

	var err error
	if saver, ok := p.store.(calendar.Saver); ok && !report.DryRun {
		if serr := saver.Save(); serr != nil {
			log.Error("Failed to save calendar", nil, serr)
			err = fmt.Errorf("saving calendar: %w", serr)
		}
	}

	report.FinishedAt = time.Now().UTC()
	report.Duration = report.FinishedAt.Sub(report.StartedAt).String()
	logger.RecordTiming("run.duration", time.Since(started))
	logger.SetGauge("events.eligible", float64(report.Eligible))

	log.Info("Run complete", report.Fields())
	return report, err
}
