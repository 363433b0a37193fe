package scraper

import (
	"strings"
	"time"

	"github.com/pfrederiksen/uct-events/internal/event"
	"github.com/pfrederiksen/uct-events/internal/logger"
)

// Options configure one Extractor.
type Options struct {
	// Anchors mark one event each; the first is also the doors label.
	Anchors        []string
	ShowLabel      string
	MinTitleLength int
	Location       *time.Location
	Duration       time.Duration
	// SourceURL is recorded on events and resolves relative ticket links.
	SourceURL string
}

// DefaultOptions returns the options used for the venue's listing page.
func DefaultOptions() Options {
	return Options{
		Anchors:        []string{"Doors:"},
		ShowLabel:      "Show:",
		MinTitleLength: 5,
		Location:       time.UTC,
		Duration:       event.DefaultDuration,
		SourceURL:      EventsURL,
	}
}

// Discard describes a block that did not produce an event.
type Discard struct {
	Title  string `json:"title,omitempty"`
	Month  string `json:"month,omitempty"`
	Day    int    `json:"day,omitempty"`
	Time   string `json:"time,omitempty"`
	Reason string `json:"reason"`
}

// Result is the outcome of extracting one document.
type Result struct {
	Blocks int
	// Extracted counts events before deduplication.
	Extracted int
	// Events are unique by fingerprint, in first-seen order.
	Events   []*event.Event
	Discards []Discard
}

// Extractor turns a document into events.
type Extractor struct {
	opts   Options
	fields *FieldExtractor
	log    *logger.Logger
}

// NewExtractor creates an Extractor. A nil log uses the default logger.
func NewExtractor(opts Options, log *logger.Logger) *Extractor {
	if len(opts.Anchors) == 0 {
		opts.Anchors = DefaultOptions().Anchors
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Duration <= 0 {
		opts.Duration = event.DefaultDuration
	}
	if log == nil {
		log = logger.Default()
	}
	return &Extractor{
		opts:   opts,
		fields: NewFieldExtractor(opts.Anchors, opts.ShowLabel, opts.MinTitleLength, opts.SourceURL),
		log:    log,
	}
}

// Extract locates every block in doc and converts the complete ones into
// events. now anchors year inference for dates shown without a year.
func (x *Extractor) Extract(doc Document, now time.Time) *Result {
	blocks := LocateBlocks(doc, x.opts.Anchors)
	res := &Result{Blocks: len(blocks)}

	var events []*event.Event
	for _, b := range blocks {
		evt, discard := x.convert(b, now)
		if discard != nil {
			x.log.Debug("Discarding block", logger.Fields{
				"title":  discard.Title,
				"month":  discard.Month,
				"day":    discard.Day,
				"time":   discard.Time,
				"reason": discard.Reason,
			})
			res.Discards = append(res.Discards, *discard)
			continue
		}
		events = append(events, evt)
	}

	res.Extracted = len(events)
	res.Events = event.Dedup(events)

	logger.AddCounter("scraper.blocks", int64(res.Blocks))
	logger.AddCounter("scraper.discarded", int64(len(res.Discards)))

	x.log.Info("Parsed events", logger.Fields{
		"blocks":    res.Blocks,
		"discarded": len(res.Discards),
		"extracted": res.Extracted,
		"unique":    len(res.Events),
	})

	return res
}

func (x *Extractor) convert(b Block, now time.Time) (*event.Event, *Discard) {
	f := x.fields.Extract(b)
	discard := &Discard{Title: f.Title, Month: f.MonthToken, Day: f.Day, Time: f.Clock}

	if missing := f.Missing(); len(missing) > 0 {
		discard.Reason = "missing " + strings.Join(missing, ", ")
		return nil, discard
	}

	start, err := event.Resolve(f.DateParts(), now, x.opts.Location)
	if err != nil {
		discard.Reason = err.Error()
		return nil, discard
	}

	return event.NewEvent(f.Title, start, x.opts.Duration, f.Description, f.TicketURL, x.opts.SourceURL), nil
}
