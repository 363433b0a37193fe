// Package reconcile maps extracted events onto a calendar store so that
// repeated runs update existing entries instead of duplicating them.
//
// An extracted event matches a remote one when their titles are equal
// ignoring case and surrounding space and their starts differ by less than
// the tolerance. The private tag written with each event is informational
// only and never consulted for matching.
package reconcile

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pfrederiksen/uct-events/internal/calendar"
	"github.com/pfrederiksen/uct-events/internal/event"
	"github.com/pfrederiksen/uct-events/internal/logger"
)

// Defaults for Options.
const (
	DefaultWindow    = 2 * time.Hour
	DefaultTolerance = 60 * time.Second
)

// Action is what a decision does to the store.
type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
)

// Decision is the planned write for one extracted event.
type Decision struct {
	Action Action
	// RemoteID is set for updates.
	RemoteID string
	Event    *event.Event
}

// Stage names where a failure happened.
type Stage string

const (
	StagePlan  Stage = "plan"
	StageWrite Stage = "write"
)

// Failure is a per-event error. Failures never stop other events.
type Failure struct {
	Event *event.Event
	Stage Stage
	Err   error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %q: %v", f.Stage, f.Event.Title, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Outcome records what happened to one decision.
type Outcome struct {
	Decision
	// ID is the remote ID after the write.
	ID  string
	Err error
}

// Result summarizes a reconciliation.
type Result struct {
	Decisions []Decision
	Outcomes  []Outcome
	Inserted  int
	Updated   int
	Failed    int
	Failures  []Failure
}

// Options tune an Engine.
type Options struct {
	// Window is the query radius around each event's start.
	Window time.Duration
	// Tolerance is the largest start difference that still matches.
	Tolerance time.Duration
	// Workers bounds concurrent writes. Values below 2 write sequentially.
	Workers int
	// DryRun plans without writing.
	DryRun bool
}

// Engine reconciles events against one store.
type Engine struct {
	store calendar.Store
	opts  Options
	log   *logger.Logger
}

// New creates an Engine. A nil log uses the default logger.
func New(store calendar.Store, opts Options, log *logger.Logger) *Engine {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultTolerance
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if log == nil {
		log = logger.Default()
	}
	return &Engine{store: store, opts: opts, log: log}
}

// Run plans every event, then applies the decisions.
func (e *Engine) Run(ctx context.Context, events []*event.Event) *Result {
	decisions, failures := e.Plan(ctx, events)

	res := &Result{Decisions: decisions}
	if !e.opts.DryRun {
		applied := e.Apply(ctx, decisions)
		res.Outcomes = applied.Outcomes
		res.Inserted = applied.Inserted
		res.Updated = applied.Updated
		failures = append(failures, applied.Failures...)
	}

	res.Failures = failures
	res.Failed = len(failures)
	return res
}

// Plan queries the store around each event and decides between insert and
// update. A failed query becomes a failure for that event alone.
func (e *Engine) Plan(ctx context.Context, events []*event.Event) ([]Decision, []Failure) {
	var decisions []Decision
	var failures []Failure

	for _, evt := range events {
		remote, err := e.store.ListEvents(ctx, evt.Start.Add(-e.opts.Window), evt.Start.Add(e.opts.Window))
		if err != nil {
			e.log.Error("Failed to query calendar", logger.Fields{"title": evt.Title, "start": evt.Start}, err)
			failures = append(failures, Failure{Event: evt, Stage: StagePlan, Err: err})
			continue
		}

		if match, ok := FindMatch(evt, remote, e.opts.Tolerance); ok {
			decisions = append(decisions, Decision{Action: ActionUpdate, RemoteID: match.ID, Event: evt})
			continue
		}
		decisions = append(decisions, Decision{Action: ActionInsert, Event: evt})
	}

	return decisions, failures
}

// Apply executes decisions. Every write is attempted; failures are logged
// with the event title and collected.
func (e *Engine) Apply(ctx context.Context, decisions []Decision) *Result {
	outcomes := make([]Outcome, len(decisions))

	if e.opts.Workers < 2 || len(decisions) < 2 {
		for i, d := range decisions {
			outcomes[i] = e.apply(ctx, d)
		}
	} else {
		var wg sync.WaitGroup
		sem := make(chan struct{}, e.opts.Workers)

		for i, d := range decisions {
			wg.Add(1)
			go func(i int, d Decision) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				outcomes[i] = e.apply(ctx, d)
			}(i, d)
		}

		wg.Wait()
	}

	res := &Result{Decisions: decisions, Outcomes: outcomes}
	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			res.Failures = append(res.Failures, Failure{Event: o.Event, Stage: StageWrite, Err: o.Err})
		case o.Action == ActionInsert:
			res.Inserted++
		case o.Action == ActionUpdate:
			res.Updated++
		}
	}
	res.Failed = len(res.Failures)

	logger.AddCounter("reconcile.inserted", int64(res.Inserted))
	logger.AddCounter("reconcile.updated", int64(res.Updated))
	logger.AddCounter("reconcile.failed", int64(res.Failed))

	return res
}

func (e *Engine) apply(ctx context.Context, d Decision) Outcome {
	w := calendar.NewEventWrite(d.Event)
	out := Outcome{Decision: d}

	switch d.Action {
	case ActionUpdate:
		out.ID = d.RemoteID
		out.Err = e.store.UpdateEvent(ctx, d.RemoteID, w)
	default:
		out.ID, out.Err = e.store.InsertEvent(ctx, w)
	}

	fields := logger.Fields{"title": d.Event.Title, "start": d.Event.Start, "action": string(d.Action)}
	if out.Err != nil {
		e.log.Error("Failed to upsert event", fields, out.Err)
		return out
	}
	fields["id"] = out.ID
	e.log.Info("Upserted event", fields)
	return out
}

// FindMatch returns the first remote event, in store order, with the same
// title and a start within tolerance.
func FindMatch(evt *event.Event, remote []calendar.RemoteEvent, tolerance time.Duration) (calendar.RemoteEvent, bool) {
	title := strings.TrimSpace(evt.Title)
	for _, r := range remote {
		if !strings.EqualFold(strings.TrimSpace(r.Title), title) {
			continue
		}
		if absDuration(r.Start.Sub(evt.Start)) < tolerance {
			return r, true
		}
	}
	return calendar.RemoteEvent{}, false
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
