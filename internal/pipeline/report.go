package pipeline

import (
	"time"

	"github.com/pfrederiksen/uct-events/internal/logger"
	"github.com/pfrederiksen/uct-events/internal/reconcile"
	"github.com/pfrederiksen/uct-events/internal/scraper"
)

// Report summarizes one run. It is written for people and never read back
// by the reconciler.
type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Duration   string    `json:"duration"`
	// Now is the instant the run resolved dates against.
	Now       time.Time `json:"now"`
	SourceURL string    `json:"source_url,omitempty"`
	DryRun    bool      `json:"dry_run,omitempty"`

	Blocks    int `json:"blocks"`
	Discarded int `json:"discarded"`
	Extracted int `json:"extracted"`
	Unique    int `json:"unique"`
	Eligible  int `json:"eligible"`
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Failed    int `json:"failed"`

	Events   []EventOutcome    `json:"events,omitempty"`
	Discards []scraper.Discard `json:"discards,omitempty"`
}

// EventOutcome is what happened to one eligible event.
type EventOutcome struct {
	Title       string    `json:"title"`
	Start       time.Time `json:"start"`
	Fingerprint string    `json:"fingerprint"`
	Action      string    `json:"action"`
	RemoteID    string    `json:"remote_id,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// HasFailures reports whether any event could not be synced.
func (r *Report) HasFailures() bool {
	return r.Failed > 0
}

// Fields returns the counts as log fields.
func (r *Report) Fields() logger.Fields {
	return logger.Fields{
		"blocks":    r.Blocks,
		"discarded": r.Discarded,
		"extracted": r.Extracted,
		"unique":    r.Unique,
		"eligible":  r.Eligible,
		"inserted":  r.Inserted,
		"updated":   r.Updated,
		"failed":    r.Failed,
		"dry_run":   r.DryRun,
	}
}

func (r *Report) addResult(res *reconcile.Result) {
	r.Inserted = res.Inserted
	r.Updated = res.Updated
	r.Failed = res.Failed

	if r.DryRun {
		for _, d := range res.Decisions {
			r.Events = append(r.Events, outcome(d, d.RemoteID, nil))
		}
	} else {
		for _, o := range res.Outcomes {
			r.Events = append(r.Events, outcome(o.Decision, o.ID, o.Err))
		}
	}

	for _, f := range res.Failures {
		if f.Stage != reconcile.StagePlan {
			continue
		}
		r.Events = append(r.Events, EventOutcome{
			Title:       f.Event.Title,
			Start:       f.Event.Start,
			Fingerprint: f.Event.Fingerprint,
			Action:      string(f.Stage),
			Error:       f.Err.Error(),
		})
	}
}

func outcome(d reconcile.Decision, id string, err error) EventOutcome {
	o := EventOutcome{
		Title:       d.Event.Title,
		Start:       d.Event.Start,
		Fingerprint: d.Event.Fingerprint,
		Action:      string(d.Action),
		RemoteID:    id,
	}
	if err != nil {
		o.Error = err.Error()
	}
	return o
}
