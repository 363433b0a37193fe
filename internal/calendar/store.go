// Package calendar defines the remote calendar contract used by the
// reconciler and its backends: Google Calendar, a local .ics file and an
// in-memory store. It also renders standalone iCalendar exports.
package calendar

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/pfrederiksen/uct-events/internal/event"
)

// ErrNotFound is returned when an update names an event the store does not hold.
var ErrNotFound = errors.New("event not found")

// Source metadata attached to every write.
const (
	SourceTitle = "UC Theatre"
	// PrivateTagKey names the private extended property holding the fingerprint.
	PrivateTagKey = "uct_private_id"
	// UIDDomain suffixes iCalendar UIDs derived from fingerprints.
	UIDDomain = "uctscraper"
)

// RemoteEvent is an event as the store reports it.
type RemoteEvent struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Description string    `json:"description,omitempty"`
	PrivateTag  string    `json:"private_tag,omitempty"`
}

// EventWrite is the payload of an insert or update.
type EventWrite struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	// PrivateTag is the extracted event's fingerprint.
	PrivateTag  string
	SourceTitle string
	SourceURL   string
}

// NewEventWrite builds the write payload for an extracted event.
func NewEventWrite(evt *event.Event) EventWrite {
	return EventWrite{
		Summary:     evt.Title,
		Description: evt.CalendarDescription(),
		Start:       evt.Start,
		End:         evt.End,
		PrivateTag:  evt.Fingerprint,
		SourceTitle: SourceTitle,
		SourceURL:   evt.SourceURL,
	}
}

// Store is a remote calendar. Implementations must be safe for concurrent use.
type Store interface {
	// ListEvents returns events overlapping [from, to), ordered by start.
	ListEvents(ctx context.Context, from, to time.Time) ([]RemoteEvent, error)
	// InsertEvent creates an event and returns its ID.
	InsertEvent(ctx context.Context, w EventWrite) (string, error)
	// UpdateEvent replaces the fields of an existing event.
	UpdateEvent(ctx context.Context, id string, w EventWrite) error
}

// Saver is implemented by stores that buffer writes until saved.
type Saver interface {
	Save() error
}

// overlaps reports whether [start, end) intersects [from, to). An event
// without a positive duration is treated as an instant.
func overlaps(start, end, from, to time.Time) bool {
	if !start.Before(to) {
		return false
	}
	if !end.After(start) {
		return !start.Before(from)
	}
	return end.After(from)
}

func toRemote(id string, w EventWrite) RemoteEvent {
	return RemoteEvent{
		ID:          id,
		Title:       strings.TrimSpace(w.Summary),
		Start:       w.Start,
		End:         w.End,
		Description: w.Description,
		PrivateTag:  w.PrivateTag,
	}
}
