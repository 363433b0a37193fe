package event

import (
	"crypto/sha1"
	"fmt"
	"strings"
	"time"
)

// DefaultDuration is used for End when the listing gives no end time.
const DefaultDuration = 2 * time.Hour

// Event is one show extracted from the listing page. It is never mutated
// after NewEvent returns it.
type Event struct {
	Fingerprint string    `json:"fingerprint"`
	Title       string    `json:"title"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Description string    `json:"description,omitempty"`
	TicketURL   string    `json:"ticket_url,omitempty"`
	SourceURL   string    `json:"source_url,omitempty"`
}

// Fingerprint returns the stable identity of a show: the hex SHA1 of the
// title and the RFC 3339 form of its start.
func Fingerprint(title string, start time.Time) string {
	h := sha1.New()
	h.Write([]byte(title + "|" + start.Format(time.RFC3339)))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// NewEvent creates an Event with End and Fingerprint populated. A
// non-positive duration falls back to DefaultDuration.
func NewEvent(title string, start time.Time, duration time.Duration, description, ticketURL, sourceURL string) *Event {
	if duration <= 0 {
		duration = DefaultDuration
	}
	title = strings.TrimSpace(title)
	return &Event{
		Fingerprint: Fingerprint(title, start),
		Title:       title,
		Start:       start,
		End:         start.Add(duration),
		Description: description,
		TicketURL:   ticketURL,
		SourceURL:   sourceURL,
	}
}

// CalendarDescription is the description written to calendars: the event
// description with the ticket link appended when there is one.
func (e *Event) CalendarDescription() string {
	if e.TicketURL == "" {
		return e.Description
	}
	return strings.TrimSpace(e.Description + "\n\nTicket: " + e.TicketURL)
}
