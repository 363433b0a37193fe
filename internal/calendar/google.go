package calendar

import (
	"context"
	"fmt"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// listPageSize matches the small windows the reconciler queries.
const listPageSize = 10

// GoogleStore is a Google Calendar accessed through the v3 API.
type GoogleStore struct {
	svc        *gcal.Service
	calendarID string
}

// NewGoogleStore connects to calendarID. Callers supply credentials through
// opts, usually GoogleCredentials.
func NewGoogleStore(ctx context.Context, calendarID string, opts ...option.ClientOption) (*GoogleStore, error) {
	if calendarID == "" {
		return nil, fmt.Errorf("google calendar: calendar id is empty")
	}
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}
	return &GoogleStore{svc: svc, calendarID: calendarID}, nil
}

// GoogleCredentials returns the client options for a service account key.
func GoogleCredentials(serviceAccountJSON []byte) []option.ClientOption {
	return []option.ClientOption{
		option.WithCredentialsJSON(serviceAccountJSON),
		option.WithScopes(gcal.CalendarScope),
	}
}

// ListEvents implements Store. Recurring events are expanded into instances.
func (g *GoogleStore) ListEvents(ctx context.Context, from, to time.Time) ([]RemoteEvent, error) {
	call := g.svc.Events.List(g.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(listPageSize)

	var out []RemoteEvent
	err := call.Pages(ctx, func(page *gcal.Events) error {
		for _, item := range page.Items {
			if item.Status == "cancelled" {
				continue
			}
			out = append(out, fromGoogle(item))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	return out, nil
}

// InsertEvent implements Store.
func (g *GoogleStore) InsertEvent(ctx context.Context, w EventWrite) (string, error) {
	created, err := g.svc.Events.Insert(g.calendarID, toGoogle(w)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("inserting %q: %w", w.Summary, err)
	}
	return created.Id, nil
}

// UpdateEvent implements Store. Fields absent from the write are left as
// they are on the remote event.
func (g *GoogleStore) UpdateEvent(ctx context.Context, id string, w EventWrite) error {
	if _, err := g.svc.Events.Patch(g.calendarID, id, toGoogle(w)).Context(ctx).Do(); err != nil {
		return fmt.Errorf("patching %q: %w", w.Summary, err)
	}
	return nil
}

func toGoogle(w EventWrite) *gcal.Event {
	ev := &gcal.Event{
		Summary:     w.Summary,
		Description: w.Description,
		Start:       eventDateTime(w.Start),
		End:         eventDateTime(w.End),
	}
	if w.PrivateTag != "" {
		ev.ExtendedProperties = &gcal.EventExtendedProperties{
			Private: map[string]string{PrivateTagKey: w.PrivateTag},
		}
	}
	if w.SourceURL != "" {
		ev.Source = &gcal.EventSource{Title: w.SourceTitle, Url: w.SourceURL}
	}
	return ev
}

func eventDateTime(t time.Time) *gcal.EventDateTime {
	edt := &gcal.EventDateTime{DateTime: t.Format(time.RFC3339)}
	if name := t.Location().String(); name != "Local" {
		edt.TimeZone = name
	}
	return edt
}

func fromGoogle(item *gcal.Event) RemoteEvent {
	re := RemoteEvent{
		ID:          item.Id,
		Title:       item.Summary,
		Description: item.Description,
		Start:       parseGoogleTime(item.Start),
		End:         parseGoogleTime(item.End),
	}
	if item.ExtendedProperties != nil {
		re.PrivateTag = item.ExtendedProperties.Private[PrivateTagKey]
	}
	return re
}

// parseGoogleTime reads a timed or all-day boundary. Unreadable values
// yield the zero time, which never matches an extracted event.
func parseGoogleTime(edt *gcal.EventDateTime) time.Time {
	if edt == nil {
		return time.Time{}
	}
	if edt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, edt.DateTime); err == nil {
			return t
		}
		return time.Time{}
	}
	if edt.Date != "" {
		if t, err := time.Parse("2006-01-02", edt.Date); err == nil {
			return t
		}
	}
	return time.Time{}
}
