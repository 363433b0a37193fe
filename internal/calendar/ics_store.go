package calendar

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
)

// ICSStore keeps the calendar in a local .ics file. Writes are held in
// memory until Save.
type ICSStore struct {
	mu     sync.Mutex
	path   string
	events map[string]RemoteEvent
	dirty  bool
	now    func() time.Time
}

// OpenICSStore loads path. A missing file is an empty calendar.
func OpenICSStore(path string) (*ICSStore, error) {
	s := &ICSStore{
		path:   path,
		events: make(map[string]RemoteEvent),
		now:    time.Now,
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("opening calendar: %w", err)
	}
	defer f.Close()

	cal, err := ical.ParseCalendar(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	for _, ve := range cal.Events() {
		id := ve.Id()
		if id == "" {
			continue
		}
		start, err := ve.GetStartAt()
		if err != nil {
			continue
		}
		end, err := ve.GetEndAt()
		if err != nil {
			end = start
		}
		var tag string
		if p := ve.GetProperty(ical.ComponentProperty(PropertyPrivateTag)); p != nil {
			tag = p.Value
		}
		s.events[id] = RemoteEvent{
			ID:          id,
			Title:       textValue(ve, ical.ComponentPropertySummary),
			Start:       start,
			End:         end,
			Description: textValue(ve, ical.ComponentPropertyDescription),
			PrivateTag:  tag,
		}
	}

	return s, nil
}

// Path returns the backing file.
func (s *ICSStore) Path() string {
	return s.path
}

// ListEvents implements Store.
func (s *ICSStore) ListEvents(ctx context.Context, from, to time.Time) ([]RemoteEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []RemoteEvent
	for _, e := range s.events {
		if overlaps(e.Start, e.End, from, to) {
			out = append(out, e)
		}
	}
	sortRemote(out)
	return out, nil
}

// InsertEvent implements Store. The UID is derived from the private tag
// when there is one.
func (s *ICSStore) InsertEvent(ctx context.Context, w EventWrite) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString() + "@" + UIDDomain
	if w.PrivateTag != "" {
		if _, taken := s.events[UID(w.PrivateTag)]; !taken {
			id = UID(w.PrivateTag)
		}
	}
	s.events[id] = toRemote(id, w)
	s.dirty = true
	return id, nil
}

// UpdateEvent implements Store.
func (s *ICSStore) UpdateEvent(ctx context.Context, id string, w EventWrite) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return fmt.Errorf("updating %s: %w", id, ErrNotFound)
	}
	s.events[id] = toRemote(id, w)
	s.dirty = true
	return nil
}

// Save writes the calendar when it has changed, replacing the file
// atomically.
func (s *ICSStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}

	events := make([]RemoteEvent, 0, len(s.events))
	for _, e := range s.events {
		events = append(events, e)
	}
	sortRemote(events)

	cal := newCalendar()
	stamp := s.now()
	for _, e := range events {
		ve := cal.AddEvent(e.ID)
		ve.SetDtStampTime(stamp)
		ve.SetSummary(e.Title)
		ve.SetStartAt(e.Start)
		ve.SetEndAt(e.End)
		if e.Description != "" {
			ve.SetDescription(e.Description)
		}
		if e.PrivateTag != "" {
			ve.SetProperty(ical.ComponentProperty(PropertyPrivateTag), e.PrivateTag)
		}
	}

	if err := writeFileAtomic(s.path, []byte(cal.Serialize())); err != nil {
		return fmt.Errorf("saving calendar: %w", err)
	}
	s.dirty = false
	return nil
}

// WriteICS writes a generated calendar to path atomically.
func WriteICS(path, content string) error {
	return writeFileAtomic(path, []byte(content))
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	tmp, err := os.CreateTemp(dir, "."+base+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
