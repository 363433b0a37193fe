package calendar

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps events in process. It backs dry runs and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string]RemoteEvent
	// writes counts inserts and updates
	writes int
}

// NewMemoryStore creates an empty MemoryStore, optionally seeded.
func NewMemoryStore(seed ...RemoteEvent) *MemoryStore {
	s := &MemoryStore{events: make(map[string]RemoteEvent)}
	for _, e := range seed {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		s.events[e.ID] = e
	}
	return s
}

// ListEvents implements Store.
func (s *MemoryStore) ListEvents(ctx context.Context, from, to time.Time) ([]RemoteEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []RemoteEvent
	for _, e := range s.events {
		if overlaps(e.Start, e.End, from, to) {
			out = append(out, e)
		}
	}
	sortRemote(out)
	return out, nil
}

// InsertEvent implements Store.
func (s *MemoryStore) InsertEvent(ctx context.Context, w EventWrite) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.events[id] = toRemote(id, w)
	s.writes++
	return id, nil
}

// UpdateEvent implements Store.
func (s *MemoryStore) UpdateEvent(ctx context.Context, id string, w EventWrite) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return fmt.Errorf("updating %s: %w", id, ErrNotFound)
	}
	s.events[id] = toRemote(id, w)
	s.writes++
	return nil
}

// Events returns every stored event ordered by start.
func (s *MemoryStore) Events() []RemoteEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RemoteEvent, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e)
	}
	sortRemote(out)
	return out
}

// Len returns the number of stored events.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Writes returns the number of inserts and updates applied so far.
func (s *MemoryStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

func sortRemote(events []RemoteEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return events[i].ID < events[j].ID
	})
}
