package event

import "time"

// Dedup keeps one event per fingerprint. When a fingerprint repeats, the
// last event produced wins but keeps the position of the first occurrence,
// so output order follows document order.
func Dedup(events []*Event) []*Event {
	index := make(map[string]int, len(events))
	unique := make([]*Event, 0, len(events))

	for _, evt := range events {
		if i, seen := index[evt.Fingerprint]; seen {
			unique[i] = evt
			continue
		}
		index[evt.Fingerprint] = len(unique)
		unique = append(unique, evt)
	}

	return unique
}

// InWindow returns the events starting within [now-past, now+lookahead].
func InWindow(events []*Event, now time.Time, past, lookahead time.Duration) []*Event {
	from := now.Add(-past)
	to := now.Add(lookahead)

	eligible := make([]*Event, 0, len(events))
	for _, evt := range events {
		if evt.Start.Before(from) || evt.Start.After(to) {
			continue
		}
		eligible = append(eligible, evt)
	}
	return eligible
}
