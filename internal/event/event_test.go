package event

import (
	"testing"
	"time"
)

func TestFingerprint(t *testing.T) {
	start := time.Date(2025, time.December, 6, 20, 0, 0, 0, time.FixedZone("PST", -8*3600))

	t.Run("deterministic", func(t *testing.T) {
		a := Fingerprint("Midnight Revue", start)
		b := Fingerprint("Midnight Revue", start)
		if a != b {
			t.Errorf("Fingerprint should be deterministic, got %s vs %s", a, b)
		}
		if len(a) != 40 { // SHA1 produces 40 hex characters
			t.Errorf("expected fingerprint length of 40, got %d", len(a))
		}
	})

	t.Run("known value", func(t *testing.T) {
		// sha1("Midnight Revue|2025-12-06T20:00:00-08:00")
		want := "c11a6d6c63cc0e6b3fea5a6429b77eae2fa8b77d"
		if got := Fingerprint("Midnight Revue", start); got != want {
			t.Errorf("Fingerprint() = %s, want %s", got, want)
		}
	})

	t.Run("differs by title", func(t *testing.T) {
		if Fingerprint("Midnight Revue", start) == Fingerprint("Midnight Revue II", start) {
			t.Error("different titles should give different fingerprints")
		}
	})

	t.Run("differs by start", func(t *testing.T) {
		if Fingerprint("Midnight Revue", start) == Fingerprint("Midnight Revue", start.Add(time.Minute)) {
			t.Error("different starts should give different fingerprints")
		}
	})

	t.Run("case sensitive", func(t *testing.T) {
		if Fingerprint("Midnight Revue", start) == Fingerprint("midnight revue", start) {
			t.Error("fingerprint uses the title as extracted")
		}
	})
}

func TestNewEvent(t *testing.T) {
	start := time.Date(2025, time.December, 6, 20, 0, 0, 0, time.UTC)
	evt := NewEvent("  Midnight Revue ", start, 0, "Doors: 7:00 pm", "https://tickets.example.com/1", "https://example.com/events")

	if evt.Title != "Midnight Revue" {
		t.Errorf("expected trimmed title, got %q", evt.Title)
	}
	if !evt.End.Equal(start.Add(2 * time.Hour)) {
		t.Errorf("End = %v, want start + 2h", evt.End)
	}
	if evt.Fingerprint != Fingerprint("Midnight Revue", start) {
		t.Error("fingerprint should be computed from the trimmed title")
	}
	if evt.SourceURL != "https://example.com/events" {
		t.Errorf("SourceURL = %q", evt.SourceURL)
	}

	custom := NewEvent("Late Show", start, 90*time.Minute, "", "", "")
	if !custom.End.Equal(start.Add(90 * time.Minute)) {
		t.Errorf("End = %v, want start + 90m", custom.End)
	}
}

func TestCalendarDescription(t *testing.T) {
	tests := []struct {
		name string
		evt  Event
		want string
	}{
		{
			name: "no ticket",
			evt:  Event{Description: "Doors: 7:00 pm"},
			want: "Doors: 7:00 pm",
		},
		{
			name: "ticket appended",
			evt:  Event{Description: "Doors: 7:00 pm", TicketURL: "https://t.example/1"},
			want: "Doors: 7:00 pm\n\nTicket: https://t.example/1",
		},
		{
			name: "ticket only",
			evt:  Event{TicketURL: "https://t.example/1"},
			want: "Ticket: https://t.example/1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.evt.CalendarDescription(); got != tt.want {
				t.Errorf("CalendarDescription() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDedup(t *testing.T) {
	start := time.Date(2025, time.December, 6, 20, 0, 0, 0, time.UTC)

	first := NewEvent("Midnight Revue", start, 0, "first copy", "", "")
	other := NewEvent("Jazz Night", start.Add(24*time.Hour), 0, "", "", "")
	second := NewEvent("Midnight Revue", start, 0, "second copy", "", "")

	unique := Dedup([]*Event{first, other, second})

	if len(unique) != 2 {
		t.Fatalf("Dedup() returned %d events, want 2", len(unique))
	}
	if unique[0].Description != "second copy" {
		t.Errorf("last duplicate should win, got %q", unique[0].Description)
	}
	if unique[1] != other {
		t.Error("order should follow first occurrence")
	}

	seen := make(map[string]bool)
	for _, evt := range unique {
		if seen[evt.Fingerprint] {
			t.Errorf("duplicate fingerprint %s", evt.Fingerprint)
		}
		seen[evt.Fingerprint] = true
	}

	if got := Dedup(nil); len(got) != 0 {
		t.Errorf("Dedup(nil) = %v", got)
	}
}

func TestInWindow(t *testing.T) {
	now := time.Date(2025, time.November, 20, 12, 0, 0, 0, time.UTC)

	events := []*Event{
		NewEvent("Long Gone", now.Add(-48*time.Hour), 0, "", "", ""),
		NewEvent("Last Night", now.Add(-12*time.Hour), 0, "", "", ""),
		NewEvent("Tonight Show", now.Add(8*time.Hour), 0, "", "", ""),
		NewEvent("Far Future", now.AddDate(0, 0, 400), 0, "", "", ""),
	}

	got := InWindow(events, now, 24*time.Hour, 365*24*time.Hour)

	if len(got) != 2 {
		t.Fatalf("InWindow() returned %d events, want 2", len(got))
	}
	if got[0].Title != "Last Night" || got[1].Title != "Tonight Show" {
		t.Errorf("InWindow() = %q, %q", got[0].Title, got[1].Title)
	}
}

func TestInWindow_Boundaries(t *testing.T) {
	now := time.Date(2025, time.November, 20, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *Event {
		return NewEvent("Show", now.Add(d), 2*time.Hour, "", "", "")
	}

	tests := []struct {
		name string
		evt  *Event
		want bool
	}{
		{"upcoming", at(48 * time.Hour), true},
		{"started within buffer", at(-23 * time.Hour), true},
		{"started before buffer", at(-25 * time.Hour), false},
		{"at lookahead edge", at(30 * 24 * time.Hour), true},
		{"beyond lookahead", at(31 * 24 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InWindow([]*Event{tt.evt}, now, 24*time.Hour, 30*24*time.Hour)
			if (len(got) == 1) != tt.want {
				t.Errorf("InWindow() kept = %v, want %v", len(got) == 1, tt.want)
			}
		})
	}
}
