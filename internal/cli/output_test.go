package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/pfrederiksen/uct-events/internal/event"
	"github.com/pfrederiksen/uct-events/internal/pipeline"
	"github.com/pfrederiksen/uct-events/internal/scraper"
)

func testEvents() []*event.Event {
	at := func(month time.Month, day, hour int) time.Time {
		return time.Date(2025, month, day, hour, 0, 0, 0, time.UTC)
	}
	return []*event.Event{
		event.NewEvent("The Lowdown Brass Band", at(time.December, 17, 20), 2*time.Hour, "", "", ""),
		event.NewEvent("midnight revue", at(time.December, 6, 20), 2*time.Hour, "", "https://tickets.example.com/1", ""),
		event.NewEvent("Afternoon Matinee", at(time.December, 6, 20), 2*time.Hour, "", "", ""),
	}
}

func titles(events []*event.Event) string {
	var out []string
	for _, e := range events {
		out = append(out, e.Title)
	}
	return strings.Join(out, ", ")
}

func TestSortEvents(t *testing.T) {
	tests := []struct {
		order SortOrder
		want  string
	}{
		{SortByDate, "Afternoon Matinee, midnight revue, The Lowdown Brass Band"},
		{SortByTitle, "Afternoon Matinee, midnight revue, The Lowdown Brass Band"},
	}

	for _, tt := range tests {
		t.Run(string(tt.order), func(t *testing.T) {
			events := testEvents()
			sortEvents(events, tt.order)
			if got := titles(events); got != tt.want {
				t.Errorf("sortEvents(%s) = %s, want %s", tt.order, got, tt.want)
			}
		})
	}
}

func TestSortEvents_TitleTiebreak(t *testing.T) {
	start := time.Date(2025, time.December, 6, 20, 0, 0, 0, time.UTC)
	events := []*event.Event{
		event.NewEvent("Encore", start.Add(48*time.Hour), time.Hour, "", "", ""),
		event.NewEvent("Encore", start, time.Hour, "", "", ""),
	}
	sortEvents(events, SortByTitle)
	if !events[0].Start.Equal(start) {
		t.Errorf("equal titles should sort by date, got %v first", events[0].Start)
	}
}

func TestWriteEvents_Text(t *testing.T) {
	events := testEvents()
	sortEvents(events, SortByDate)

	var buf bytes.Buffer
	err := WriteEvents(&buf, &EventsResult{
		Events:     events,
		EventCount: len(events),
		Discards:   []scraper.Discard{{Month: "Dec", Day: 20, Reason: "missing title"}},
	}, FormatText, true)
	if err != nil {
		t.Fatalf("WriteEvents() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Sat Dec 6 2025 8:00 PM  Afternoon Matinee",
		"Tickets: https://tickets.example.com/1",
		"ID: " + events[0].Fingerprint,
		"Total: 3 events",
		"Dec 20: missing title",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteEvents_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteEvents(&buf, &EventsResult{}, FormatText, false); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "No events found." {
		t.Errorf("output = %q", buf.String())
	}
}

func TestWriteReport(t *testing.T) {
	report := &pipeline.Report{
		RunID:    "run-1",
		Eligible: 2,
		Inserted: 1,
		Failed:   1,
		Events: []pipeline.EventOutcome{
			{Title: "Midnight Revue", Action: "insert", RemoteID: "abc"},
			{Title: "Lowdown", Action: "update", Error: "HTTP 500"},
		},
	}

	var quiet bytes.Buffer
	if err := WriteReport(&quiet, report, FormatText, false); err != nil {
		t.Fatal(err)
	}
	out := quiet.String()
	if !strings.Contains(out, "Inserted 1  Updated 0  Failed: 1") {
		t.Errorf("summary line missing:\n%s", out)
	}
	if !strings.Contains(out, "Lowdown") || !strings.Contains(out, "ERROR: HTTP 500") {
		t.Errorf("failures must always be listed:\n%s", out)
	}
	if strings.Contains(out, "Midnight Revue") {
		t.Errorf("successful events are only listed when verbose:\n%s", out)
	}

	var verbose bytes.Buffer
	if err := WriteReport(&verbose, report, FormatText, true); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(verbose.String(), "Midnight Revue  [abc]") {
		t.Errorf("verbose output missing remote id:\n%s", verbose.String())
	}

	var js bytes.Buffer
	if err := WriteReport(&js, report, FormatJSON, false); err != nil {
		t.Fatal(err)
	}
	var decoded pipeline.Report
	if err := json.Unmarshal(js.Bytes(), &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.RunID != "run-1" || decoded.Failed != 1 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteReport_UnknownFormat(t *testing.T) {
	if err := WriteReport(&bytes.Buffer{}, &pipeline.Report{}, OutputFormat("xml"), false); err == nil {
		t.Error("WriteReport() should reject an unknown format")
	}
}
