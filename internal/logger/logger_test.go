package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	logger := New(LevelInfo, &buf)

	tests := []struct {
		name    string
		level   Level
		message string
		fields  Fields
		err     error
		want    bool // should log
	}{
		{
			name:    "info message",
			level:   LevelInfo,
			message: "Parsed events",
			fields:  Fields{"unique": 3},
			want:    true,
		},
		{
			name:    "debug below threshold",
			level:   LevelDebug,
			message: "Skipping block",
			want:    false,
		},
		{
			name:    "error with err",
			level:   LevelError,
			message: "Failed to upsert event",
			err:     errors.New("backend unavailable"),
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := buf.Len()

			logger.log(tt.level, tt.message, tt.fields, tt.err)

			logged := buf.Len() > before
			if logged != tt.want {
				t.Errorf("log() logged = %v, want %v", logged, tt.want)
			}
		})
	}
}

func TestLogger_JSONLine(t *testing.T) {
	var buf bytes.Buffer
	logger := New(LevelDebug, &buf)

	logger.Error("Failed to upsert event", Fields{"title": "Midnight Revue"}, errors.New("HTTP 500"))

	var entry LogEntry
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}

	if entry.Level != "ERROR" {
		t.Errorf("Level = %q, want ERROR", entry.Level)
	}
	if entry.Error != "HTTP 500" {
		t.Errorf("Error = %q, want HTTP 500", entry.Error)
	}
	if entry.Fields["title"] != "Midnight Revue" {
		t.Errorf("Fields[title] = %v, want Midnight Revue", entry.Fields["title"])
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	base := New(LevelInfo, &buf)
	runLog := base.With(Fields{"run_id": "abc", "source": "site"})

	runLog.Info("Run started", Fields{"source": "override"})

	var entry LogEntry
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if entry.Fields["run_id"] != "abc" {
		t.Errorf("run_id = %v, want abc", entry.Fields["run_id"])
	}
	if entry.Fields["source"] != "override" {
		t.Errorf("call-site field should win, got %v", entry.Fields["source"])
	}

	buf.Reset()
	base.Info("No bound fields", nil)
	if strings.Contains(buf.String(), "run_id") {
		t.Errorf("With() leaked fields into parent logger: %s", buf.String())
	}
}

func TestLogger_WithCopiesFields(t *testing.T) {
	tests := []struct {
		name   string
		parent Fields
	}{
		{"root logger", nil},
		{"child logger", Fields{"run_id": "abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			base := New(LevelInfo, &buf)
			if tt.parent != nil {
				base = base.With(tt.parent)
			}

			bound := Fields{"event": "Midnight Revue"}
			log := base.With(bound)
			bound["event"] = "changed"
			bound["extra"] = true

			log.Info("Inserted event", nil)

			var entry LogEntry
			if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if entry.Fields["event"] != "Midnight Revue" {
				t.Errorf("event = %v, caller's map leaked into the logger", entry.Fields["event"])
			}
			if _, ok := entry.Fields["extra"]; ok {
				t.Error("a key added after With() should not be logged")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{" warn ", LevelWarn, false},
		{"", LevelInfo, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMetrics_Counter(t *testing.T) {
	m := NewMetrics()

	m.IncrCounter("reconcile.inserted")
	m.IncrCounter("reconcile.inserted")
	m.AddCounter("reconcile.inserted", 3)

	if got := m.Snapshot().Counters["reconcile.inserted"]; got != 5 {
		t.Errorf("Counter = %v, want 5", got)
	}
}

func TestMetrics_Gauge(t *testing.T) {
	m := NewMetrics()

	m.SetGauge("events.eligible", 10)
	m.SetGauge("events.eligible", 12)

	if got := m.Snapshot().Gauges["events.eligible"]; got != 12 {
		t.Errorf("Gauge = %v, want 12", got)
	}
}

func TestMetrics_Timing(t *testing.T) {
	m := NewMetrics()

	m.RecordTiming("run.duration", 100*time.Millisecond)
	m.RecordTiming("run.duration", 200*time.Millisecond)
	m.RecordTiming("run.duration", 150*time.Millisecond)

	stats, ok := m.Snapshot().Timings["run.duration"]
	if !ok {
		t.Fatal("run.duration missing from snapshot")
	}
	if stats.Count != 3 {
		t.Errorf("Count = %d, want 3", stats.Count)
	}
	if stats.Min != 100*time.Millisecond || stats.Max != 200*time.Millisecond {
		t.Errorf("Min/Max = %v/%v, want 100ms/200ms", stats.Min, stats.Max)
	}
	if stats.Average != 150*time.Millisecond {
		t.Errorf("Average = %v, want 150ms", stats.Average)
	}
}

func TestSnapshot_Fields(t *testing.T) {
	m := NewMetrics()
	m.IncrCounter("scraper.blocks")
	m.SetGauge("events.eligible", 3)
	m.RecordTiming("run.duration", 2*time.Second)

	fields := m.Snapshot().Fields()
	if fields["scraper.blocks"] != int64(1) {
		t.Errorf("scraper.blocks = %v", fields["scraper.blocks"])
	}
	if fields["events.eligible"] != float64(3) {
		t.Errorf("events.eligible = %v", fields["events.eligible"])
	}
	if fields["run.duration.count"] != 1 || fields["run.duration.avg"] != "2s" {
		t.Errorf("timing fields = %v, %v", fields["run.duration.count"], fields["run.duration.avg"])
	}
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name      string
		minLevel  Level
		logLevel  Level
		shouldLog bool
	}{
		{"debug logs at debug", LevelDebug, LevelDebug, true},
		{"info logs at debug", LevelDebug, LevelInfo, true},
		{"debug doesn't log at info", LevelInfo, LevelDebug, false},
		{"warn doesn't log at error", LevelError, LevelWarn, false},
		{"error always logs", LevelDebug, LevelError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(tt.minLevel, &buf)

			logger.log(tt.logLevel, "test", nil, nil)

			logged := buf.Len() > 0
			if logged != tt.shouldLog {
				t.Errorf("shouldLog = %v, want %v", logged, tt.shouldLog)
			}
		})
	}
}
