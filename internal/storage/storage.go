package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pfrederiksen/uct-events/internal/pipeline"
)

// ErrNoReport is returned when no run has been recorded yet.
var ErrNoReport = errors.New("no run report found")

const (
	lastRunFile = "last_run.json"
	runsDir     = "runs"
)

// Storage handles persistence of run reports
type Storage struct {
	dataDir string
}

// New creates a new Storage instance
func New(dataDir string) (*Storage, error) {
	// Expand ~ to home directory
	if strings.HasPrefix(dataDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, dataDir[2:])
	}

	if err := os.MkdirAll(filepath.Join(dataDir, runsDir), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return &Storage{
		dataDir: dataDir,
	}, nil
}

// Dir returns the data directory.
func (s *Storage) Dir() string {
	return s.dataDir
}

func (s *Storage) runPath(runID string) string {
	return filepath.Join(s.dataDir, runsDir, runID+".json")
}

// SaveReport writes the report under its run id and as the last run.
func (s *Storage) SaveReport(report *pipeline.Report) error {
	if report == nil || report.RunID == "" {
		return errors.New("report has no run id")
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	if err := writeFile(s.runPath(report.RunID), data); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if err := writeFile(filepath.Join(s.dataDir, lastRunFile), data); err != nil {
		return fmt.Errorf("writing last run: %w", err)
	}

	return nil
}

// LoadLastReport returns the most recently saved report.
func (s *Storage) LoadLastReport() (*pipeline.Report, error) {
	return s.load(filepath.Join(s.dataDir, lastRunFile))
}

// LoadReport returns the report of one run.
func (s *Storage) LoadReport(runID string) (*pipeline.Report, error) {
	return s.load(s.runPath(runID))
}

// ListRuns returns the ids of recorded runs, oldest first.
func (s *Storage) ListRuns() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dataDir, runsDir))
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	type run struct {
		id  string
		mod int64
	}
	var runs []run
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		runs = append(runs, run{id: strings.TrimSuffix(e.Name(), ".json"), mod: info.ModTime().UnixNano()})
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].mod < runs[j].mod })

	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.id
	}
	return ids, nil
}

func (s *Storage) load(path string) (*pipeline.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoReport
		}
		return nil, fmt.Errorf("reading report: %w", err)
	}

	var report pipeline.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}
	return &report, nil
}

// writeFile replaces path through a temporary file in the same directory.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*.tmp")
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
	if err := os.Chmod(tmpName, 0644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
