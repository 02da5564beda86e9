package runner

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// runFileTime is the start time layout used in run file names. It avoids colons.
const runFileTime = "2006-01-02T15-04-05"

// DiskStore writes every run to its own JSON file under dir and keeps the newest
// maxCount of them in memory. Files are never deleted.
type DiskStore struct {
	dir    string
	logger *slog.Logger
	runs   history
}

// NewDiskStore creates dir if needed and loads the runs already in it. Unreadable
// history is logged and otherwise ignored.
func NewDiskStore(dir string, maxCount int, logger *slog.Logger) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	s := &DiskStore{
		dir:    dir,
		logger: logger.With("component", "run_store"),
		runs:   history{limit: maxCount},
	}
	if err := s.Reload(); err != nil {
		s.logger.Warn("failed to load existing runs", "error", err)
	}
	return s, nil
}

func (s *DiskStore) History() []RunSummary           { return s.runs.summaries() }
func (s *DiskStore) Nodes(id string) []NodeExecution { return s.runs.nodes(id) }

// Save writes <dir>/<start time>-<pipeline>.json, then adds the run to the in-memory list.
func (s *DiskStore) Save(summary RunSummary, nodes []NodeExecution) error {
	if summary.StartedAt == nil {
		return fmt.Errorf("cannot save run without start time")
	}
	if summary.ID == "" {
		summary.ID = summary.CalculateID()
	}
	rec := runRecord{RunSummary: summary, Nodes: nodes}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	path := filepath.Join(s.dir, fmt.Sprintf("%s-%s.json", summary.StartedAt.UTC().Format(runFileTime), summary.Pipeline))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write run file: %w", err)
	}

	s.runs.add(rec)
	s.logger.Debug("saved run", "path", path, "run_id", summary.ID)
	return nil
}

// Reload replaces the in-memory list with what is on disk.
func (s *DiskStore) Reload() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read state directory: %w", err)
	}

	var runs []runRecord
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		rec, err := readRun(filepath.Join(s.dir, e.Name()))
		if err != nil {
			s.logger.Warn("skipping run file", "file", e.Name(), "error", err)
			continue
		}
		runs = append(runs, rec)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		a, b := runs[i].StartedAt, runs[j].StartedAt
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return a.After(*b)
	})
	s.runs.replace(runs)
	s.logger.Info("loaded run history", "count", len(runs))
	return nil
}

func readRun(path string) (runRecord, error) {
	var rec runRecord
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, err
	}
	if rec.ID == "" {
		rec.ID = rec.CalculateID()
	}
	return rec, nil
}
