package runner

import (
	"time"

	"github.com/google/uuid"

	"github.com/nomis52/pipeflow/logging"
)

// RunState represents the current state of a pipeline run.
type RunState int

const (
	// RunStateIdle indicates no run is in progress.
	RunStateIdle RunState = iota
	// RunStateRunning indicates a run is in progress.
	RunStateRunning
)

// String returns the string representation of the run state.
func (s RunState) String() string {
	switch s {
	case RunStateIdle:
		return "idle"
	case RunStateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s RunState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown values decode as idle.
func (s *RunState) UnmarshalText(text []byte) error {
	if string(text) == RunStateRunning.String() {
		*s = RunStateRunning
	} else {
		*s = RunStateIdle
	}
	return nil
}

// RunSummary describes one run without its per-node detail.
type RunSummary struct {
	ID string `json:"id"`
	// Pipeline is the name of the pipeline that was run.
	Pipeline string `json:"pipeline"`
	// Trigger says what started the run, e.g. "manual" or "schedule".
	Trigger string `json:"trigger,omitempty"`
	// Fingerprint identifies the workflow that was executed.
	Fingerprint string   `json:"fingerprint,omitempty"`
	State       RunState `json:"state"`
	// StartedAt is when the run started. Nil if no run has occurred.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// EndedAt is when the run ended. Nil if run is in progress or no run has occurred.
	EndedAt *time.Time `json:"ended_at,omitempty"`
	// Error contains the error message if the run failed. Empty on success.
	Error string `json:"error,omitempty"`
}

// CalculateID derives a stable ID from the pipeline name and start time.
func (s RunSummary) CalculateID() string {
	var started string
	if s.StartedAt != nil {
		started = s.StartedAt.UTC().Format(time.RFC3339Nano)
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("pipeflow:"+s.Pipeline+"@"+started)).String()
}

// NodeExecution is the outcome of one workflow node within a run.
type NodeExecution struct {
	Node  string `json:"node"`
	State string `json:"state"`
	// Status is the last status message the node reported.
	Status string             `json:"status,omitempty"`
	Error  string             `json:"error,omitempty"`
	Logs   []logging.LogEntry `json:"logs,omitempty"`
}

// RunStatus is a run summary plus the executions of its nodes.
type RunStatus struct {
	RunSummary
	Nodes []NodeExecution `json:"nodes,omitempty"`
}

type runRecord struct {
	RunSummary
	Nodes []NodeExecution `json:"nodes"`
}
