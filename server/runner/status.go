package runner

import (
	"log/slog"
	"sync"

	"github.com/nomis52/pipeflow/workflow"
)

// StatusReporter holds the latest status message of every node in a run.
// All methods are safe for concurrent use.
type StatusReporter struct {
	mu       sync.RWMutex
	statuses map[string]string
}

// NewStatusReporter creates an empty StatusReporter.
func NewStatusReporter() *StatusReporter {
	return &StatusReporter{
		statuses: make(map[string]string),
	}
}

// SetStatus records what node is currently doing.
func (r *StatusReporter) SetStatus(node, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[node] = status
}

// Status returns the latest status of node, or "".
func (r *StatusReporter) Status(node string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.statuses[node]
}

// CurrentStatuses returns a copy of all node statuses.
func (r *StatusReporter) CurrentStatuses() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]string, len(r.statuses))
	for name, status := range r.statuses {
		result[name] = status
	}
	return result
}

// Dispatch is one node handed to a Dispatcher.
type Dispatch struct {
	Node *workflow.Node
	// Logger captures records under the node's name.
	Logger *slog.Logger

	reporter *StatusReporter
}

// SetStatus logs status at Info level and makes it the node's current status.
func (d Dispatch) SetStatus(status string) {
	d.Logger.Info(status)
	if d.reporter != nil {
		d.reporter.SetStatus(d.Node.Name, status)
	}
}
