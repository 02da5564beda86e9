package runner

// StateStore manages persistence of run history.
type StateStore interface {
	// History returns all stored runs, most recent first.
	History() []RunSummary
	// Nodes returns the node executions of the run with the given ID, or nil.
	Nodes(id string) []NodeExecution
	// Save persists a run.
	Save(summary RunSummary, nodes []NodeExecution) error
}
