package scheduler

// State represents the execution state of a workflow node
type State int

const (
	// NotStarted indicates Run has not reached the node yet
	NotStarted State = iota

	// Pending indicates the node is waiting for its predecessors
	Pending

	// Running indicates the node is currently executing
	Running

	// Skipped indicates the node never ran, because a predecessor did not succeed or the
	// run was cancelled
	Skipped

	// Completed indicates the node has finished execution
	// The node may have succeeded or failed - check the Error field
	Completed
)

// String returns a human-readable representation of the State
func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Skipped:
		return "skipped"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// IsFinal returns true once the node will not change state again
func (s State) IsFinal() bool {
	return s == Completed || s == Skipped
}

// Result contains the outcome of a node.
type Result struct {
	State State
	// Error is the error returned by the node, or why it was skipped.
	Error error
}

// IsSuccess returns true if the node ran and returned no error.
func (r Result) IsSuccess() bool {
	return r.State == Completed && r.Error == nil
}
