package pipeline

import (
	"errors"
	"fmt"
)

// Errors returned (wrapped in a TopologyError) by pipeline construction and toggle calls.
var (
	ErrInvalidName   = errors.New("invalid name")
	ErrDuplicateNode = errors.New("duplicate node")
	ErrDuplicatePort = errors.New("duplicate port")
	ErrUnknownNode   = errors.New("unknown node")
	ErrUnknownPort   = errors.New("unknown port")
	ErrInvalidLink   = errors.New("invalid link")
	ErrNotSwitch     = errors.New("node is not a switch")
	ErrUnknownOption = errors.New("unknown switch option")
)

// TopologyError reports a failed graph construction call. It is never produced by an
// activation run.
type TopologyError struct {
	// Op is the pipeline operation that failed, e.g. "link" or "add_process".
	Op string
	// Node is the node involved, if any. The root node is reported as "".
	Node string
	// Port is the port involved, if any.
	Port string
	// Err is the underlying sentinel error.
	Err error
}

func (e *TopologyError) Error() string {
	switch {
	case e.Port != "":
		return fmt.Sprintf("%s %s: %v", e.Op, qualify(e.Node, e.Port), e.Err)
	case e.Node != "":
		return fmt.Sprintf("%s %s: %v", e.Op, e.Node, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *TopologyError) Unwrap() error {
	return e.Err
}

func topologyErr(op, node, port string, err error) error {
	return &TopologyError{Op: op, Node: node, Port: port, Err: err}
}

// qualify renders a node port the way link specs spell it.
func qualify(node, port string) string {
	if node == "" {
		return port
	}
	return node + "." + port
}
