package pipeline

import "fmt"

// Kind discriminates the closed set of node variants. Both the activation engine and the
// workflow builder switch on it exhaustively.
type Kind int

const (
	// KindRoot is the pipeline boundary. Exactly one per pipeline, named "".
	KindRoot Kind = iota
	// KindProcess wraps one opaque Process.
	KindProcess
	// KindSwitch routes exactly one group of alternative inputs to its outputs.
	KindSwitch
	// KindSubPipeline wraps a nested *Pipeline that is inlined by the workflow builder.
	KindSubPipeline
)

// String returns a human-readable representation of the Kind
func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindProcess:
		return "process"
	case KindSwitch:
		return "switch"
	case KindSubPipeline:
		return "sub_pipeline"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name written by MarshalText.
func (k *Kind) UnmarshalText(text []byte) error {
	for _, c := range []Kind{KindRoot, KindProcess, KindSwitch, KindSubPipeline} {
		if c.String() == string(text) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown node kind %q", text)
}

// PortSpec describes a port a Process exposes.
type PortSpec struct {
	Name     string `yaml:"name" json:"name"`
	Optional bool   `yaml:"optional,omitempty" json:"optional,omitempty"`
	Output   bool   `yaml:"output,omitempty" json:"output,omitempty"`
}

// Process is the minimal capability a pipeline needs from whatever a node runs: the list
// of its named ports. The value itself is carried untouched into the workflow as the
// node's process handle.
type Process interface {
	Ports() []PortSpec
}

// port lives in the pipeline's port arena and is addressed by index.
type port struct {
	name      string
	node      int
	enabled   bool
	optional  bool
	output    bool
	activated bool
	hidden    bool
}

// node lives in the pipeline's node arena and is addressed by index.
type node struct {
	name      string
	kind      Kind
	enabled   bool
	activated bool

	process Process
	// inner is set for KindSubPipeline.
	inner *Pipeline

	// ports holds port arena indices in declaration order.
	ports     []int
	portIndex map[string]int

	// noExport lists ports ExportUnlinked must skip.
	noExport map[string]bool

	// Switch state.
	options  []string
	outputs  []string
	selected string
}

func newNode(name string, kind Kind) *node {
	return &node{
		name:      name,
		kind:      kind,
		enabled:   true,
		portIndex: make(map[string]int),
		noExport:  make(map[string]bool),
	}
}

// SwitchInput returns the name of the switch input port that carries option to output.
func SwitchInput(option, output string) string {
	return option + "_switch_" + output
}

// NodeOption configures a node added with AddProcess.
type NodeOption func(*nodeOptions)

type nodeOptions struct {
	optional map[string]bool
	noExport map[string]bool
	disabled bool
}

// WithOptionalPorts marks the named ports optional regardless of what the process reports.
// Such ports are never auto-exported either.
func WithOptionalPorts(names ...string) NodeOption {
	return func(o *nodeOptions) {
		for _, n := range names {
			o.optional[n] = true
			o.noExport[n] = true
		}
	}
}

// WithoutExport excludes the named ports from ExportUnlinked.
func WithoutExport(names ...string) NodeOption {
	return func(o *nodeOptions) {
		for _, n := range names {
			o.noExport[n] = true
		}
	}
}

// WithDisabled adds the node with enabled=false.
func WithDisabled() NodeOption {
	return func(o *nodeOptions) {
		o.disabled = true
	}
}
