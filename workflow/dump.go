package workflow

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Dump renders the workflow as a plain node list followed by an edge list.
func (w *Workflow) Dump() string {
	var b strings.Builder
	b.WriteString("nodes:\n")
	for _, name := range w.Nodes() {
		fmt.Fprintf(&b, "  %s\n", name)
	}
	b.WriteString("edges:\n")
	for _, e := range w.Edges() {
		fmt.Fprintf(&b, "  %s\n", e)
	}
	return b.String()
}

// Fingerprint returns a hex digest of the node and edge sets. Two workflows with the same
// nodes and edges have the same fingerprint.
func (w *Workflow) Fingerprint() string {
	h, _ := blake2b.New256(nil)
	for _, name := range w.Nodes() {
		fmt.Fprintf(h, "n\x00%s\x00", name)
	}
	for _, e := range w.Edges() {
		fmt.Fprintf(h, "e\x00%s\x00%s\x00", e.From, e.To)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// DOTOption configures WriteDOT.
type DOTOption func(*dotOptions)

type dotOptions struct {
	name    string
	rankdir string
	labels  map[string]string
}

// WithGraphName sets the name of the emitted digraph.
func WithGraphName(name string) DOTOption {
	return func(o *dotOptions) {
		o.name = name
	}
}

// WithRankDir sets the Graphviz rankdir attribute, e.g. "LR".
func WithRankDir(dir string) DOTOption {
	return func(o *dotOptions) {
		o.rankdir = dir
	}
}

// WithLabels sets display labels for nodes, keyed by qualified name.
func WithLabels(labels map[string]string) DOTOption {
	return func(o *dotOptions) {
		o.labels = labels
	}
}

// WriteDOT writes the workflow as a Graphviz digraph.
func (w *Workflow) WriteDOT(out io.Writer, opts ...DOTOption) error {
	o := dotOptions{name: "workflow", rankdir: "TB"}
	for _, opt := range opts {
		opt(&o)
	}

	bw := bufio.NewWriter(out)
	fmt.Fprintf(bw, "digraph %s {\n", strconv.Quote(o.name))
	fmt.Fprintf(bw, "  rankdir=%s;\n", o.rankdir)
	fmt.Fprintf(bw, "  node [shape=box];\n")
	for _, name := range w.Nodes() {
		if label, ok := o.labels[name]; ok {
			fmt.Fprintf(bw, "  %s [label=%s];\n", strconv.Quote(name), strconv.Quote(label))
			continue
		}
		fmt.Fprintf(bw, "  %s;\n", strconv.Quote(name))
	}
	for _, e := range w.Edges() {
		fmt.Fprintf(bw, "  %s -> %s;\n", strconv.Quote(e.From), strconv.Quote(e.To))
	}
	fmt.Fprintf(bw, "}\n")

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing dot: %w", err)
	}
	return nil
}
