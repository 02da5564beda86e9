// Package pipeline models a configurable computation as a graph of nodes connected through
// directional ports, and keeps track of which nodes and ports are live.
//
// # Overview
//
// A Pipeline owns a root node (the pipeline boundary, named "") plus any number of process,
// switch and sub-pipeline nodes. Nodes and ports live in arenas owned by the Pipeline and
// links are stored as port index pairs, indexed forward and backward.
//
//	p := pipeline.New("render")
//	_ = p.AddProcess("load", loader)
//	_ = p.AddProcess("draw", drawer)
//	_ = p.LinkSpec("load.image->draw.image")
//	_ = p.ExportUnlinked()
//
// # Ports
//
// A port with Output=false consumes values and a port with Output=true produces them. Root
// ports are inverted: a pipeline input produces for the nodes it feeds and a pipeline output
// consumes what nodes produce. Links always run from a producer to a consumer.
//
// # Activation
//
// Every mutation runs the activation engine once, under the pipeline's write lock:
//
//  1. Initialize: only the root keeps activation; its ports follow their enable flags.
//  2. Forward waves: a node is activated when it is enabled and every mandatory consumer
//     port is fed by an activated producer. Its linked producers then activate and the
//     nodes they feed are checked again in the next wave.
//  3. Backward sweeps: an activated node whose producers reach no activated consumer is
//     demoted, and the nodes that fed it are swept again.
//  4. Boundary projection: a pipeline parameter stays activated only while one of its
//     links touches an activated node port. Inactive parameters are hidden.
//
// Deactivation is never an error. A switch treats the inputs of its selected option as
// mandatory and ignores the others, so a switch whose selected input is unfed stays
// inactive along with everything downstream of it.
//
// # Events
//
// Observers registered with Subscribe receive ActivationChanged after every run and
// VisibilityChanged after runs that flipped a hidden flag. Events are delivered after the
// lock is released, in the goroutine that made the mutation.
//
// # Errors
//
// Construction and toggle calls return a *TopologyError wrapping one of the sentinel errors
// (ErrUnknownNode, ErrInvalidLink, ...). A failed call leaves the pipeline unchanged.
package pipeline
