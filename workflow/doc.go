// Package workflow compiles the activated part of a pipeline into an execution DAG.
//
// # Overview
//
// A Workflow holds one Node per activated process of a pipeline and the direct edges between
// them. Activated sub-pipelines are inlined, their nodes named "parent.child". Activated
// switches never appear as nodes: a producer feeding the selected input of a switch gets a
// direct edge to whatever the switch output feeds.
//
//	w, err := workflow.Build(p)
//	if err != nil {
//	    return fmt.Errorf("building workflow: %w", err)
//	}
//	for _, n := range w.OrderedNodes() {
//	    run(n.Name, n.Process)
//	}
//
// # Transitive Reduction
//
// Every node tracks its transitive ancestors and descendants, so the edge registry stays
// acyclic and transitively reduced as edges are added:
//
//   - An edge u->v where u is already an ancestor of v is dropped.
//   - An edge that would close a cycle (including u->u) fails with a *CycleError.
//   - Otherwise every direct edge from {u} and its ancestors to {v} and its descendants is
//     removed, since the new edge implies it.
//
// Insertion costs O(|ancestors(u)| x |descendants(v)|). Reachability queries afterwards are
// constant time.
//
// # Ordering
//
// OrderedNodes walks depth first, in pre-order, from every head node in name order,
// following outgoing edges in name order. A node reachable along several paths from the
// heads is returned once per path, so executors that must run each node once should skip
// names they have already seen.
//
// # Building
//
// Build works on a pipeline Snapshot and assembles the result in a fresh Workflow that is
// only returned when every edge was added. An empty workflow is a valid result.
package workflow
