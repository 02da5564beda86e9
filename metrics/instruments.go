package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric Instruments registers.
const Namespace = "pipeflow"

// Build results recorded by ObserveBuild.
const (
	BuildOK    = "ok"
	BuildCycle = "cycle"
)

// Instruments holds the metrics recorded by activation runs and workflow builds.
// A nil *Instruments records nothing.
type Instruments struct {
	activationRuns CounterVec
	activatedNodes GaugeVec
	hiddenParams   GaugeVec
	builds         CounterVec
	workflowNodes  GaugeVec
	workflowEdges  GaugeVec
}

// NewInstruments registers the pipeline metrics with reg.
func NewInstruments(reg Registry) (*Instruments, error) {
	var (
		i   Instruments
		err error
	)

	i.activationRuns, err = reg.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "activation_runs_total",
		Help:      "Number of activation engine runs",
	}, []string{"pipeline"})
	if err != nil {
		return nil, fmt.Errorf("creating activation runs counter: %w", err)
	}

	i.activatedNodes, err = reg.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "activated_nodes",
		Help:      "Number of activated nodes after the last activation run",
	}, []string{"pipeline"})
	if err != nil {
		return nil, fmt.Errorf("creating activated nodes gauge: %w", err)
	}

	i.hiddenParams, err = reg.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "hidden_parameters",
		Help:      "Number of hidden pipeline parameters after the last activation run",
	}, []string{"pipeline"})
	if err != nil {
		return nil, fmt.Errorf("creating hidden parameters gauge: %w", err)
	}

	i.builds, err = reg.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "workflow_builds_total",
		Help:      "Number of workflow builds by result",
	}, []string{"pipeline", "result"})
	if err != nil {
		return nil, fmt.Errorf("creating workflow builds counter: %w", err)
	}

	i.workflowNodes, err = reg.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "workflow_nodes",
		Help:      "Number of nodes in the last workflow built",
	}, []string{"pipeline"})
	if err != nil {
		return nil, fmt.Errorf("creating workflow nodes gauge: %w", err)
	}

	i.workflowEdges, err = reg.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "workflow_edges",
		Help:      "Number of edges in the last workflow built",
	}, []string{"pipeline"})
	if err != nil {
		return nil, fmt.Errorf("creating workflow edges gauge: %w", err)
	}

	return &i, nil
}

// ObserveActivation records one activation run of the named pipeline.
func (i *Instruments) ObserveActivation(pipeline string, activated, hidden int) {
	if i == nil {
		return
	}
	labels := prometheus.Labels{"pipeline": pipeline}
	i.activationRuns.With(labels).Inc()
	i.activatedNodes.With(labels).Set(float64(activated))
	i.hiddenParams.With(labels).Set(float64(hidden))
}

// ObserveBuild records one workflow build. Node and edge counts are only recorded for
// successful builds.
func (i *Instruments) ObserveBuild(pipeline, result string, nodes, edges int) {
	if i == nil {
		return
	}
	i.builds.With(prometheus.Labels{"pipeline": pipeline, "result": result}).Inc()
	if result != BuildOK {
		return
	}
	labels := prometheus.Labels{"pipeline": pipeline}
	i.workflowNodes.With(labels).Set(float64(nodes))
	i.workflowEdges.With(labels).Set(float64(edges))
}
