// Package handlers provides HTTP handlers for the pipeflow server.
//
// Each handler is in its own file and implements http.Handler.
// Handlers use interfaces to access server dependencies, avoiding
// circular imports.
package handlers

import (
	"time"

	"github.com/nomis52/pipeflow/config"
	"github.com/nomis52/pipeflow/metrics"
	"github.com/nomis52/pipeflow/pipeline"
	"github.com/nomis52/pipeflow/schedule"
	"github.com/nomis52/pipeflow/server/runner"
)

// ConfigProvider provides access to the current configuration.
type ConfigProvider interface {
	Config() *config.Config
}

// Reloader can reload its configuration.
type Reloader interface {
	Reload() error
}

// PipelineProvider provides access to the pipeline being served.
type PipelineProvider interface {
	Pipeline() *pipeline.Pipeline
}

// PipelineRunner can start pipeline runs.
type PipelineRunner interface {
	Run(trigger string) error
}

// RunStatusProvider provides access to run status.
type RunStatusProvider interface {
	Status() runner.RunStatus
}

// HistoryProvider provides access to run history.
type HistoryProvider interface {
	History() []runner.RunSummary
	Nodes(id string) ([]runner.NodeExecution, error)
}

// ScheduleProvider reports the triggers of the served pipeline and when it runs next.
type ScheduleProvider interface {
	Triggers() []schedule.Trigger
	NextRun() *time.Time
}

// InstrumentsProvider is implemented by providers whose workflow builds are recorded.
type InstrumentsProvider interface {
	Instruments() *metrics.Instruments
}
