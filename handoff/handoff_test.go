package handoff

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/nomis52/pipeflow/pipeline"
	"github.com/nomis52/pipeflow/schedule"
	"github.com/nomis52/pipeflow/workflow"
)

type testProcess []pipeline.PortSpec

func (t testProcess) Ports() []pipeline.PortSpec { return t }

var (
	source = testProcess{{Name: "out", Output: true}}
	filter = testProcess{{Name: "in"}, {Name: "out", Output: true}}
	sink   = testProcess{{Name: "in"}}
	clock  = func() time.Time { return time.Date(2024, 3, 10, 1, 0, 0, 0, time.UTC) }
)

func fixedID(id string) Option {
	return func(o *options) {
		o.newID = func() string { return id }
	}
}

// renderPipeline builds load -> fx(blur) -> save with an unused "strength" parameter.
func renderPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	fx := pipeline.New("effects")
	require.NoError(t, fx.AddProcess("blur", filter))
	require.NoError(t, fx.ExportUnlinked())

	p := pipeline.New("render")
	require.NoError(t, p.AddInput("strength", true))
	require.NoError(t, p.AddProcess("load", source))
	require.NoError(t, p.AddProcess("fx", fx))
	require.NoError(t, p.AddProcess("save", sink))
	require.NoError(t, p.LinkSpec("load.out->fx.in"))
	require.NoError(t, p.LinkSpec("fx.out->save.in"))
	return p
}

func TestNew(t *testing.T) {
	p := renderPipeline(t)
	w, err := workflow.Build(p)
	require.NoError(t, err)

	triggers, err := schedule.ParseTriggers("render:0 2 * * *;other:0 0 * * *", map[string]bool{"render": true, "other": true})
	require.NoError(t, err)

	d := New("render", w, WithClock(clock), WithTriggers(triggers), WithSnapshot(p.Snapshot()), fixedID("build-1"))

	assert.Equal(t, "build-1", d.ID)
	assert.Equal(t, "render", d.Pipeline)
	assert.Equal(t, w.Fingerprint(), d.Fingerprint)
	assert.Equal(t, clock(), d.GeneratedAt)
	assert.Equal(t, []string{"0 2 * * *"}, d.Schedule)
	require.NotNil(t, d.NextRun)
	assert.Equal(t, time.Date(2024, 3, 10, 2, 0, 0, 0, time.UTC), *d.NextRun)

	assert.Equal(t, []Job{
		{Name: "fx.blur", Inputs: []string{"in"}, Outputs: []string{"out"}},
		{Name: "load", Outputs: []string{"out"}},
		{Name: "save", Inputs: []string{"in"}},
	}, d.Jobs)
	assert.Equal(t, []Dependency{
		{From: "fx.blur", To: "save"},
		{From: "load", To: "fx.blur"},
	}, d.Dependencies)
	assert.Equal(t, []Group{{Name: "fx", Jobs: []string{"fx.blur"}}}, d.Groups)
	assert.Equal(t, []string{"load"}, d.Head)
	assert.Equal(t, []string{"save"}, d.Tail)
	assert.Equal(t, []string{"load", "fx.blur", "save"}, d.Order)
	assert.Equal(t, []string{"strength"}, d.Hidden)
}

func TestNew_Defaults(t *testing.T) {
	d := New("empty", workflow.New())

	_, err := uuid.Parse(d.ID)
	assert.NoError(t, err, "IDs are UUIDs")
	assert.NotEqual(t, d.ID, New("empty", workflow.New()).ID)
	assert.Empty(t, d.Jobs)
	assert.NotNil(t, d.Jobs, "empty lists encode as []")
	assert.Nil(t, d.NextRun)
	assert.Empty(t, d.Schedule)
	assert.Empty(t, d.Groups)
	assert.Empty(t, d.Hidden)
}

func TestDocument_WriteJSON(t *testing.T) {
	w, err := workflow.Build(renderPipeline(t))
	require.NoError(t, err)
	d := New("render", w, WithClock(clock), fixedID("build-1"))

	var buf bytes.Buffer
	require.NoError(t, d.Write(&buf, "json"))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "build-1", decoded["id"])
	assert.Equal(t, "2024-03-10T01:00:00Z", decoded["generated_at"])
	assert.Len(t, decoded["jobs"], 3)
	assert.NotContains(t, decoded, "next_run")
	assert.NotContains(t, decoded, "hidden")
}

func TestDocument_WriteYAML(t *testing.T) {
	w, err := workflow.Build(renderPipeline(t))
	require.NoError(t, err)
	d := New("render", w, WithClock(clock), fixedID("build-1"))

	var buf bytes.Buffer
	require.NoError(t, d.Write(&buf, "yaml"))
	assert.Contains(t, buf.String(), "id: build-1\n")
	assert.Contains(t, buf.String(), "  - from: load\n    to: fx.blur\n")

	var decoded Document
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, d.Dependencies, decoded.Dependencies)
	assert.Equal(t, d.Order, decoded.Order)
}

func TestDocument_WriteUnknownFormat(t *testing.T) {
	d := New("empty", workflow.New())
	err := d.Write(&bytes.Buffer{}, "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}
