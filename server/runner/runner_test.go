package runner

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomis52/pipeflow/pipeline"
)

type testProcess []pipeline.PortSpec

func (t testProcess) Ports() []pipeline.PortSpec { return t }

type staticProvider struct {
	p *pipeline.Pipeline
}

func (s staticProvider) Pipeline() *pipeline.Pipeline { return s.p }

// linear builds load -> blur -> save.
func linear(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	p := pipeline.New("render")
	require.NoError(t, p.AddProcess("load", testProcess{{Name: "out", Output: true}}))
	require.NoError(t, p.AddProcess("blur", testProcess{{Name: "in"}, {Name: "out", Output: true}}))
	require.NoError(t, p.AddProcess("save", testProcess{{Name: "in"}}))
	require.NoError(t, p.LinkSpec("load.out->blur.in"))
	require.NoError(t, p.LinkSpec("blur.out->save.in"))
	return p
}

func TestRunner_Run(t *testing.T) {
	r := New(discardLogger(), staticProvider{linear(t)})
	assert.False(t, r.IsRunning())

	require.NoError(t, r.Run("manual"))
	r.Wait()

	status := r.Status()
	assert.Equal(t, RunStateIdle, status.State)
	assert.Equal(t, "render", status.Pipeline)
	assert.Equal(t, "manual", status.Trigger)
	assert.NotEmpty(t, status.Fingerprint)
	assert.Empty(t, status.Error)
	require.NotNil(t, status.EndedAt)

	require.Len(t, status.Nodes, 3)
	assert.Equal(t, "blur", status.Nodes[0].Node)
	for _, n := range status.Nodes {
		assert.Equal(t, "completed", n.State, n.Node)
		assert.Equal(t, "dispatched", n.Status, n.Node)
		require.Len(t, n.Logs, 2, n.Node)
		assert.Equal(t, "dispatching node", n.Logs[0].Message)
		assert.Equal(t, "dispatched", n.Logs[1].Message)
	}
	assert.Equal(t, "in", status.Nodes[0].Logs[0].Attributes["inputs"])

	history := r.History()
	require.Len(t, history, 1)
	assert.Equal(t, status.ID, history[0].ID)

	nodes, err := r.Nodes(status.ID)
	require.NoError(t, err)
	assert.Len(t, nodes, 3)

	_, err = r.Nodes("nope")
	assert.ErrorIs(t, err, ErrUnknownRun)
}

func TestRunner_Failure(t *testing.T) {
	r := New(discardLogger(), staticProvider{linear(t)}, WithDispatcher(func(_ context.Context, d Dispatch) error {
		if d.Node.Name == "blur" {
			return errors.New("out of memory")
		}
		return nil
	}))

	require.NoError(t, r.Run("schedule"))
	r.Wait()

	status := r.Status()
	assert.Contains(t, status.Error, "node blur: out of memory")
	states := make(map[string]string)
	for _, n := range status.Nodes {
		states[n.Node] = n.State
	}
	assert.Equal(t, map[string]string{"load": "completed", "blur": "completed", "save": "skipped"}, states)
}

func TestRunner_RejectsConcurrentRun(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	r := New(discardLogger(), staticProvider{linear(t)}, WithDispatcher(func(_ context.Context, d Dispatch) error {
		d.SetStatus("waiting for release")
		once.Do(func() { close(started) })
		<-release
		return nil
	}))

	require.NoError(t, r.Run("manual"))
	<-started
	assert.True(t, r.IsRunning())
	assert.ErrorIs(t, r.Run("manual"), ErrRunInProgress)

	live := r.Status()
	assert.Equal(t, RunStateRunning, live.State)
	assert.Len(t, live.Nodes, 3, "live status reports every node")
	assert.Equal(t, "waiting for release", live.Nodes[1].Status, "load reports its status while running")

	close(release)
	r.Wait()
	assert.False(t, r.IsRunning())
	assert.Len(t, r.History(), 1)
}

func TestRunner_RunAndWait(t *testing.T) {
	r := New(discardLogger(), staticProvider{linear(t)}, WithConcurrency(1))
	require.NoError(t, r.RunAndWait(context.Background(), "schedule"))
	assert.Len(t, r.History(), 1)

	failing := New(discardLogger(), staticProvider{linear(t)}, WithDispatcher(func(context.Context, Dispatch) error {
		return errors.New("boom")
	}))
	err := failing.RunAndWait(context.Background(), "schedule")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node load: boom")
}

func TestRunner_SelectionsApplyToNextRun(t *testing.T) {
	p := linear(t)
	r := New(discardLogger(), staticProvider{p})

	require.NoError(t, p.SetEnabled("blur", false))
	require.NoError(t, r.RunAndWait(context.Background(), "manual"))
	assert.Empty(t, r.Status().Nodes, "nothing is activated once blur is off")

	require.NoError(t, p.SetEnabled("blur", true))
	require.NoError(t, r.RunAndWait(context.Background(), "manual"))
	assert.Len(t, r.Status().Nodes, 3)
}

func TestRunner_NoPipeline(t *testing.T) {
	r := New(discardLogger(), staticProvider{})
	err := r.RunAndWait(context.Background(), "manual")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no pipeline available")
}

func TestStatusReporter(t *testing.T) {
	r := NewStatusReporter()
	assert.Empty(t, r.Status("load"))

	r.SetStatus("load", "reading frames")
	r.SetStatus("load", "frames read")
	r.SetStatus("save", "writing")
	assert.Equal(t, "frames read", r.Status("load"))

	statuses := r.CurrentStatuses()
	assert.Equal(t, map[string]string{"load": "frames read", "save": "writing"}, statuses)
	statuses["load"] = "modified"
	assert.Equal(t, "frames read", r.Status("load"), "CurrentStatuses returns a copy")
}
