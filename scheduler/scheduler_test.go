package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomis52/pipeflow/workflow"
)

// graph builds a workflow from "A->B" style edges; isolated nodes are listed alone.
func graph(t *testing.T, nodes []string, edges ...[2]string) *workflow.Workflow {
	t.Helper()
	w := workflow.New()
	for _, n := range nodes {
		require.NoError(t, w.AddNode(n, nil))
	}
	for _, e := range edges {
		require.NoError(t, w.AddEdge(e[0], e[1]))
	}
	return w
}

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// recorder records the order nodes ran in.
type recorder struct {
	mu    sync.Mutex
	order []string
	fail  map[string]bool
}

func (r *recorder) run(_ context.Context, n *workflow.Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, n.Name)
	if r.fail[n.Name] {
		return errors.New("boom")
	}
	return nil
}

func (r *recorder) index(name string) int {
	for i, n := range r.order {
		if n == name {
			return i
		}
	}
	return -1
}

func TestScheduler_Empty(t *testing.T) {
	s := New(quiet())
	require.NoError(t, s.Run(context.Background(), workflow.New(), (&recorder{}).run))
	assert.Empty(t, s.Results())
}

func TestScheduler_RespectsDependencies(t *testing.T) {
	w := graph(t, []string{"A", "B", "C", "D"}, [2]string{"A", "B"}, [2]string{"A", "C"}, [2]string{"B", "D"}, [2]string{"C", "D"})
	rec := &recorder{}
	s := New(quiet())

	require.NoError(t, s.Run(context.Background(), w, rec.run))

	require.Len(t, rec.order, 4)
	assert.Less(t, rec.index("A"), rec.index("B"))
	assert.Less(t, rec.index("A"), rec.index("C"))
	assert.Less(t, rec.index("B"), rec.index("D"))
	assert.Less(t, rec.index("C"), rec.index("D"))

	for name, res := range s.Results() {
		assert.True(t, res.IsSuccess(), name)
	}
	assert.Equal(t, []StateCount{{State: Completed, Count: 4}}, s.Summary())
}

func TestScheduler_FailureSkipsDependents(t *testing.T) {
	w := graph(t, []string{"A", "B", "C", "X"}, [2]string{"A", "B"}, [2]string{"B", "C"})
	rec := &recorder{fail: map[string]bool{"A": true}}
	s := New(quiet())

	err := s.Run(context.Background(), w, rec.run)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node A: boom")

	a, ok := s.Result("A")
	require.True(t, ok)
	assert.Equal(t, Completed, a.State)
	assert.EqualError(t, a.Error, "boom")

	for _, name := range []string{"B", "C"} {
		res, _ := s.Result(name)
		assert.Equal(t, Skipped, res.State, name)
		assert.False(t, res.IsSuccess(), name)
	}
	b, _ := s.Result("B")
	assert.Contains(t, b.Error.Error(), "predecessor A")
	c, _ := s.Result("C")
	assert.Contains(t, c.Error.Error(), "predecessor B")

	x, _ := s.Result("X")
	assert.True(t, x.IsSuccess(), "unrelated nodes still run")
	assert.ElementsMatch(t, []string{"A", "X"}, rec.order)

	assert.Equal(t, []StateCount{{State: Completed, Count: 2}, {State: Skipped, Count: 2}}, s.Summary())
}

func TestScheduler_JoinsErrors(t *testing.T) {
	w := graph(t, []string{"A", "B"})
	rec := &recorder{fail: map[string]bool{"A": true, "B": true}}

	err := New(quiet()).Run(context.Background(), w, rec.run)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node A: boom")
	assert.Contains(t, err.Error(), "node B: boom")
}

func TestScheduler_Cancellation(t *testing.T) {
	w := graph(t, []string{"A", "B", "C"}, [2]string{"A", "B"}, [2]string{"B", "C"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ran []string
	var mu sync.Mutex
	s := New(quiet())
	err := s.Run(ctx, w, func(_ context.Context, n *workflow.Node) error {
		mu.Lock()
		ran = append(ran, n.Name)
		mu.Unlock()
		if n.Name == "A" {
			cancel()
		}
		return nil
	})
	require.NoError(t, err, "skipped nodes are not errors")

	assert.Equal(t, []string{"A"}, ran)
	a, _ := s.Result("A")
	assert.True(t, a.IsSuccess())
	for _, name := range []string{"B", "C"} {
		res, _ := s.Result(name)
		assert.Equal(t, Skipped, res.State, name)
	}
	b, _ := s.Result("B")
	assert.ErrorIs(t, b.Error, context.Canceled)
}

func TestScheduler_Concurrency(t *testing.T) {
	w := graph(t, []string{"A", "B", "C", "D", "E"})

	var running, peak atomic.Int32
	s := New(quiet(), WithConcurrency(2))
	err := s.Run(context.Background(), w, func(context.Context, *workflow.Node) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Len(t, s.Results(), 5)
}

func TestScheduler_RunResetsResults(t *testing.T) {
	s := New(quiet())
	require.NoError(t, s.Run(context.Background(), graph(t, []string{"A"}), (&recorder{}).run))
	require.NoError(t, s.Run(context.Background(), graph(t, []string{"B"}), (&recorder{}).run))

	_, ok := s.Result("A")
	assert.False(t, ok)
	_, ok = s.Result("B")
	assert.True(t, ok)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "not_started", NotStarted.String())
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "skipped", Skipped.String())
	assert.Equal(t, "completed", Completed.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.True(t, Skipped.IsFinal())
	assert.False(t, Running.IsFinal())
}
