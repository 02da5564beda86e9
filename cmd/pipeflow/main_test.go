package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomis52/pipeflow/handoff"
)

const testConfig = `
logging:
  level: warn
schedule: "render:0 2 * * *"
main: render
pipelines:
  effects:
    processes:
      - name: blur
        ports: [{name: in}, {name: out, output: true}]
    export_unlinked: true
  render:
    inputs:
      - name: strength
        optional: true
    outputs: [image]
    processes:
      - name: load
        ports: [{name: out, output: true}]
      - name: fx
        pipeline: effects
      - name: sharpen
        ports: [{name: in}, {name: out, output: true}]
      - name: save
        ports: [{name: in}, {name: out, output: true}]
    switches:
      - name: mode
        options: [fx, sharpen]
        outputs: [out]
    links:
      - load.out->fx.in
      - load.out->sharpen.in
      - fx.out->mode.fx_switch_out
      - sharpen.out->mode.sharpen_switch_out
      - mode.out->save.in
      - save.out->image
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))
	return path
}

// execute runs the CLI with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "pipeflow dev"), out)

	out, _, err = execute(t, "version", "--json")
	require.NoError(t, err)
	var props map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &props))
	assert.Equal(t, "dev", props["version"])
}

func TestValidateCmd(t *testing.T) {
	path := writeTestConfig(t)
	out, _, err := execute(t, "-c", path, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration validation successful: "+path)
	assert.Contains(t, out, "  effects: 1 processes, 0 dependencies\n")
	assert.Contains(t, out, "  render (main): 3 processes, 2 dependencies\n")
}

func TestConfigRequired(t *testing.T) {
	_, _, err := execute(t, "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config flag")
}

func TestStatusCmd(t *testing.T) {
	out, _, err := execute(t, "-c", writeTestConfig(t), "status")
	require.NoError(t, err)

	assert.Contains(t, out, "pipeline render\n")
	assert.Contains(t, out, "pipeline render/fx\n")
	assert.Regexp(t, `sharpen\s+process\s+true\s+false\s+in:off out>:off`, out)
	assert.Regexp(t, `mode\s+switch\s+true\s+true\s+.*selected=fx`, out)
	assert.Regexp(t, `fx\s+sub_pipeline\s+true\s+true\s+.*pipeline=effects`, out)
	assert.Contains(t, out, "hidden parameters: strength\n")
}

func TestStatusCmd_JSON(t *testing.T) {
	out, _, err := execute(t, "-c", writeTestConfig(t), "--select", "mode=sharpen", "status", "--format", "json")
	require.NoError(t, err)

	var snap struct {
		Name  string `json:"name"`
		Nodes []struct {
			Name      string `json:"name"`
			Kind      string `json:"kind"`
			Activated bool   `json:"activated"`
		} `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, "render", snap.Name)

	activated := make(map[string]bool)
	for _, n := range snap.Nodes {
		activated[n.Name] = n.Activated
	}
	assert.True(t, activated["sharpen"])
	assert.False(t, activated["fx"])
}

func TestPlanCmd(t *testing.T) {
	out, _, err := execute(t, "-c", writeTestConfig(t), "plan")
	require.NoError(t, err)

	var doc handoff.Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "render", doc.Pipeline)
	assert.Equal(t, []string{"load", "fx.blur", "save"}, doc.Order)
	assert.Equal(t, []handoff.Dependency{
		{From: "fx.blur", To: "save"},
		{From: "load", To: "fx.blur"},
	}, doc.Dependencies)
	assert.Equal(t, []string{"0 2 * * *"}, doc.Schedule)
	assert.NotNil(t, doc.NextRun)
	assert.Equal(t, []string{"strength"}, doc.Hidden)
}

func TestPlanCmd_Overrides(t *testing.T) {
	out, _, err := execute(t, "-c", writeTestConfig(t), "--select", "mode=sharpen", "plan", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "- from: load\n    to: sharpen\n")
	assert.NotContains(t, out, "fx.blur")

	out, _, err = execute(t, "-c", writeTestConfig(t), "--disable", "fx", "plan")
	require.NoError(t, err)
	var doc handoff.Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Empty(t, doc.Jobs, "nothing reaches save once the selected branch is gone")
}

func TestStatusCmd_DisableNested(t *testing.T) {
	out, _, err := execute(t, "-c", writeTestConfig(t), "--disable", "fx.blur", "status")
	require.NoError(t, err)
	assert.Regexp(t, `blur\s+process\s+false\s+false\s+in:off out>:off`, out)
}

func TestOverrideErrors(t *testing.T) {
	path := writeTestConfig(t)
	tests := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{name: "select without option", args: []string{"--select", "mode"}, wantMsg: "expected switch=option"},
		{name: "unknown option", args: []string{"--select", "mode=blur"}, wantMsg: "unknown switch option"},
		{name: "select non-switch", args: []string{"--select", "load=x"}, wantMsg: "not a switch"},
		{name: "disable unknown", args: []string{"--disable", "nope"}, wantMsg: "unknown node"},
		{name: "unknown pipeline", args: []string{"--pipeline", "audio"}, wantMsg: "not declared"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"-c", path}, tt.args...)
			_, _, err := execute(t, append(args, "status")...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestDotCmd(t *testing.T) {
	out, _, err := execute(t, "-c", writeTestConfig(t), "dot")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "digraph \"render\" {\n  rankdir=LR;\n"), out)
	assert.Contains(t, out, "  \"fx.blur\" [label=\"blur (fx)\"];\n")
	assert.Contains(t, out, "  \"load\" -> \"fx.blur\";\n")
	assert.Contains(t, out, "  \"fx.blur\" -> \"save\";\n")
}

func TestRunCmd(t *testing.T) {
	out, _, err := execute(t, "-c", writeTestConfig(t), "run")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "run load (in: ; out: out)", lines[0])
	assert.Equal(t, "run fx.blur (in: in; out: out)", lines[1])
	assert.Equal(t, "run save (in: in; out: out)", lines[2])
	assert.Equal(t, "render: completed=3", lines[3])
}

func TestRunCmd_Failure(t *testing.T) {
	out, _, err := execute(t, "-c", writeTestConfig(t), "run", "--fail", "fx.blur")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node fx.blur")
	assert.NotContains(t, out, "run save")
	assert.Contains(t, out, "render: completed=2 skipped=1\n")
}

func TestTraceCmd(t *testing.T) {
	out, _, err := execute(t, "-c", writeTestConfig(t), "--disable", "sharpen", "trace")
	require.NoError(t, err)

	assert.Contains(t, out, "[render]\n")
	assert.Contains(t, out, "[render/fx]\n")
	assert.Contains(t, out, "[render/workflow]\n")
	assert.Contains(t, out, "DEBUG activation complete")
	assert.Contains(t, out, "DEBUG workflow built")
}

func TestMetricsFlag(t *testing.T) {
	_, stderr, err := execute(t, "-c", writeTestConfig(t), "--metrics", "plan")
	require.NoError(t, err)
	assert.Contains(t, stderr, "pipeflow_activation_runs_total{pipeline=\"render\"}")
	assert.Contains(t, stderr, "pipeflow_workflow_builds_total{pipeline=\"render\",result=\"ok\"} 1")
	assert.NotContains(t, stderr, "go_goroutines")
}

func TestPushURLFlag(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/write", r.URL.Path)
		assert.Equal(t, "snappy", r.Header.Get("Content-Encoding"))
		requests.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	_, _, err := execute(t, "-c", writeTestConfig(t), "--push-url", server.URL, "plan")
	require.NoError(t, err)
	assert.Equal(t, int32(1), requests.Load())
}

func TestWatchCmd_NoSchedule(t *testing.T) {
	_, _, err := execute(t, "-c", writeTestConfig(t), "--pipeline", "effects", "watch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no schedule configured for pipeline \"effects\"")
}

func TestServeCmd_TLSFlags(t *testing.T) {
	_, _, err := execute(t, "-c", writeTestConfig(t), "serve", "--tls-cert", "tls.crt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--tls-cert and --tls-key must be given together")
}

func TestServeCmd_UnknownPipeline(t *testing.T) {
	_, _, err := execute(t, "-c", writeTestConfig(t), "--pipeline", "audio", "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create server")
}
