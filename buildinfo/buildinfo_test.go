package buildinfo

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	p := Get()
	assert.Equal(t, "dev", p.Version)
	assert.Equal(t, "unknown", p.BuildTime)
	assert.NotEmpty(t, p.GitCommit)
	assert.Equal(t, runtime.Version(), p.GoVersion)
}

func TestProperties_String(t *testing.T) {
	p := Properties{Version: "1.2.0", GitCommit: "abc123", BuildTime: "2024-03-10", GoVersion: "go1.23.0"}
	assert.Equal(t, "pipeflow 1.2.0 (commit abc123, built 2024-03-10, go1.23.0)", p.String())
}
