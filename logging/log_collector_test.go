package logging

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(msg string) LogEntry {
	return LogEntry{Time: time.Now(), Level: "INFO", Message: msg, Attributes: map[string]interface{}{}}
}

func TestLogCollector_AddAndGet(t *testing.T) {
	collector := NewLogCollector()
	collector.AddLog("render", entry("first"))
	collector.AddLog("render", entry("second"))
	collector.AddLog("encode", entry("other"))

	logs := collector.Logs("render")
	require.Len(t, logs, 2)
	assert.Equal(t, "first", logs[0].Message)
	assert.Equal(t, "second", logs[1].Message)

	assert.Nil(t, collector.Logs("missing"))
	assert.Equal(t, []string{"encode", "render"}, collector.Scopes())
}

func TestLogCollector_LogsReturnsCopy(t *testing.T) {
	collector := NewLogCollector()
	collector.AddLog("render", entry("original"))

	logs := collector.Logs("render")
	logs[0].Message = "modified"

	assert.Equal(t, "original", collector.Logs("render")[0].Message)
}

func TestLogCollector_Clear(t *testing.T) {
	collector := NewLogCollector()
	collector.AddLog("render", entry("message"))

	collector.Clear()

	assert.Empty(t, collector.Scopes())
	assert.Nil(t, collector.Logs("render"))
}

func TestLogCollector_WriteTo(t *testing.T) {
	collector := NewLogCollector()
	collector.AddLog("render", LogEntry{Level: "DEBUG", Message: "node pruned", Attributes: map[string]interface{}{
		"node":      "blur",
		"component": "pipeline",
	}})
	collector.AddLog("encode", LogEntry{Level: "INFO", Message: "workflow built", Attributes: map[string]interface{}{}})

	var buf bytes.Buffer
	n, err := collector.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Equal(t, "[encode]\n"+
		"  INFO  workflow built\n"+
		"[render]\n"+
		"  DEBUG node pruned component=pipeline node=blur\n", buf.String())
}

func TestLogCollector_Concurrent(t *testing.T) {
	collector := NewLogCollector()
	scopes := []string{"a", "b", "c"}

	var wg sync.WaitGroup
	for _, scope := range scopes {
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(scope string) {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					collector.AddLog(scope, entry("message"))
				}
			}(scope)
		}
	}
	wg.Wait()

	for _, scope := range scopes {
		assert.Len(t, collector.Logs(scope), 100, scope)
	}
}
