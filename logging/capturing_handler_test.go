package logging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapturingHandler_Enabled(t *testing.T) {
	underlying := slog.NewJSONHandler(bytes.NewBuffer(nil), &slog.HandlerOptions{Level: slog.LevelError})
	handler := NewCapturingHandler(underlying, NewLogCollector(), "render")

	ctx := context.Background()
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		assert.True(t, handler.Enabled(ctx, level), level.String())
	}
}

func TestCapturingHandler_CapturesAndPassesThrough(t *testing.T) {
	collector := NewLogCollector()
	var buf bytes.Buffer
	handler := NewCapturingHandler(slog.NewJSONHandler(&buf, nil), collector, "render")

	logger := slog.New(handler)
	logger.Info("node pruned", "node", "blur", "waves", 2)

	logs := collector.Logs("render")
	require.Len(t, logs, 1)
	assert.Equal(t, "INFO", logs[0].Level)
	assert.Equal(t, "node pruned", logs[0].Message)
	assert.Equal(t, "blur", logs[0].Attributes["node"])
	assert.Equal(t, int64(2), logs[0].Attributes["waves"])

	assert.Contains(t, buf.String(), "node pruned")
}

func TestCapturingHandler_UnderlyingLevelRespected(t *testing.T) {
	collector := NewLogCollector()
	var buf bytes.Buffer
	underlying := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := slog.New(NewCapturingHandler(underlying, collector, "render"))

	logger.Debug("activation complete")
	logger.Info("workflow built")

	logs := collector.Logs("render")
	require.Len(t, logs, 2, "every level is captured")
	assert.Equal(t, "DEBUG", logs[0].Level)
	assert.NotContains(t, buf.String(), "activation complete", "debug is not printed at info level")
	assert.Contains(t, buf.String(), "workflow built")
}

func TestCapturingHandler_WithAttrs(t *testing.T) {
	collector := NewLogCollector()
	logger := slog.New(NewCapturingHandler(slog.NewJSONHandler(bytes.NewBuffer(nil), nil), collector, "render"))

	derived := logger.With("component", "pipeline").With("pipeline", "render")
	_, ok := derived.Handler().(*CapturingHandler)
	require.True(t, ok, "With must keep the capturing handler")

	derived.Info("activation complete", "activated", 3)

	logs := collector.Logs("render")
	require.Len(t, logs, 1)
	assert.Equal(t, map[string]interface{}{
		"component": "pipeline",
		"pipeline":  "render",
		"activated": int64(3),
	}, logs[0].Attributes)
}

func TestCapturingHandler_WithGroup(t *testing.T) {
	collector := NewLogCollector()
	logger := slog.New(NewCapturingHandler(slog.NewJSONHandler(bytes.NewBuffer(nil), nil), collector, "render"))

	grouped := logger.With("component", "workflow").WithGroup("build").With("nodes", 4)
	_, ok := grouped.Handler().(*CapturingHandler)
	require.True(t, ok)

	grouped.Info("workflow built", "edges", 3)

	logs := collector.Logs("render")
	require.Len(t, logs, 1)
	assert.Equal(t, "workflow", logs[0].Attributes["component"])
	assert.Equal(t, int64(4), logs[0].Attributes["build.nodes"])
	assert.Equal(t, int64(3), logs[0].Attributes["build.edges"])
}

func TestCapturingHandler_ValueKinds(t *testing.T) {
	collector := NewLogCollector()
	logger := slog.New(NewCapturingHandler(slog.NewJSONHandler(bytes.NewBuffer(nil), nil), collector, "render"))

	now := time.Now()
	logger.Info("kinds",
		"float", 1.5,
		"bool", true,
		"duration", 2*time.Second,
		"time", now,
		"uint", uint64(7),
		"error", errors.New("cycle"),
		slog.Group("counts", "nodes", 2),
		"any", []string{"a"},
	)

	attrs := collector.Logs("render")[0].Attributes
	assert.Equal(t, 1.5, attrs["float"])
	assert.Equal(t, true, attrs["bool"])
	assert.Equal(t, "2s", attrs["duration"])
	assert.True(t, now.Equal(attrs["time"].(time.Time)))
	assert.Equal(t, uint64(7), attrs["uint"])
	assert.Equal(t, "cycle", attrs["error"])
	assert.Equal(t, map[string]interface{}{"nodes": int64(2)}, attrs["counts"])
	assert.Equal(t, []string{"a"}, attrs["any"])
}

func TestCapturingHandler_ConcurrentLogging(t *testing.T) {
	collector := NewLogCollector()
	logger := slog.New(NewCapturingHandler(slog.NewJSONHandler(bytes.NewBuffer(nil), nil), collector, "render"))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				logger.Info(fmt.Sprintf("message %d-%d", i, j))
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, collector.Logs("render"), 100)
}
