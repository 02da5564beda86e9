package logging

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// LogEntry represents a single log record with structured data.
type LogEntry struct {
	Time       time.Time              `json:"time" yaml:"time"`
	Level      string                 `json:"level" yaml:"level"`
	Message    string                 `json:"message" yaml:"message"`
	Attributes map[string]interface{} `json:"attributes" yaml:"attributes"`
}

// String renders the entry on one line with attributes in key order.
func (e LogEntry) String() string {
	keys := make([]string, 0, len(e.Attributes))
	for k := range e.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s := fmt.Sprintf("%-5s %s", e.Level, e.Message)
	for _, k := range keys {
		s += fmt.Sprintf(" %s=%v", k, e.Attributes[k])
	}
	return s
}

// LogCollector provides thread-safe storage for captured logs, grouped by scope.
type LogCollector struct {
	mu   sync.RWMutex
	logs map[string][]LogEntry
}

// NewLogCollector creates a new LogCollector.
func NewLogCollector() *LogCollector {
	return &LogCollector{
		logs: make(map[string][]LogEntry),
	}
}

// AddLog adds a log entry for the specified scope.
func (c *LogCollector) AddLog(scope string, entry LogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logs[scope] = append(c.logs[scope], entry)
}

// Logs returns a copy of the entries captured for scope, or nil if there are none.
func (c *LogCollector) Logs(scope string) []LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	logs, exists := c.logs[scope]
	if !exists {
		return nil
	}

	result := make([]LogEntry, len(logs))
	copy(result, logs)
	return result
}

// Scopes returns every scope with captured entries, in order.
func (c *LogCollector) Scopes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	scopes := make([]string, 0, len(c.logs))
	for s := range c.logs {
		scopes = append(scopes, s)
	}
	sort.Strings(scopes)
	return scopes
}

// WriteTo writes every captured entry grouped by scope, scopes in order.
func (c *LogCollector) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, scope := range c.Scopes() {
		n, err := fmt.Fprintf(w, "[%s]\n", scope)
		total += int64(n)
		if err != nil {
			return total, err
		}
		for _, entry := range c.Logs(scope) {
			n, err := fmt.Fprintf(w, "  %s\n", entry)
			total += int64(n)
			if err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// Clear resets the log collector, removing all stored logs.
func (c *LogCollector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logs = make(map[string][]LogEntry)
}
