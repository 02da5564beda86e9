// Package schedule parses cron trigger declarations that say when pipelines should run.
//
// A trigger declaration names one or more pipelines and a five field cron expression:
//
//	render,encode:0 2 * * *;thumbnails:30 * * * *
//
// Triggers are separated by ";", the pipeline list from the expression by ":".
package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	triggerSeparator      = ";"
	pipelineSeparator     = ":"
	pipelineListSeparator = ","
)

// ErrInvalidSchedule is returned when a cron expression or trigger declaration cannot be parsed.
var ErrInvalidSchedule = errors.New("invalid schedule")

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Schedule is a parsed cron expression.
type Schedule struct {
	spec     string
	schedule cron.Schedule
}

// Parse parses a standard five field cron expression.
func Parse(spec string) (*Schedule, error) {
	spec = strings.TrimSpace(spec)
	s, err := parser.Parse(spec)
	if err != nil {
		return nil, errors.Join(ErrInvalidSchedule, err)
	}
	return &Schedule{spec: spec, schedule: s}, nil
}

// String returns the cron expression.
func (s *Schedule) String() string {
	return s.spec
}

// Next returns the first activation time strictly after from.
func (s *Schedule) Next(from time.Time) time.Time {
	return s.schedule.Next(from)
}

// Trigger binds a schedule to the pipelines it starts.
type Trigger struct {
	Pipelines []string
	Schedule  *Schedule
}

// ParseTriggers parses a trigger declaration. Every pipeline name must be in available.
func ParseTriggers(spec string, available map[string]bool) ([]Trigger, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("%w: empty trigger declaration", ErrInvalidSchedule)
	}

	parts := strings.Split(spec, triggerSeparator)
	triggers := make([]Trigger, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		t, err := parseTrigger(part, available)
		if err != nil {
			return nil, err
		}
		triggers = append(triggers, t)
	}

	if len(triggers) == 0 {
		return nil, fmt.Errorf("%w: no triggers in %q", ErrInvalidSchedule, spec)
	}
	return triggers, nil
}

func parseTrigger(s string, available map[string]bool) (Trigger, error) {
	parts := strings.Split(s, pipelineSeparator)
	if len(parts) != 2 {
		return Trigger{}, fmt.Errorf("%w: expected 'pipelines:cron', got %q", ErrInvalidSchedule, s)
	}

	names := strings.TrimSpace(parts[0])
	expr := strings.TrimSpace(parts[1])
	if names == "" {
		return Trigger{}, fmt.Errorf("%w: missing pipelines in %q", ErrInvalidSchedule, s)
	}
	if expr == "" {
		return Trigger{}, fmt.Errorf("%w: missing cron expression in %q", ErrInvalidSchedule, s)
	}

	var pipelines []string
	seen := make(map[string]bool)
	for _, name := range strings.Split(names, pipelineListSeparator) {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if seen[name] {
			return Trigger{}, fmt.Errorf("%w: duplicate pipeline %q in %q", ErrInvalidSchedule, name, s)
		}
		seen[name] = true
		if !available[name] {
			return Trigger{}, fmt.Errorf("%w: unknown pipeline %q in %q (available: %s)",
				ErrInvalidSchedule, name, s, formatAvailable(available))
		}
		pipelines = append(pipelines, name)
	}
	if len(pipelines) == 0 {
		return Trigger{}, fmt.Errorf("%w: no pipelines in %q", ErrInvalidSchedule, s)
	}

	sched, err := Parse(expr)
	if err != nil {
		return Trigger{}, fmt.Errorf("cron expression in %q: %w", s, err)
	}
	return Trigger{Pipelines: pipelines, Schedule: sched}, nil
}

// NextRun returns the earliest time after from at which any trigger starts pipeline.
func NextRun(triggers []Trigger, pipeline string, from time.Time) (time.Time, bool) {
	var next time.Time
	found := false
	for _, t := range triggers {
		for _, p := range t.Pipelines {
			if p != pipeline {
				continue
			}
			n := t.Schedule.Next(from)
			if !found || n.Before(next) {
				next = n
				found = true
			}
		}
	}
	return next, found
}

func formatAvailable(available map[string]bool) string {
	names := make([]string, 0, len(available))
	for n := range available {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
