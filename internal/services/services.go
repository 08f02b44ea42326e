// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package services implements the Service Controller (spec.md §4.4): it
// owns the managed container fleet, merging the declarative manifest with
// runtime-observed lifecycle state, and executes start/stop/restart/create
// operations asynchronously on a background worker pool.
package services

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Lifecycle mirrors spec.md §3's ServiceStatus.lifecycle enum.
type Lifecycle string

const (
	LifecycleNotCreated Lifecycle = "not-created"
	LifecycleCreated    Lifecycle = "created"
	LifecycleRunning    Lifecycle = "running"
	LifecycleExited     Lifecycle = "exited"
	LifecyclePaused     Lifecycle = "paused"
	LifecycleRestarting Lifecycle = "restarting"
	LifecycleUnknown    Lifecycle = "unknown"
)

// Health mirrors spec.md §3's optional ServiceStatus.health.
type Health string

const (
	HealthHealthy   Health = "healthy"
	HealthUnhealthy Health = "unhealthy"
	HealthStarting  Health = "starting"
)

// ErrNotFound is raised by Status when no runtime container exists for the
// requested service, distinct from the not-created lifecycle ListServices
// reports for the same situation (spec.md §4.4 op 2).
var ErrNotFound = errors.New("services: not found")

// ServiceStatus is spec.md §3's ServiceStatus record.
type ServiceStatus struct {
	ShortName   string     `json:"short_name"`
	RuntimeName string     `json:"runtime_name"`
	Lifecycle   Lifecycle  `json:"lifecycle"`
	Health      Health     `json:"health,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Detail      string     `json:"detail"`
}

// LogResult is the logs() response shape, spec.md §4.4 op 3.
type LogResult struct {
	Lines []string `json:"lines"`
	Count int      `json:"count"`
}

// recreationPhraseSets: every phrase in a set must appear (case-insensitive)
// in a start failure's error text to trigger automatic remove+recreate
// (spec.md §4.4's recreation heuristic). Order matches the spec table.
var recreationPhraseSets = [][]string{
	{"network", "not found"},
	{"failed to set up container networking"},
	{"error response from daemon", "network"},
	{"error mounting"},
	{"failed to create task for container"},
	{"error during container init"},
	{"not a directory", "mount"},
	{"are you trying to mount a directory onto a file"},
	{"oci runtime create failed"},
	{"unable to start container process"},
}

func needsRecreation(err error) bool {
	if err == nil {
		return false
	}
	text := strings.ToLower(err.Error())
	for _, set := range recreationPhraseSets {
		matched := true
		for _, phrase := range set {
			if !strings.Contains(text, phrase) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

func isUnset(t time.Time) bool {
	return t.IsZero() || t.Unix() <= 0 || t.Year() <= 1
}

func optionalTime(t time.Time) *time.Time {
	if isUnset(t) {
		return nil
	}
	out := t
	return &out
}

// humanDelta renders the coarsest of {seconds|minutes|hours|days} whose
// value is >= 1, singular/plural as appropriate (spec.md §4.4's detail-
// string table).
func humanDelta(since time.Time, now time.Time) string {
	d := now.Sub(since)
	if d < 0 {
		d = 0
	}
	switch {
	case d >= 24*time.Hour:
		n := int(d / (24 * time.Hour))
		return pluralize(n, "day")
	case d >= time.Hour:
		n := int(d / time.Hour)
		return pluralize(n, "hour")
	case d >= time.Minute:
		n := int(d / time.Minute)
		return pluralize(n, "minute")
	default:
		n := int(d / time.Second)
		return pluralize(n, "second")
	}
}

func pluralize(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// detailString derives spec.md §4.4's detail-string table.
func detailString(lifecycle Lifecycle, health Health, startedAt, finishedAt *time.Time, exitCode int, now time.Time) string {
	switch lifecycle {
	case LifecycleRunning:
		delta := ""
		if startedAt != nil {
			delta = humanDelta(*startedAt, now)
		}
		switch health {
		case HealthHealthy:
			return fmt.Sprintf("Up %s (healthy)", delta)
		case HealthUnhealthy:
			return fmt.Sprintf("Up %s (unhealthy)", delta)
		case HealthStarting:
			return fmt.Sprintf("Up %s (health: starting)", delta)
		default:
			return fmt.Sprintf("Up %s", delta)
		}
	case LifecycleExited:
		delta := ""
		if finishedAt != nil {
			delta = humanDelta(*finishedAt, now)
		}
		return fmt.Sprintf("Exited (%d) %s ago", exitCode, delta)
	default:
		return capitalize(string(lifecycle))
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
