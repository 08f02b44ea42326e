// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package runtime defines the container runtime contract the Service
// Controller depends on (spec.md §4.4), and a Docker-backed implementation
// of it.
package runtime

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get/Logs/Start/Stop/Restart/Remove when no
// container matches the requested name.
var ErrNotFound = errors.New("runtime: container not found")

// Health mirrors a container's Docker HEALTHCHECK status, when declared.
type Health string

const (
	HealthNone      Health = ""
	HealthHealthy   Health = "healthy"
	HealthUnhealthy Health = "unhealthy"
	HealthStarting  Health = "starting"
)

// Container is one runtime-reported container record, spec.md §4.4's
// RuntimeContainer.
type Container struct {
	Name      string
	ShortID   string
	Status    string // runtime status string; DockerClient fills it with State.Status
	State     string // State.Status: running|exited|paused|restarting|created|unknown
	Health    Health
	StartedAt time.Time
	FinishedAt time.Time
	ExitCode  int
	Mounts    []string
}

// UpOptions configures the higher-level batch materialisation operator.
type UpOptions struct {
	// NoDeps, when true, materialises only the named service without its
	// declared dependencies (spec.md §4.4's manual profile).
	NoDeps bool
}

// Client is the minimal set of runtime operations the Service Controller
// requires (spec.md §4.4, "out of scope" bullet 2).
type Client interface {
	List(ctx context.Context, all bool) ([]Container, error)
	Get(ctx context.Context, name string) (Container, error)
	Logs(ctx context.Context, name string, tail int) ([]byte, error)
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string, timeout time.Duration) error
	Restart(ctx context.Context, name string, timeout time.Duration) error
	Remove(ctx context.Context, name string, force, stopFirst bool) error
	Up(ctx context.Context, name string, opts UpOptions) error
}
