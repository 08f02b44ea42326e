// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/loopcast/loopcast/internal/log"
	"github.com/loopcast/loopcast/internal/manifest"
	"github.com/loopcast/loopcast/internal/normalize"
	"github.com/loopcast/loopcast/internal/runtime"
)

// Action is the requested async operation, spec.md §4.4 op 4.
type Action string

const (
	ActionStart          Action = "start"
	ActionStop           Action = "stop"
	ActionRestart        Action = "restart"
	ActionCreateAndStart Action = "create_and_start"
)

// ackState is the immediate acknowledgement state returned for an Action.
func (a Action) ackState() string {
	switch a {
	case ActionStart:
		return "starting"
	case ActionStop:
		return "stopping"
	case ActionRestart:
		return "restarting"
	case ActionCreateAndStart:
		return "creating"
	default:
		return "unknown"
	}
}

// StopTimeout bounds graceful stop/restart before the runtime forces a kill.
const StopTimeout = 10 * time.Second

// ManifestSource supplies the current declarative service set; satisfied by
// *manifest.Watcher.
type ManifestSource interface {
	Services() []manifest.ServiceDescriptor
}

// staticManifest adapts a fixed slice to ManifestSource, for callers that
// don't need hot reload (e.g. tests).
type staticManifest []manifest.ServiceDescriptor

func (s staticManifest) Services() []manifest.ServiceDescriptor { return s }

// NewStaticManifest wraps a fixed service set as a ManifestSource.
func NewStaticManifest(services []manifest.ServiceDescriptor) ManifestSource {
	return staticManifest(services)
}

type job struct {
	action    Action
	shortName string
}

// Controller is the Service Controller, spec.md §4.4.
type Controller struct {
	manifest ManifestSource
	client   runtime.Client

	jobs    chan job
	wg      sync.WaitGroup
	closeMu sync.Mutex
	closed  bool

	now func() time.Time
}

// New constructs a Controller backed by client, draining async operations on
// workerCount background goroutines (grounded on the teacher's orchestrator
// worker-pool shape, generalized from session-pipeline intents to container
// lifecycle operations).
func New(ms ManifestSource, client runtime.Client, workerCount int) *Controller {
	if workerCount <= 0 {
		workerCount = 2
	}
	c := &Controller{
		manifest: ms,
		client:   client,
		jobs:     make(chan job, 64),
		now:      time.Now,
	}
	for i := 0; i < workerCount; i++ {
		c.wg.Add(1)
		go c.worker()
	}
	return c
}

// Close stops accepting new async operations and waits for in-flight ones to
// finish.
func (c *Controller) Close() {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return
	}
	c.closed = true
	close(c.jobs)
	c.closeMu.Unlock()
	c.wg.Wait()
}

// findDescriptor looks up a manifest entry by short name. Matching is
// normalized (trimmed, case-folded) so a route path param that differs only
// in casing or trailing whitespace from the manifest still resolves.
func (c *Controller) findDescriptor(shortName string) (manifest.ServiceDescriptor, bool) {
	want := normalize.Token(shortName)
	for _, d := range c.manifest.Services() {
		if normalize.Token(d.ShortName) == want {
			return d, true
		}
	}
	return manifest.ServiceDescriptor{}, false
}

// ListServices merges the declarative manifest with the runtime list
// (spec.md §4.4 op 1). Runtime failures degrade every entry to
// lifecycle=unknown with warning=true; it never raises.
func (c *Controller) ListServices(ctx context.Context) (statuses []ServiceStatus, warning bool) {
	descriptors := c.manifest.Services()
	containers, err := c.client.List(ctx, true)
	if err != nil {
		logger := log.WithComponent("services")
		logger.Warn().Err(err).Msg("runtime list failed, degrading to unknown lifecycle")
		out := make([]ServiceStatus, 0, len(descriptors))
		for _, d := range descriptors {
			out = append(out, ServiceStatus{
				ShortName:   d.ShortName,
				RuntimeName: d.RuntimeName,
				Lifecycle:   LifecycleUnknown,
				Detail:      capitalize(string(LifecycleUnknown)),
			})
		}
		return out, true
	}

	byName := make(map[string]runtime.Container, len(containers))
	for _, ct := range containers {
		byName[ct.Name] = ct
	}

	out := make([]ServiceStatus, 0, len(descriptors))
	for _, d := range descriptors {
		ct, ok := byName[d.RuntimeName]
		if !ok {
			out = append(out, ServiceStatus{
				ShortName:   d.ShortName,
				RuntimeName: d.RuntimeName,
				Lifecycle:   LifecycleNotCreated,
				Detail:      capitalize(string(LifecycleNotCreated)),
			})
			continue
		}
		out = append(out, c.statusFromContainer(d, ct))
	}
	return out, false
}

// Status returns one service's current state directly from the runtime,
// raising ErrNotFound if no runtime container matches (spec.md §4.4 op 2).
func (c *Controller) Status(ctx context.Context, shortName string) (ServiceStatus, error) {
	d, ok := c.findDescriptor(shortName)
	if !ok {
		return ServiceStatus{}, ErrNotFound
	}
	ct, err := c.client.Get(ctx, d.RuntimeName)
	if err != nil {
		if err == runtime.ErrNotFound {
			return ServiceStatus{}, ErrNotFound
		}
		return ServiceStatus{}, err
	}
	return c.statusFromContainer(d, ct), nil
}

func (c *Controller) statusFromContainer(d manifest.ServiceDescriptor, ct runtime.Container) ServiceStatus {
	lifecycle := normalizeLifecycle(ct.State)
	var health Health
	if lifecycle == LifecycleRunning {
		health = normalizeHealth(ct.Health)
	}
	startedAt := optionalTime(ct.StartedAt)
	finishedAt := optionalTime(ct.FinishedAt)
	return ServiceStatus{
		ShortName:   d.ShortName,
		RuntimeName: d.RuntimeName,
		Lifecycle:   lifecycle,
		Health:      health,
		StartedAt:   startedAt,
		FinishedAt:  finishedAt,
		Detail:      detailString(lifecycle, health, startedAt, finishedAt, ct.ExitCode, c.now()),
	}
}

func normalizeLifecycle(state string) Lifecycle {
	switch strings.ToLower(state) {
	case "running":
		return LifecycleRunning
	case "exited", "dead":
		return LifecycleExited
	case "paused":
		return LifecyclePaused
	case "restarting":
		return LifecycleRestarting
	case "created":
		return LifecycleCreated
	case "":
		return LifecycleUnknown
	default:
		return LifecycleUnknown
	}
}

func normalizeHealth(h runtime.Health) Health {
	switch h {
	case runtime.HealthHealthy:
		return HealthHealthy
	case runtime.HealthUnhealthy:
		return HealthUnhealthy
	case runtime.HealthStarting:
		return HealthStarting
	default:
		return ""
	}
}

// Logs fetches and splits the tail of a service's combined log stream
// (spec.md §4.4 op 3).
func (c *Controller) Logs(ctx context.Context, shortName string, tail int) (LogResult, error) {
	d, ok := c.findDescriptor(shortName)
	if !ok {
		return LogResult{}, ErrNotFound
	}
	data, err := c.client.Logs(ctx, d.RuntimeName, tail)
	if err != nil {
		if err == runtime.ErrNotFound {
			return LogResult{}, ErrNotFound
		}
		return LogResult{}, err
	}
	lines := make([]string, 0, tail)
	for _, l := range strings.Split(string(data), "\n") {
		if l == "" {
			continue
		}
		lines = append(lines, l)
	}
	return LogResult{Lines: lines, Count: len(lines)}, nil
}

// Ack is the immediate response to an async operation request.
type Ack struct {
	State   string `json:"state"`
	Service string `json:"service"`
}

// Start/Stop/Restart/CreateAndStart enqueue the operation on the background
// worker pool and return immediately (spec.md §4.4 op 4). The short name is
// not validated against the manifest synchronously — an unknown service
// simply fails (and logs) on the worker, consistent with "failures never
// propagate back to the caller".
func (c *Controller) Start(shortName string) Ack          { return c.enqueue(ActionStart, shortName) }
func (c *Controller) Stop(shortName string) Ack           { return c.enqueue(ActionStop, shortName) }
func (c *Controller) Restart(shortName string) Ack        { return c.enqueue(ActionRestart, shortName) }
func (c *Controller) CreateAndStart(shortName string) Ack { return c.enqueue(ActionCreateAndStart, shortName) }

func (c *Controller) enqueue(action Action, shortName string) Ack {
	ack := Ack{State: action.ackState(), Service: shortName}
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return ack
	}
	select {
	case c.jobs <- job{action: action, shortName: shortName}:
	default:
		log.WithComponent("services").Warn().
			Str("service", shortName).Str("action", string(action)).
			Msg("worker queue full, dropping async operation")
	}
	return ack
}

func (c *Controller) worker() {
	defer c.wg.Done()
	for j := range c.jobs {
		c.run(j)
	}
}

func (c *Controller) run(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := log.WithComponent("services").With().
		Str("service", j.shortName).Str("action", string(j.action)).Logger()

	d, ok := c.findDescriptor(j.shortName)
	if !ok {
		logger.Warn().Msg("unknown service, dropping operation")
		return
	}

	var err error
	switch j.action {
	case ActionStart:
		err = c.client.Start(ctx, d.RuntimeName)
		if needsRecreation(err) {
			logger.Warn().Err(err).Msg("start failed with stale-state signature, recreating")
			err = c.recreate(ctx, d)
		}
	case ActionStop:
		err = c.client.Stop(ctx, d.RuntimeName, StopTimeout)
	case ActionRestart:
		err = c.client.Restart(ctx, d.RuntimeName, StopTimeout)
		if needsRecreation(err) {
			logger.Warn().Err(err).Msg("restart failed with stale-state signature, recreating")
			err = c.recreate(ctx, d)
		}
	case ActionCreateAndStart:
		err = c.client.Up(ctx, d.RuntimeName, runtime.UpOptions{NoDeps: d.IsManual})
	}

	if err != nil {
		logger.Error().Err(err).Msg("async service operation failed")
	} else {
		logger.Info().Msg("async service operation completed")
	}
}

func (c *Controller) recreate(ctx context.Context, d manifest.ServiceDescriptor) error {
	_ = c.client.Remove(ctx, d.RuntimeName, true, true)
	return c.client.Up(ctx, d.RuntimeName, runtime.UpOptions{NoDeps: d.IsManual})
}
