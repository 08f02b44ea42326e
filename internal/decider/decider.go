// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package decider implements the hysteretic scene decision state machine
// (spec.md §4.2): it maps a stream of probe samples to scene switch
// commands, never oscillating on brief glitches.
package decider

import (
	"context"
	"time"

	"github.com/loopcast/loopcast/internal/fsm"
	"github.com/loopcast/loopcast/internal/log"
	"github.com/loopcast/loopcast/internal/probe"
	"github.com/loopcast/loopcast/internal/scene"
)

type event string

const (
	evHealthy   event = "healthy"
	evUnhealthy event = "unhealthy"
)

// Config holds the decider's hysteresis thresholds (spec.md §4.2).
type Config struct {
	MinBitrateKbps   int
	CamMissTimeout   time.Duration
	CamBackStability time.Duration
}

// Clock abstracts monotonic time for deterministic tests.
type Clock func() time.Time

// Decider is the two-state hysteresis machine described in spec.md §4.2.
// Timer bookkeeping (stableSince, lastHealthy) lives alongside the fsm
// rather than inside it: the fsm's guards decide whether a transition
// fires, and Decider decides when to offer an event.
type Decider struct {
	cfg   Config
	clock Clock
	m     *fsm.Machine[scene.Scene, event]

	stableSince *time.Time
	lastHealthy time.Time
}

// New constructs a Decider. Per spec.md §4.2's initial condition, the
// returned Decider has already computed its startup command: callers must
// read Initial() once and apply SWITCH(FALLBACK) before taking any sample.
func New(cfg Config, clock Clock) *Decider {
	if clock == nil {
		clock = time.Now
	}
	d := &Decider{cfg: cfg, clock: clock, lastHealthy: clock()}

	transitions := []fsm.Transition[scene.Scene, event]{
		{
			From:  scene.Fallback,
			Event: evHealthy,
			To:    scene.Live,
			Guard: func(_ context.Context, _ scene.Scene, _ event) error {
				return d.guardStabilityReached()
			},
		},
		{
			From:  scene.Live,
			Event: evUnhealthy,
			To:    scene.Fallback,
			Guard: func(_ context.Context, _ scene.Scene, _ event) error {
				return d.guardMissTimeoutReached()
			},
		},
	}

	m, err := fsm.New(scene.Fallback, transitions)
	if err != nil {
		// Transition table is a compile-time constant; this cannot happen.
		panic(err)
	}
	d.m = m
	return d
}

// Initial returns the scene the decider starts in. spec.md §4.2 mandates
// unconditionally commanding FALLBACK before the first sample.
func (d *Decider) Initial() scene.Scene {
	return scene.Fallback
}

// Scene returns the decider's current scene.
func (d *Decider) Scene() scene.Scene {
	return d.m.State()
}

// Update feeds one probe sample into the decider. It returns the new scene
// and true if a SWITCH command was emitted (a true scene transition);
// otherwise it returns the unchanged scene and false.
func (d *Decider) Update(ctx context.Context, s probe.StreamSample) (scene.Scene, bool) {
	healthy := s.Healthy(d.cfg.MinBitrateKbps)
	now := d.clock()
	current := d.m.State()

	switch {
	case current == scene.Fallback && healthy:
		if d.stableSince == nil {
			t := now
			d.stableSince = &t
		}
		d.lastHealthy = now
		to, err := d.m.Fire(ctx, evHealthy)
		if err != nil {
			// Guard rejected: stability window not yet satisfied.
			return current, false
		}
		d.stableSince = nil
		log.WithComponent("decider").Info().
			Str("from", string(current)).Str("to", string(to)).Msg("scene switch")
		return to, true

	case current == scene.Fallback && !healthy:
		d.stableSince = nil
		return current, false

	case current == scene.Live && healthy:
		d.lastHealthy = now
		d.stableSince = nil
		return current, false

	default: // current == Live && !healthy
		to, err := d.m.Fire(ctx, evUnhealthy)
		if err != nil {
			// Guard rejected: miss window not yet exhausted.
			return current, false
		}
		log.WithComponent("decider").Info().
			Str("from", string(current)).Str("to", string(to)).Msg("scene switch")
		return to, true
	}
}

func (d *Decider) guardStabilityReached() error {
	if d.stableSince == nil {
		return errGuard
	}
	if d.clock().Sub(*d.stableSince) >= d.cfg.CamBackStability {
		return nil
	}
	return errGuard
}

func (d *Decider) guardMissTimeoutReached() error {
	if d.clock().Sub(d.lastHealthy) >= d.cfg.CamMissTimeout {
		return nil
	}
	return errGuard
}

var errGuard = guardNotSatisfied{}

type guardNotSatisfied struct{}

func (guardNotSatisfied) Error() string { return "hysteresis window not yet satisfied" }
