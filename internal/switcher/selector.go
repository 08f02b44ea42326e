// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package switcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/loopcast/loopcast/internal/log"
	"github.com/loopcast/loopcast/internal/scene"
)

// InputSelector models a long-lived media pipeline with two pre-rolled
// input chains (live, fallback) and a selector element with exactly one
// active input at a time, per spec.md §4.3 shape 1. Implementations must
// normalise both chains to identical raw caps so switching never triggers
// downstream renegotiation.
type InputSelector interface {
	SelectVideo(source string) error
	SelectAudio(source string) error
	// Alive reports whether the pipeline is currently running.
	Alive() bool
}

// sourceNames maps a Scene to the InputSelector source identifier it
// should select.
var sourceNames = map[scene.Scene]string{
	scene.Live:     "live",
	scene.Fallback: "fallback",
}

// InstantSwitcher implements shape 1: an atomic, zero-gap A/B select on a
// running pipeline. No input is ever torn down.
type InstantSwitcher struct {
	mu       sync.Mutex
	pipeline InputSelector
	current  scene.Scene
}

// NewInstantSwitcher constructs an InstantSwitcher bound to pipeline,
// starting in the FALLBACK scene per spec.md §4.2's startup contract.
func NewInstantSwitcher(pipeline InputSelector) *InstantSwitcher {
	return &InstantSwitcher{pipeline: pipeline, current: scene.Fallback}
}

// SetScene flips both the video and audio selectors atomically from the
// pipeline's point of view.
func (s *InstantSwitcher) SetScene(_ context.Context, target scene.Scene) error {
	if !target.Valid() {
		return fmt.Errorf("invalid scene %q", target)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == target {
		return nil
	}

	source := sourceNames[target]
	if err := s.pipeline.SelectVideo(source); err != nil {
		return fmt.Errorf("select video input %q: %w", source, err)
	}
	if err := s.pipeline.SelectAudio(source); err != nil {
		return fmt.Errorf("select audio input %q: %w", source, err)
	}

	s.current = target
	log.WithComponent("switcher").Info().Str("scene", string(target)).Msg("instant switch applied")
	return nil
}

// Alive reports the backing pipeline's liveness.
func (s *InstantSwitcher) Alive(_ context.Context) bool {
	return s.pipeline.Alive()
}

var _ Switcher = (*InstantSwitcher)(nil)
