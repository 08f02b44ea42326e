// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package switcher implements the Program Switcher (spec.md §4.3): two
// implementation shapes behind a single interface that effects a scene
// change on the media pipeline, either instantly or via a managed restart.
package switcher

import (
	"context"

	"github.com/loopcast/loopcast/internal/scene"
)

// Switcher effects a scene change on the backing media pipeline. Both
// implementation shapes preserve the scene-atomicity contract: no partial
// switch is ever visible downstream.
type Switcher interface {
	// SetScene transitions the pipeline to s. It is safe to call with the
	// already-active scene (a no-op).
	SetScene(ctx context.Context, s scene.Scene) error
	// Alive reports whether the backing pipeline is currently healthy.
	Alive(ctx context.Context) bool
}
