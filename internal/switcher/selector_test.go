// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package switcher

import (
	"context"
	"testing"

	"github.com/loopcast/loopcast/internal/scene"
	"github.com/stretchr/testify/require"
)

type fakePipeline struct {
	video, audio []string
	alive        bool
}

func (f *fakePipeline) SelectVideo(source string) error { f.video = append(f.video, source); return nil }
func (f *fakePipeline) SelectAudio(source string) error { f.audio = append(f.audio, source); return nil }
func (f *fakePipeline) Alive() bool                     { return f.alive }

func TestInstantSwitcherFlipsBothSelectorsAtomically(t *testing.T) {
	p := &fakePipeline{alive: true}
	s := NewInstantSwitcher(p)

	require.NoError(t, s.SetScene(context.Background(), scene.Live))
	require.Equal(t, []string{"live"}, p.video)
	require.Equal(t, []string{"live"}, p.audio)
}

func TestInstantSwitcherSameSceneIsNoop(t *testing.T) {
	p := &fakePipeline{alive: true}
	s := NewInstantSwitcher(p)

	require.NoError(t, s.SetScene(context.Background(), scene.Fallback))
	require.Empty(t, p.video)
}

func TestInstantSwitcherRejectsInvalidScene(t *testing.T) {
	p := &fakePipeline{alive: true}
	s := NewInstantSwitcher(p)
	require.Error(t, s.SetScene(context.Background(), scene.Scene("bogus")))
}

func TestInstantSwitcherAliveDelegates(t *testing.T) {
	p := &fakePipeline{alive: false}
	s := NewInstantSwitcher(p)
	require.False(t, s.Alive(context.Background()))
}
