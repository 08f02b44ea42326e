// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build linux

package switcher

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/loopcast/loopcast/internal/scene"
	"github.com/stretchr/testify/require"
)

func TestRestartSwitcherSpawnsChildForScene(t *testing.T) {
	built := make(chan scene.Scene, 4)
	build := func(_ context.Context, s scene.Scene) (*exec.Cmd, error) {
		built <- s
		return exec.Command("sleep", "5"), nil
	}

	sw := NewRestartSwitcher(build, 50*time.Millisecond, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, sw.SetScene(ctx, scene.Live))
	require.Equal(t, scene.Live, <-built)
	require.True(t, sw.Alive(ctx))
}

func TestRestartSwitcherReplacesChildOnSceneChange(t *testing.T) {
	built := make(chan scene.Scene, 4)
	build := func(_ context.Context, s scene.Scene) (*exec.Cmd, error) {
		built <- s
		return exec.Command("sleep", "5"), nil
	}

	sw := NewRestartSwitcher(build, 50*time.Millisecond, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, sw.SetScene(ctx, scene.Live))
	<-built
	require.NoError(t, sw.SetScene(ctx, scene.Fallback))
	require.Equal(t, scene.Fallback, <-built)
}

func TestRestartSwitcherRespawnsOnUnexpectedExit(t *testing.T) {
	built := make(chan scene.Scene, 4)
	build := func(_ context.Context, s scene.Scene) (*exec.Cmd, error) {
		built <- s
		return exec.Command("sh", "-c", "exit 1"), nil
	}

	sw := NewRestartSwitcher(build, 50*time.Millisecond, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, sw.SetScene(ctx, scene.Live))
	<-built // first spawn
	select {
	case s := <-built: // respawn after exit
		require.Equal(t, scene.Live, s)
	case <-time.After(2 * time.Second):
		t.Fatal("expected respawn after unexpected exit")
	}
}
