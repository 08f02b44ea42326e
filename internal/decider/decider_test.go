// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package decider

import (
	"context"
	"testing"
	"time"

	"github.com/loopcast/loopcast/internal/probe"
	"github.com/loopcast/loopcast/internal/scene"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		MinBitrateKbps:   300,
		CamMissTimeout:   3 * time.Second,
		CamBackStability: 2 * time.Second,
	}
}

type fakeClock struct{ now time.Time }

func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }
func (f *fakeClock) Clock() time.Time        { return f.now }

func healthySample() probe.StreamSample {
	return probe.StreamSample{Exists: true, Publishing: true, VideoBwBps: 100000}
}

func unhealthySample() probe.StreamSample {
	return probe.StreamSample{Exists: false}
}

func TestInitialConditionIsFallback(t *testing.T) {
	d := New(testConfig(), nil)
	require.Equal(t, scene.Fallback, d.Initial())
	require.Equal(t, scene.Fallback, d.Scene())
}

func TestColdStartNoStreamNeverSwitches(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	d := New(testConfig(), clock.Clock)

	for i := 0; i < 20; i++ {
		clock.advance(500 * time.Millisecond)
		_, switched := d.Update(context.Background(), unhealthySample())
		require.False(t, switched)
	}
	require.Equal(t, scene.Fallback, d.Scene())
}

func TestCleanPromotionAtStabilityWindow(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	d := New(testConfig(), clock.Clock)

	var switched bool
	// The window opens at the first healthy sample (t=0.5s); the 5th sample,
	// at t=2.5s, is 4 * 500ms = 2.0s later == CamBackStability.
	for i := 0; i < 5; i++ {
		clock.advance(500 * time.Millisecond)
		_, switched = d.Update(context.Background(), healthySample())
	}
	require.True(t, switched)
	require.Equal(t, scene.Live, d.Scene())
}

func TestBriefGlitchDoesNotSwitch(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	d := New(testConfig(), clock.Clock)
	// Promote to LIVE first.
	for i := 0; i < 5; i++ {
		clock.advance(500 * time.Millisecond)
		d.Update(context.Background(), healthySample())
	}
	require.Equal(t, scene.Live, d.Scene())

	_, switched := d.Update(context.Background(), unhealthySample())
	require.False(t, switched)
	clock.advance(500 * time.Millisecond)
	_, switched = d.Update(context.Background(), healthySample())
	require.False(t, switched)
	require.Equal(t, scene.Live, d.Scene())
}

func TestSustainedOutageFallsBack(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	d := New(testConfig(), clock.Clock)
	for i := 0; i < 5; i++ {
		clock.advance(500 * time.Millisecond)
		d.Update(context.Background(), healthySample())
	}
	require.Equal(t, scene.Live, d.Scene())

	var switched bool
	for i := 0; i < 6; i++ { // 6 * 500ms = 3.0s == CamMissTimeout
		clock.advance(500 * time.Millisecond)
		_, switched = d.Update(context.Background(), unhealthySample())
	}
	require.True(t, switched)
	require.Equal(t, scene.Fallback, d.Scene())
}

func TestNoConsecutiveIdenticalScenesEmitted(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	d := New(testConfig(), clock.Clock)

	var lastEmitted scene.Scene = d.Initial()
	for i := 0; i < 40; i++ {
		clock.advance(250 * time.Millisecond)
		s := healthySample()
		if i%7 == 0 {
			s = unhealthySample()
		}
		newScene, switched := d.Update(context.Background(), s)
		if switched {
			require.NotEqual(t, lastEmitted, newScene)
			lastEmitted = newScene
		}
	}
}
