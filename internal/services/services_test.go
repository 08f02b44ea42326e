// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHumanDeltaCoarsestUnit(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	require.Equal(t, "1 second", humanDelta(now.Add(-1*time.Second), now))
	require.Equal(t, "45 seconds", humanDelta(now.Add(-45*time.Second), now))
	require.Equal(t, "1 minute", humanDelta(now.Add(-90*time.Second), now))
	require.Equal(t, "2 minutes", humanDelta(now.Add(-2*time.Minute), now))
	require.Equal(t, "1 hour", humanDelta(now.Add(-90*time.Minute), now))
	require.Equal(t, "3 hours", humanDelta(now.Add(-3*time.Hour), now))
	require.Equal(t, "1 day", humanDelta(now.Add(-30*time.Hour), now))
	require.Equal(t, "2 days", humanDelta(now.Add(-50*time.Hour), now))
}

func TestDetailStringRunningHealthy(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	started := now.Add(-2 * time.Minute)
	got := detailString(LifecycleRunning, HealthHealthy, &started, nil, 0, now)
	require.Equal(t, "Up 2 minutes (healthy)", got)
}

func TestDetailStringExited(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	finished := now.Add(-10 * time.Second)
	got := detailString(LifecycleExited, "", nil, &finished, 137, now)
	require.Equal(t, "Exited (137) 10 seconds ago", got)
}

func TestDetailStringOtherLifecycle(t *testing.T) {
	now := time.Now()
	require.Equal(t, "Created", detailString(LifecycleCreated, "", nil, nil, 0, now))
	require.Equal(t, "Paused", detailString(LifecyclePaused, "", nil, nil, 0, now))
	require.Equal(t, "Not-created", detailString(LifecycleNotCreated, "", nil, nil, 0, now))
}

func TestUnsetTimestampsOmitted(t *testing.T) {
	require.Nil(t, optionalTime(time.Time{}))
	require.Nil(t, optionalTime(time.Unix(0, 0)))
	epoch1, _ := time.Parse(time.RFC3339, "0001-01-01T00:00:00Z")
	require.Nil(t, optionalTime(epoch1))

	valid := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NotNil(t, optionalTime(valid))
}

func TestNeedsRecreationMatchesAllPhrasesInASet(t *testing.T) {
	require.True(t, needsRecreation(errors.New("Network 'foo' not found")))
	require.True(t, needsRecreation(errors.New("Error response from daemon: network bridge missing")))
	require.True(t, needsRecreation(errors.New("OCI runtime create failed: exec format error")))
	require.False(t, needsRecreation(errors.New("network is fine")))
	require.False(t, needsRecreation(nil))
}
