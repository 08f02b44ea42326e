// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package services

import (
	"context"
	"testing"
	"time"

	"github.com/loopcast/loopcast/internal/manifest"
	"github.com/loopcast/loopcast/internal/runtime"
	"github.com/stretchr/testify/require"
)

func testManifest() ManifestSource {
	return NewStaticManifest([]manifest.ServiceDescriptor{
		{ShortName: "relay", RuntimeName: "loopcast_relay_1"},
		{ShortName: "overlay", RuntimeName: "loopcast_overlay_1", IsManual: true},
	})
}

func TestListServicesReportsNotCreatedForMissingContainers(t *testing.T) {
	fake := runtime.NewFake()
	c := New(testManifest(), fake, 1)
	defer c.Close()

	statuses, warning := c.ListServices(context.Background())
	require.False(t, warning)
	require.Len(t, statuses, 2)
	for _, s := range statuses {
		require.Equal(t, LifecycleNotCreated, s.Lifecycle)
	}
}

func TestListServicesMergesRuntimeState(t *testing.T) {
	fake := runtime.NewFake()
	fake.Seed(runtime.Container{Name: "loopcast_relay_1", State: "running", StartedAt: time.Now()})
	c := New(testManifest(), fake, 1)
	defer c.Close()

	statuses, warning := c.ListServices(context.Background())
	require.False(t, warning)

	var relay ServiceStatus
	for _, s := range statuses {
		if s.ShortName == "relay" {
			relay = s
		}
	}
	require.Equal(t, LifecycleRunning, relay.Lifecycle)
	require.Contains(t, relay.Detail, "Up")
}

func TestStatusUnknownServiceNotFound(t *testing.T) {
	c := New(testManifest(), runtime.NewFake(), 1)
	defer c.Close()

	_, err := c.Status(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStatusNoRuntimeContainerNotFound(t *testing.T) {
	c := New(testManifest(), runtime.NewFake(), 1)
	defer c.Close()

	_, err := c.Status(context.Background(), "relay")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLogsSplitsAndDropsEmptyLines(t *testing.T) {
	fake := runtime.NewFake()
	fake.Seed(runtime.Container{Name: "loopcast_relay_1"})
	fake.SeedLogs("loopcast_relay_1", []string{"a", "", "b"})
	c := New(testManifest(), fake, 1)
	defer c.Close()

	res, err := c.Logs(context.Background(), "relay", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, res.Lines)
	require.Equal(t, 2, res.Count)
}

func TestStartAckIsImmediateAndAsync(t *testing.T) {
	fake := runtime.NewFake()
	fake.Seed(runtime.Container{Name: "loopcast_relay_1", State: "created"})
	c := New(testManifest(), fake, 1)
	defer c.Close()

	ack := c.Start("relay")
	require.Equal(t, "starting", ack.State)
	require.Equal(t, "relay", ack.Service)

	require.Eventually(t, func() bool {
		ct, err := fake.Get(context.Background(), "loopcast_relay_1")
		return err == nil && ct.State == "running"
	}, time.Second, 10*time.Millisecond)
}

func TestCreateAndStartHonorsManualNoDeps(t *testing.T) {
	fake := runtime.NewFake()
	c := New(testManifest(), fake, 1)
	defer c.Close()

	ack := c.CreateAndStart("overlay")
	require.Equal(t, "creating", ack.State)

	require.Eventually(t, func() bool {
		ct, err := fake.Get(context.Background(), "loopcast_overlay_1")
		return err == nil && ct.State == "running"
	}, time.Second, 10*time.Millisecond)
}

func TestStartRecreatesOnStaleNetworkSignature(t *testing.T) {
	fake := runtime.NewFake()
	fake.Seed(runtime.Container{Name: "loopcast_relay_1", State: "created"})
	fake.StartErr["loopcast_relay_1"] = errStaleNetwork{}
	c := New(testManifest(), fake, 1)
	defer c.Close()

	c.Start("relay")

	require.Eventually(t, func() bool {
		ct, err := fake.Get(context.Background(), "loopcast_relay_1")
		return err == nil && ct.State == "running"
	}, time.Second, 10*time.Millisecond)
}

type errStaleNetwork struct{}

func (errStaleNetwork) Error() string { return "network foo not found" }
