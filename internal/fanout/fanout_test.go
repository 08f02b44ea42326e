// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package fanout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/loopcast/loopcast/internal/manifest"
	"github.com/loopcast/loopcast/internal/runtime"
	"github.com/loopcast/loopcast/internal/scene"
	"github.com/loopcast/loopcast/internal/services"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *runtime.Fake) {
	t.Helper()
	fake := runtime.NewFake()
	ms := services.NewStaticManifest([]manifest.ServiceDescriptor{
		{ShortName: "relay", RuntimeName: "loopcast_relay_1"},
	})
	ctrl := services.New(ms, fake, 1)
	t.Cleanup(ctrl.Close)

	privacyPath := filepath.Join(t.TempDir(), "privacy.json")
	sceneState := scene.New(privacyPath)

	s := NewServer(ctrl, sceneState)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.Run(ctx)

	return s, fake
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleContainerStatusNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/container/relay/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleContainerActionReturns202(t *testing.T) {
	s, fake := newTestServer(t)
	fake.Seed(runtime.Container{Name: "loopcast_relay_1", State: "created"})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/container/relay/start", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var ack services.Ack
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	require.Equal(t, "starting", ack.State)
	require.Equal(t, "relay", ack.Service)
}

func TestSceneRoundTrip(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/scene/live", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/scene")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "LIVE", body["current_scene"])
}

func TestPrivacyEnableVisibleImmediately(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/privacy/enable", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, true, body["privacy_enabled"])
}

func TestUnknownRouteIs404(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocketReceivesInitialStateThenSceneChange(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var initial map[string]any
	require.NoError(t, json.Unmarshal(data, &initial))
	require.Equal(t, "initial_state", initial["type"])

	resp, err := http.Post(srv.URL+"/scene/live", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	var sceneMsg map[string]any
	require.NoError(t, json.Unmarshal(data, &sceneMsg))
	require.Equal(t, "scene_change", sceneMsg["type"])
	require.Equal(t, "LIVE", sceneMsg["current_scene"])
}

func TestWebSocketSubscribeLogsReceivesSnapshot(t *testing.T) {
	s, fake := newTestServer(t)
	fake.Seed(runtime.Container{Name: "loopcast_relay_1"})
	fake.SeedLogs("loopcast_relay_1", []string{"line1", "line2"})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	_, _, err = conn.ReadMessage() // initial_state
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(clientMessage{Type: "subscribe_logs", Container: "relay"}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var snap map[string]any
	require.NoError(t, json.Unmarshal(data, &snap))
	require.Equal(t, "log_snapshot", snap["type"])
	require.Equal(t, "relay", snap["container"])
}
