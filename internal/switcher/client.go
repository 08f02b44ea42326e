// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package switcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/loopcast/loopcast/internal/log"
	"github.com/loopcast/loopcast/internal/resilience"
	"github.com/loopcast/loopcast/internal/scene"
)

// PeerNotifyTimeout is the per-call budget for the best-effort peer scene
// notification (spec.md §5).
const PeerNotifyTimeout = 5 * time.Second

// PeerNotifier performs a best-effort HTTP POST to the Fan-Out Server's
// /scene/<name> endpoint after every successful SetScene. Failure of this
// call never fails the switch: the circuit breaker degrades a persistently
// unreachable peer to an immediate no-op instead of an accumulating queue
// of blocked goroutines.
type PeerNotifier struct {
	peerURL string
	http    *http.Client
	cb      *resilience.CircuitBreaker
}

// NewPeerNotifier constructs a PeerNotifier targeting peerURL (the
// PEER_SCENE_NOTIFY_URL base, e.g. "http://fanout:8088"). An empty peerURL
// disables notification entirely.
func NewPeerNotifier(peerURL string) *PeerNotifier {
	return &PeerNotifier{
		peerURL: strings.TrimRight(peerURL, "/"),
		http:    &http.Client{Timeout: PeerNotifyTimeout},
		cb: resilience.NewCircuitBreaker(
			"switcher.peer_notify",
			3, 5, 60*time.Second, 30*time.Second,
		),
	}
}

// Notify posts the scene transition to the peer. Errors are logged, never
// returned: per spec.md §4.3, "failure of this call never fails the switch".
func (n *PeerNotifier) Notify(ctx context.Context, s scene.Scene) {
	if n.peerURL == "" {
		return
	}

	err := n.cb.Execute(func() error {
		url := fmt.Sprintf("%s/scene/%s", n.peerURL, sceneName(s))
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
		if err != nil {
			return err
		}
		resp, err := n.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return fmt.Errorf("peer notify: unexpected status %d", resp.StatusCode)
		}
		return nil
	})
	if err != nil {
		log.WithComponent("switcher").Warn().Err(err).Str("scene", string(s)).Msg("peer scene notification failed")
	}
}

func sceneName(s scene.Scene) string {
	if s == scene.Live {
		return "live"
	}
	return "fallback"
}

// Reporter exposes the switcher's own liveness surface, per spec.md §4.3:
// GET /scene -> { scene }, GET /health -> ok | state-name.
type Reporter struct {
	sw           Switcher
	currentScene func() scene.Scene
}

// NewReporter wraps sw for HTTP exposure. currentScene returns the
// authoritative current scene, owned by the shared scene.State cell.
func NewReporter(sw Switcher, currentScene func() scene.Scene) *Reporter {
	return &Reporter{sw: sw, currentScene: currentScene}
}

type sceneResponse struct {
	Scene string `json:"scene"`
}

// ServeScene handles GET /scene.
func (r *Reporter) ServeScene(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(sceneResponse{Scene: string(r.currentScene())})
}

// ServeHealth handles GET /health.
func (r *Reporter) ServeHealth(w http.ResponseWriter, req *http.Request) {
	if r.sw.Alive(req.Context()) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("unhealthy"))
}
