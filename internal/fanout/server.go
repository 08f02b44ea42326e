// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fanout implements the Dashboard Fan-Out Server (spec.md §4.5): a
// synchronous request/response API plus a WebSocket subscription surface,
// both reading from the Service Controller and the shared scene/privacy
// cell. It owns the event loop onto which cross-thread scene mutations and
// periodic polls are serialized before broadcast (spec.md §5, §9).
package fanout

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/loopcast/loopcast/internal/bus"
	"github.com/loopcast/loopcast/internal/control/middleware"
	"github.com/loopcast/loopcast/internal/log"
	"github.com/loopcast/loopcast/internal/scene"
	"github.com/loopcast/loopcast/internal/services"
)

// StatusMonitorInterval is the status-poll cadence, spec.md §4.5.
const StatusMonitorInterval = 2 * time.Second

// LogTailInterval is the log-tail poll cadence, spec.md §4.5.
const LogTailInterval = 1 * time.Second

// LogTailWindow is the number of lines fetched per poll, spec.md §4.5.
const LogTailWindow = 50

// Server is the Fan-Out Server.
type Server struct {
	svc   *services.Controller
	scene *scene.State

	registry *registry
	msgBus   bus.Bus
	anchors  *anchorStore

	router chi.Router
}

// NewServer wires a Fan-Out Server over svc and sceneState.
func NewServer(svc *services.Controller, sceneState *scene.State) *Server {
	s := &Server{
		svc:      svc,
		scene:    sceneState,
		registry: newRegistry(),
		msgBus:   bus.NewMemoryBus(),
		anchors:  newAnchorStore(),
	}
	s.router = s.newRouter()
	sceneState.Observe(s.onSceneObserved)
	return s
}

// Handler returns the combined REST + WebSocket HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) newRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS([]string{"*"}, false))
	r.Use(middleware.SecurityHeaders(middleware.DefaultCSP, nil))
	r.Use(middleware.Metrics())
	r.Use(middleware.Tracing("loopcast.fanout"))
	r.Use(log.Middleware())
	r.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestLimit: 600,
		WindowSize:   time.Minute,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/containers", s.handleListContainers)
	r.Get("/container/{name}/status", s.handleContainerStatus)
	r.Get("/container/{name}/logs", s.handleContainerLogs)
	r.Post("/container/{name}/start", s.handleContainerAction(s.svc.Start))
	r.Post("/container/{name}/stop", s.handleContainerAction(s.svc.Stop))
	r.Post("/container/{name}/restart", s.handleContainerAction(s.svc.Restart))
	r.Post("/container/{name}/create-and-start", s.handleContainerAction(s.svc.CreateAndStart))

	r.Get("/scene", s.handleGetScene)
	r.Post("/scene/live", s.handleSetScene(scene.Live))
	r.Post("/scene/fallback", s.handleSetScene(scene.Fallback))

	r.Get("/privacy", s.handleGetPrivacy)
	r.Post("/privacy/enable", s.handleSetPrivacy(true))
	r.Post("/privacy/disable", s.handleSetPrivacy(false))

	r.Get("/state", s.handleGetState)

	r.Get("/ws", s.handleWebSocket)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "unknown route")
	})
	return r
}

// Run starts the background event loop: the status monitor, the log-tail
// poller, and the bus-consumer goroutine that serializes broadcasts. It
// blocks until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	eventsStatus, err := s.msgBus.Subscribe(ctx, bus.TopicStatus)
	if err != nil {
		return err
	}
	eventsScene, err := s.msgBus.Subscribe(ctx, bus.TopicScene)
	if err != nil {
		return err
	}
	eventsLog, err := s.msgBus.Subscribe(ctx, bus.TopicLog)
	if err != nil {
		return err
	}
	defer eventsStatus.Close()
	defer eventsScene.Close()
	defer eventsLog.Close()

	go s.runStatusMonitor(ctx)
	go s.runLogTail(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-eventsStatus.C():
			if !ok {
				return nil
			}
			s.dispatch(m)
		case m, ok := <-eventsScene.C():
			if !ok {
				return nil
			}
			s.dispatch(m)
		case m, ok := <-eventsLog.C():
			if !ok {
				return nil
			}
			s.dispatch(m)
		}
	}
}

// dispatch is the event loop's single point of serialized broadcast:
// everything posted here is marshaled and fanned out on this one goroutine,
// regardless of which thread produced it (spec.md §9's "post to loop").
func (s *Server) dispatch(m bus.Message) {
	logger := log.WithComponent("fanout")
	switch msg := m.(type) {
	case statusChangeMessage:
		data, err := json.Marshal(msg)
		if err != nil {
			logger.Error().Err(err).Msg("marshal status_change failed")
			return
		}
		s.registry.broadcast(data)
	case sceneChangeMessage:
		data, err := json.Marshal(msg)
		if err != nil {
			logger.Error().Err(err).Msg("marshal scene_change failed")
			return
		}
		s.registry.broadcast(data)
	case privacyChangeMessage:
		data, err := json.Marshal(msg)
		if err != nil {
			logger.Error().Err(err).Msg("marshal privacy_change failed")
			return
		}
		s.registry.broadcast(data)
	case newLogsMessage:
		data, err := json.Marshal(msg)
		if err != nil {
			logger.Error().Err(err).Msg("marshal new_logs failed")
			return
		}
		s.registry.broadcastToLogSubscribers(msg.Service, data)
	default:
		logger.Warn().Msg("dropping message of unrecognised type")
	}
}

func (s *Server) onSceneObserved(prev, cur scene.Snapshot) {
	ctx := context.Background()
	if prev.CurrentScene != cur.CurrentScene {
		_ = s.msgBus.Publish(ctx, bus.TopicScene, sceneChangeMessage{
			Type:         "scene_change",
			Timestamp:    nowStamp(),
			CurrentScene: cur.CurrentScene.String(),
		})
	}
	if prev.PrivacyEnabled != cur.PrivacyEnabled {
		_ = s.msgBus.Publish(ctx, bus.TopicScene, privacyChangeMessage{
			Type:           "privacy_change",
			Timestamp:      nowStamp(),
			PrivacyEnabled: cur.PrivacyEnabled,
		})
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
