// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fanout

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/loopcast/loopcast/internal/scene"
	"github.com/loopcast/loopcast/internal/services"
)

const defaultLogTail = 500

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleListContainers(w http.ResponseWriter, r *http.Request) {
	statuses, warning := s.svc.ListServices(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"services": statuses,
		"warning":  warning,
	})
}

func (s *Server) handleContainerStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	status, err := s.svc.Status(r.Context(), name)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleContainerLogs(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	tail := defaultLogTail
	if raw := r.URL.Query().Get("tail"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid tail parameter")
			return
		}
		tail = n
	}
	result, err := s.svc.Logs(r.Context(), name, tail)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleContainerAction(action func(string) services.Ack) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		ack := action(name)
		writeJSON(w, http.StatusAccepted, ack)
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrNotFound) {
		writeError(w, http.StatusNotFound, "service not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) handleGetScene(w http.ResponseWriter, r *http.Request) {
	snap := s.scene.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"current_scene":   snap.CurrentScene.String(),
		"scene_timestamp": snap.SceneChangedAt.UTC().Format(rfc3339),
	})
}

func (s *Server) handleSetScene(target scene.Scene) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, _ = s.scene.SetScene(target)
		writeJSON(w, http.StatusOK, map[string]any{"current_scene": target.String()})
	}
}

func (s *Server) handleGetPrivacy(w http.ResponseWriter, r *http.Request) {
	snap := s.scene.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{"privacy_enabled": snap.PrivacyEnabled})
}

func (s *Server) handleSetPrivacy(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := s.scene.SetPrivacy(enabled)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"privacy_enabled": snap.PrivacyEnabled})
	}
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	snap := s.scene.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"current_scene":   snap.CurrentScene.String(),
		"scene_timestamp": snap.SceneChangedAt.UTC().Format(rfc3339),
		"privacy_enabled": snap.PrivacyEnabled,
	})
}
