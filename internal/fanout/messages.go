// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fanout

import (
	"encoding/json"
	"time"

	"github.com/loopcast/loopcast/internal/services"
)

const rfc3339 = time.RFC3339

func nowStamp() string {
	return time.Now().UTC().Format(rfc3339)
}

func marshalMessage(v any) ([]byte, error) {
	return json.Marshal(v)
}

// statusTriple is the {lifecycle, health, running} comparison key spec.md
// §4.5 uses to decide whether a status_change is due.
type statusTriple struct {
	Lifecycle string `json:"lifecycle"`
	Health    string `json:"health,omitempty"`
	Running   bool   `json:"running"`
}

func tripleOf(s services.ServiceStatus) statusTriple {
	return statusTriple{
		Lifecycle: string(s.Lifecycle),
		Health:    string(s.Health),
		Running:   s.Lifecycle == services.LifecycleRunning,
	}
}

// initialStateMessage is emitted exactly once per connection, spec.md §4.5.
type initialStateMessage struct {
	Type           string                    `json:"type"`
	Timestamp      string                    `json:"timestamp"`
	Services       []services.ServiceStatus  `json:"services"`
	CurrentScene   string                    `json:"current_scene"`
	SceneTimestamp string                    `json:"scene_timestamp"`
	PrivacyEnabled bool                      `json:"privacy_enabled"`
}

// statusChangeMessage reports one service's lifecycle/health/running delta.
type statusChangeMessage struct {
	Type           string       `json:"type"`
	Timestamp      string       `json:"timestamp"`
	Service        string       `json:"service"`
	Previous       statusTriple `json:"previous"`
	Current        statusTriple `json:"current"`
	Detail         string       `json:"detail"`
	CurrentScene   string       `json:"current_scene"`
	PrivacyEnabled bool         `json:"privacy_enabled"`
}

type sceneChangeMessage struct {
	Type         string `json:"type"`
	Timestamp    string `json:"timestamp"`
	CurrentScene string `json:"current_scene"`
}

type privacyChangeMessage struct {
	Type           string `json:"type"`
	Timestamp      string `json:"timestamp"`
	PrivacyEnabled bool   `json:"privacy_enabled"`
}

type logSnapshotMessage struct {
	Type      string   `json:"type"`
	Timestamp string   `json:"timestamp"`
	Service   string   `json:"container"`
	Lines     []string `json:"lines"`
}

type newLogsMessage struct {
	Type      string   `json:"type"`
	Timestamp string   `json:"timestamp"`
	Service   string   `json:"container"`
	Lines     []string `json:"lines"`
}

// clientMessage is the shape of inbound subscription-channel messages,
// spec.md §4.5.
type clientMessage struct {
	Type      string `json:"type"`
	Container string `json:"container"`
	Lines     int    `json:"lines,omitempty"`
}

const defaultLogSnapshotLines = 100
