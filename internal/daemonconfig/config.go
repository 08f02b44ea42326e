// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemonconfig holds the loopcastd daemon's own environment-driven
// configuration. It is deliberately separate from internal/config (the
// teacher's IPTV AppConfig tree): that package's settings are unrelated to
// the RTMP relay control plane, and giving the daemon its own small config
// surface avoids entangling it with a much larger, differently-scoped
// system.
package daemonconfig

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/loopcast/loopcast/internal/log"
	"github.com/rs/zerolog"
)

// SwitcherShape selects which Program Switcher implementation the daemon
// constructs.
type SwitcherShape string

const (
	SwitcherInstant SwitcherShape = "instant"
	SwitcherRestart SwitcherShape = "restart"
)

// Config aggregates every environment-variable-driven setting the loopcast
// daemon recognises. It is assembled once at startup via Load.
type Config struct {
	// Decider
	PollInterval     time.Duration
	MinBitrateKbps   int
	CamMissTimeout   time.Duration
	CamBackStability time.Duration

	// Stats Probe
	StatsURL   string
	AppName    string
	StreamName string

	// Program Switcher
	SwitcherShape      SwitcherShape
	PeerSceneNotifyURL string

	// SceneState persistence
	PrivacyModeFile string

	// Service Controller / runtime
	RuntimeSocket         string
	ManifestPath          string
	ProjectName           string
	RuntimeRequestTimeout time.Duration

	// Fan-Out Server
	FanoutHTTPAddr string

	// Ambient
	MetricsAddr string
	LogLevel    string

	// Media pipeline glue: shell command templates invoked with the target
	// scene name ("live"/"fallback") substituted for "%s". The pipeline
	// itself is an external collaborator (spec.md §1); these are the only
	// knobs the daemon needs to drive it.
	VideoSelectCmd string
	AudioSelectCmd string
	RestartCmd     string
}

// Load reads Config from the process environment, falling back to the
// defaults spec.md §4.2/§6 specify for any variable that is unset or
// unparsable.
func Load() Config {
	return Config{
		PollInterval:     parseMillis("POLL_INTERVAL_MS", 500*time.Millisecond),
		MinBitrateKbps:   ParseInt("MIN_BITRATE_KBPS", 300),
		CamMissTimeout:   parseMillis("CAM_MISS_TIMEOUT_MS", 3*time.Second),
		CamBackStability: parseMillis("CAM_BACK_STABILITY_MS", 2*time.Second),

		StatsURL:   ParseString("STATS_URL", "http://127.0.0.1:8080/stat"),
		AppName:    ParseString("APP_NAME", "live"),
		StreamName: ParseString("STREAM_NAME", "cam"),

		SwitcherShape:      SwitcherShape(ParseString("SWITCHER_SHAPE", string(SwitcherInstant))),
		PeerSceneNotifyURL: ParseString("PEER_SCENE_NOTIFY_URL", ""),

		PrivacyModeFile: ParseString("PRIVACY_MODE_FILE", "/var/lib/loopcast/privacy.json"),

		RuntimeSocket:         ParseString("RUNTIME_SOCKET", "unix:///var/run/docker.sock"),
		ManifestPath:          ParseString("MANIFEST_PATH", "/etc/loopcast/manifest.yaml"),
		ProjectName:           ParseString("PROJECT_NAME", "loopcast"),
		RuntimeRequestTimeout: parseMillis("RUNTIME_REQUEST_TIMEOUT_MS", 10*time.Second),

		FanoutHTTPAddr: ParseString("FANOUT_HTTP_ADDR", ":8088"),

		MetricsAddr: ParseString("METRICS_ADDR", ":9090"),
		LogLevel:    ParseString("LOG_LEVEL", "info"),

		VideoSelectCmd: ParseString("VIDEO_SELECT_CMD", ""),
		AudioSelectCmd: ParseString("AUDIO_SELECT_CMD", ""),
		RestartCmd:     ParseString("RESTART_CMD", ""),
	}
}

// parseMillis reads an integer millisecond environment variable into a
// time.Duration, matching spec.md §6's "_MS"-suffixed variable names.
func parseMillis(key string, defaultValue time.Duration) time.Duration {
	ms := ParseInt(key, int(defaultValue/time.Millisecond))
	return time.Duration(ms) * time.Millisecond
}

// ParseString reads a string environment variable or returns defaultValue,
// logging which source was used. Grounded on the teacher's
// internal/config/env.go ParseString.
func ParseString(key, defaultValue string) string {
	logger := log.WithComponent("daemonconfig")
	if value, exists := os.LookupEnv(key); exists {
		lowerKey := strings.ToLower(key)
		if value == "" {
			logEnvDefault(logger, key, defaultValue)
			return defaultValue
		}
		logger.Debug().
			Str("key", key).
			Bool("sensitive", strings.Contains(lowerKey, "token") || strings.Contains(lowerKey, "password")).
			Str("source", "environment").
			Msg("using environment variable")
		return value
	}
	logEnvDefault(logger, key, defaultValue)
	return defaultValue
}

func logEnvDefault(logger zerolog.Logger, key, defaultValue string) {
	logger.Debug().
		Str("key", key).
		Str("default", defaultValue).
		Str("source", "default").
		Msg("using default value")
}

// ParseInt reads an integer environment variable or returns defaultValue,
// falling back on parse errors. Grounded on the teacher's
// internal/config/env.go ParseInt.
func ParseInt(key string, defaultValue int) int {
	logger := log.WithComponent("daemonconfig")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logger.Debug().Str("key", key).Int("default", defaultValue).Str("source", "default").Msg("using default value")
		return defaultValue
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Int("default", defaultValue).Msg("invalid integer in environment variable, using default")
		return defaultValue
	}
	logger.Debug().Str("key", key).Int("value", i).Str("source", "environment").Msg("using environment variable")
	return i
}
