// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/loopcast/loopcast/internal/daemonconfig"
	"github.com/loopcast/loopcast/internal/decider"
	"github.com/loopcast/loopcast/internal/fanout"
	"github.com/loopcast/loopcast/internal/health"
	xglog "github.com/loopcast/loopcast/internal/log"
	"github.com/loopcast/loopcast/internal/manifest"
	platformnet "github.com/loopcast/loopcast/internal/platform/net"
	"github.com/loopcast/loopcast/internal/probe"
	"github.com/loopcast/loopcast/internal/runtime"
	"github.com/loopcast/loopcast/internal/scene"
	"github.com/loopcast/loopcast/internal/services"
	"github.com/loopcast/loopcast/internal/switcher"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "run the control plane daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon()
		},
	}
}

const serviceWorkerCount = 4

func runDaemon() error {
	cfg := daemonconfig.Load()

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: "loopcastd",
		Version: version,
	})
	logger := xglog.WithComponent("daemon")
	logger.Info().
		Str("event", "config.loaded").
		Str("stats_url", cfg.StatsURL).
		Str("app_name", cfg.AppName).
		Str("stream_name", cfg.StreamName).
		Dur("poll_interval", cfg.PollInterval).
		Int("min_bitrate_kbps", cfg.MinBitrateKbps).
		Dur("cam_miss_timeout", cfg.CamMissTimeout).
		Dur("cam_back_stability", cfg.CamBackStability).
		Str("switcher_shape", string(cfg.SwitcherShape)).
		Msg("configuration loaded")
	validateConfiguredURLs(logger, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sceneState := scene.New(cfg.PrivacyModeFile)

	manifestWatcher, err := manifest.NewWatcher(ctx, cfg.ManifestPath, func(services []manifest.ServiceDescriptor) {
		logger.Info().Int("services", len(services)).Msg("manifest.reloaded")
	})
	if err != nil {
		return fmt.Errorf("load service manifest: %w", err)
	}

	dockerClient, err := runtime.NewDockerClient(cfg.RuntimeSocket, cfg.ProjectName)
	if err != nil {
		return fmt.Errorf("connect to container runtime: %w", err)
	}

	svcController := services.New(manifestWatcher, dockerClient, serviceWorkerCount)
	defer svcController.Close()

	fanoutServer := fanout.NewServer(svcController, sceneState)
	go func() {
		if err := fanoutServer.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("fan-out event loop exited")
		}
	}()

	sw, teardownSwitcher := buildSwitcher(cfg)
	peerNotifier := switcher.NewPeerNotifier(cfg.PeerSceneNotifyURL)
	prober := probe.New(cfg.StatsURL, cfg.AppName, cfg.StreamName)

	go runDecisionLoop(ctx, logger, cfg, prober, sw, peerNotifier)

	healthManager := health.NewManager(version)
	healthManager.RegisterChecker(health.NewProbeChecker(func(ctx context.Context) error {
		_, err := prober.Sample(ctx)
		return err
	}))
	healthManager.RegisterChecker(health.NewRuntimeChecker(func(ctx context.Context) error {
		_, err := dockerClient.List(ctx, true)
		return err
	}))
	healthManager.RegisterChecker(health.NewSwitcherChecker(sw.Alive))

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsMux.HandleFunc("/healthz", healthManager.ServeHealth)
	metricsMux.HandleFunc("/readyz", healthManager.ServeReady)

	httpServer := &http.Server{Addr: cfg.FanoutHTTPAddr, Handler: fanoutServer.Handler()}
	go func() {
		logger.Info().Str("addr", cfg.FanoutHTTPAddr).Msg("fan-out server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("fan-out server failed")
		}
	}()

	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	go func() {
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received, tearing down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)
	teardownSwitcher()

	return nil
}

// validateConfiguredURLs warns, but does not fail startup, when STATS_URL or
// PEER_SCENE_NOTIFY_URL aren't well-formed direct HTTP(S) URLs. Both are
// best-effort collaborators (spec.md §7: probe failure is data, peer notify
// is best-effort), so a malformed value surfaces as a log line rather than
// an exit.
func validateConfiguredURLs(logger zerolog.Logger, cfg daemonconfig.Config) {
	if _, ok := platformnet.ParseDirectHTTPURL(cfg.StatsURL); !ok {
		logger.Warn().Str("stats_url", cfg.StatsURL).Msg("STATS_URL does not look like a direct http(s) URL")
	}
	if cfg.PeerSceneNotifyURL != "" {
		if _, ok := platformnet.ParseDirectHTTPURL(cfg.PeerSceneNotifyURL); !ok {
			logger.Warn().Str("peer_scene_notify_url", cfg.PeerSceneNotifyURL).Msg("PEER_SCENE_NOTIFY_URL does not look like a direct http(s) URL")
		}
	}
}

// buildSwitcher constructs the configured Program Switcher shape and
// returns a teardown function that releases any child process it owns
// (spec.md §5's "closing the switcher child process group before exit").
func buildSwitcher(cfg daemonconfig.Config) (switcher.Switcher, func()) {
	switch cfg.SwitcherShape {
	case daemonconfig.SwitcherRestart:
		build := restartCommandBuilder(cfg.RestartCmd)
		sw := switcher.NewRestartSwitcher(build, 3*time.Second, 500*time.Millisecond)
		return sw, sw.Shutdown
	default:
		pipeline := newShellSelector(cfg.VideoSelectCmd, cfg.AudioSelectCmd)
		sw := switcher.NewInstantSwitcher(pipeline)
		return sw, func() {}
	}
}

// runDecisionLoop runs the Stats Probe + Scene Decider on their own
// dedicated goroutine at POLL_INTERVAL, feeding scene changes to the
// switcher and best-effort notifying the fan-out peer (spec.md §5).
func runDecisionLoop(ctx context.Context, logger zerolog.Logger, cfg daemonconfig.Config, prober *probe.Prober, sw switcher.Switcher, notifier *switcher.PeerNotifier) {
	d := decider.New(decider.Config{
		MinBitrateKbps:   cfg.MinBitrateKbps,
		CamMissTimeout:   cfg.CamMissTimeout,
		CamBackStability: cfg.CamBackStability,
	}, time.Now)

	if err := sw.SetScene(ctx, d.Initial()); err != nil {
		logger.Error().Err(err).Msg("failed to apply initial fallback scene")
	}

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample, err := prober.Sample(ctx)
			if err != nil {
				logger.Warn().Err(err).Msg("stats probe failed, treating as unhealthy")
			}
			next, changed := d.Update(ctx, sample)
			if !changed {
				continue
			}
			if err := sw.SetScene(ctx, next); err != nil {
				logger.Error().Err(err).Str("scene", string(next)).Msg("switcher failed to set scene")
				continue
			}
			notifier.Notify(ctx, next)
		}
	}
}
