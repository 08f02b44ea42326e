// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fanout

import (
	"context"
	"sync"
	"time"

	"github.com/loopcast/loopcast/internal/bus"
	"github.com/loopcast/loopcast/internal/log"
	"github.com/loopcast/loopcast/internal/services"
)

// runStatusMonitor snapshots list_services every StatusMonitorInterval,
// diffs against the previous snapshot, and publishes a status_change for
// every service whose {lifecycle, health, running} triple changed or that
// is newly observed (spec.md §4.5). State here is owned exclusively by this
// goroutine; nothing else touches it, so no lock is needed.
func (s *Server) runStatusMonitor(ctx context.Context) {
	logger := log.WithComponent("fanout.monitor")
	prev := make(map[string]services.ServiceStatus)
	ticker := time.NewTicker(StatusMonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur, warning := s.svc.ListServices(ctx)
			if warning {
				logger.Warn().Msg("list_services degraded to unknown lifecycle this cycle")
			}
			for _, c := range cur {
				p, seen := prev[c.ShortName]
				if seen && tripleOf(p) == tripleOf(c) {
					continue
				}
				snap := s.scene.Snapshot()
				msg := statusChangeMessage{
					Type:           "status_change",
					Timestamp:      nowStamp(),
					Service:        c.ShortName,
					Current:        tripleOf(c),
					Detail:         c.Detail,
					CurrentScene:   snap.CurrentScene.String(),
					PrivacyEnabled: snap.PrivacyEnabled,
				}
				if seen {
					msg.Previous = tripleOf(p)
				}
				if err := s.msgBus.Publish(ctx, bus.TopicStatus, msg); err != nil {
					logger.Warn().Err(err).Str("service", c.ShortName).Msg("failed to post status_change to event loop")
				}
			}
			next := make(map[string]services.ServiceStatus, len(cur))
			for _, c := range cur {
				next[c.ShortName] = c
			}
			prev = next
		}
	}
}

// runLogTail fetches the tail of every service currently subscribed-to
// every LogTailInterval, computes the delta since the shared per-service
// anchor, and publishes new_logs. The anchor map is owned exclusively by
// this goroutine.
func (s *Server) runLogTail(ctx context.Context) {
	logger := log.WithComponent("fanout.logtail")
	ticker := time.NewTicker(LogTailInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, name := range s.registry.activeLogServices() {
				result, err := s.svc.Logs(ctx, name, LogTailWindow)
				if err != nil {
					logger.Warn().Err(err).Str("service", name).Msg("log tail fetch failed")
					continue
				}
				delta := deltaSinceAnchor(result.Lines, s.anchors.get(name))
				if len(delta) == 0 {
					continue
				}
				s.anchors.set(name, result.Lines[len(result.Lines)-1])
				msg := newLogsMessage{
					Type:      "new_logs",
					Timestamp: nowStamp(),
					Service:   name,
					Lines:     delta,
				}
				if err := s.msgBus.Publish(ctx, bus.TopicLog, msg); err != nil {
					logger.Warn().Err(err).Str("service", name).Msg("failed to post new_logs to event loop")
				}
			}
		}
	}
}

// anchorStore holds the single per-service log anchor shared between the
// log-tail ticker and the subscribe_logs handler (spec.md §9: "single
// per-service anchor, not per-subscriber cursors").
type anchorStore struct {
	mu sync.Mutex
	m  map[string]string
}

func newAnchorStore() *anchorStore {
	return &anchorStore{m: make(map[string]string)}
}

func (a *anchorStore) get(service string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.m[service]
}

func (a *anchorStore) set(service, line string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m[service] = line
}

// setIfEmpty seeds the anchor the first time a service gets a subscriber,
// so the first log-tail tick after a snapshot does not redeliver it.
func (a *anchorStore) setIfEmpty(service, line string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.m[service]; !ok {
		a.m[service] = line
	}
}

// deltaSinceAnchor returns the lines strictly after anchor. If anchor is
// empty (no prior poll) or not found in lines (rotation, restart), the
// entire fetch is treated as delta (spec.md §4.5).
func deltaSinceAnchor(lines []string, anchor string) []string {
	if anchor == "" {
		return lines
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if lines[i] == anchor {
			return lines[i+1:]
		}
	}
	return lines
}
