// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fanout

import (
	"context"
	"net/http"

	"github.com/loopcast/loopcast/internal/log"
)

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponent("fanout.ws")
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sub := newSubscriber(conn)
	s.registry.add(sub)
	go sub.writePump()

	s.sendInitialState(sub)

	sub.readPump(
		func(msg clientMessage) { s.handleClientMessage(sub, msg) },
		func() { s.registry.remove(sub.id) },
	)
}

func (s *Server) sendInitialState(sub *subscriber) {
	ctx := context.Background()
	statuses, _ := s.svc.ListServices(ctx)
	snap := s.scene.Snapshot()
	msg := initialStateMessage{
		Type:           "initial_state",
		Timestamp:      nowStamp(),
		Services:       statuses,
		CurrentScene:   snap.CurrentScene.String(),
		SceneTimestamp: snap.SceneChangedAt.UTC().Format(rfc3339),
		PrivacyEnabled: snap.PrivacyEnabled,
	}
	data, err := marshalMessage(msg)
	if err != nil {
		return
	}
	sub.enqueue(data)
}

func (s *Server) handleClientMessage(sub *subscriber, msg clientMessage) {
	switch msg.Type {
	case "subscribe_logs":
		s.handleSubscribeLogs(sub, msg)
	case "unsubscribe_logs":
		sub.unsubscribeLogs(msg.Container)
	default:
		log.WithComponent("fanout.ws").Warn().Str("type", msg.Type).Msg("unrecognised subscription message type")
	}
}

func (s *Server) handleSubscribeLogs(sub *subscriber, msg clientMessage) {
	lines := msg.Lines
	if lines <= 0 {
		lines = defaultLogSnapshotLines
	}

	ctx := context.Background()
	result, err := s.svc.Logs(ctx, msg.Container, lines)
	if err != nil {
		log.WithComponent("fanout.ws").Warn().Err(err).Str("service", msg.Container).Msg("subscribe_logs fetch failed")
		return
	}

	sub.subscribeLogs(msg.Container)
	if len(result.Lines) > 0 {
		s.anchors.setIfEmpty(msg.Container, result.Lines[len(result.Lines)-1])
	}

	snapshot := logSnapshotMessage{
		Type:      "log_snapshot",
		Timestamp: nowStamp(),
		Service:   msg.Container,
		Lines:     result.Lines,
	}
	data, err := marshalMessage(snapshot)
	if err != nil {
		return
	}
	sub.enqueue(data)
}
