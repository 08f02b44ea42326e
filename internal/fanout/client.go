// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fanout

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/loopcast/loopcast/internal/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// subscriber is one connected dashboard client (spec.md §4.5's subscription
// surface). A send failure removes it; it never blocks its peers (spec.md
// §4.5 "broadcast discipline").
type subscriber struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	mu      sync.Mutex
	logSubs map[string]bool
}

func newSubscriber(conn *websocket.Conn) *subscriber {
	return &subscriber{
		id:      uuid.New().String(),
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		logSubs: make(map[string]bool),
	}
}

func (s *subscriber) subscribeLogs(service string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logSubs[service] = true
}

func (s *subscriber) unsubscribeLogs(service string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logSubs, service)
}

func (s *subscriber) subscribedTo(service string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logSubs[service]
}

// enqueue attempts a non-blocking send; the caller (registry) removes the
// subscriber on failure rather than retrying or blocking.
func (s *subscriber) enqueue(payload []byte) bool {
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

// readPump drains client messages until the connection closes. It owns
// nothing but the socket read side; disconnect detection feeds back to the
// registry through the onClose callback.
func (s *subscriber) readPump(onMessage func(clientMessage), onClose func()) {
	defer onClose()
	defer s.conn.Close()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	logger := log.WithComponent("fanout")
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn().Err(err).Msg("discarding malformed subscription message")
			continue
		}
		switch msg.Type {
		case "subscribe_logs", "unsubscribe_logs":
			onMessage(msg)
		default:
			logger.Warn().Str("type", msg.Type).Msg("ignoring unknown subscription message type")
		}
	}
}

// writePump drains the send queue to the socket and keeps it alive with
// periodic pings.
func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
