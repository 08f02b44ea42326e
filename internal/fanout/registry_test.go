// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package fanout

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryBroadcastDeliversToAll(t *testing.T) {
	r := newRegistry()
	s1 := &subscriber{id: "a", send: make(chan []byte, 4), logSubs: map[string]bool{}}
	s2 := &subscriber{id: "b", send: make(chan []byte, 4), logSubs: map[string]bool{}}
	r.add(s1)
	r.add(s2)

	r.broadcast([]byte("hello"))

	require.Equal(t, []byte("hello"), <-s1.send)
	require.Equal(t, []byte("hello"), <-s2.send)
}

func TestRegistryBroadcastToLogSubscribersOnlyReachesSubscribed(t *testing.T) {
	r := newRegistry()
	s1 := &subscriber{id: "a", send: make(chan []byte, 4), logSubs: map[string]bool{"relay": true}}
	s2 := &subscriber{id: "b", send: make(chan []byte, 4), logSubs: map[string]bool{}}
	r.add(s1)
	r.add(s2)

	r.broadcastToLogSubscribers("relay", []byte("logline"))

	require.Equal(t, []byte("logline"), <-s1.send)
	require.Empty(t, s2.send)
}

func TestRegistryRemoveClearsSubscriber(t *testing.T) {
	r := newRegistry()
	s1 := &subscriber{id: "a", send: make(chan []byte, 4), logSubs: map[string]bool{}}
	r.add(s1)
	require.Equal(t, 1, r.count())

	r.remove("a")
	require.Equal(t, 0, r.count())
}

func TestActiveLogServicesDeduplicates(t *testing.T) {
	r := newRegistry()
	s1 := &subscriber{id: "a", send: make(chan []byte, 4), logSubs: map[string]bool{"relay": true}}
	s2 := &subscriber{id: "b", send: make(chan []byte, 4), logSubs: map[string]bool{"relay": true, "overlay": true}}
	r.add(s1)
	r.add(s2)

	services := r.activeLogServices()
	require.ElementsMatch(t, []string{"relay", "overlay"}, services)
}
