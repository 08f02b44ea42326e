// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fanout

import "sync"

// registry tracks currently connected subscribers. All mutation happens
// from the event loop goroutine or under its lock; Broadcast never blocks
// on a slow subscriber (spec.md §4.5 broadcast discipline).
type registry struct {
	mu   sync.Mutex
	subs map[string]*subscriber
}

func newRegistry() *registry {
	return &registry{subs: make(map[string]*subscriber)}
}

func (r *registry) add(s *subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[s.id] = s
}

// remove drops the subscriber from the registry, closing its send queue so
// writePump exits. Its log subscriptions leave with it: the subscriber owns
// its logSubs set, so a removed subscriber no longer counts toward
// activeLogServices or broadcastToLogSubscribers.
func (r *registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.subs[id]; ok {
		delete(r.subs, id)
		close(s.send)
	}
}

// broadcast delivers payload to every current subscriber, dropping (and
// scheduling removal of) any whose outbound queue is full.
func (r *registry) broadcast(payload []byte) {
	r.mu.Lock()
	snapshot := make([]*subscriber, 0, len(r.subs))
	for _, s := range r.subs {
		snapshot = append(snapshot, s)
	}
	r.mu.Unlock()

	for _, s := range snapshot {
		if !s.enqueue(payload) {
			r.remove(s.id)
		}
	}
}

// broadcastToLogSubscribers delivers payload only to subscribers currently
// subscribed to service's log stream.
func (r *registry) broadcastToLogSubscribers(service string, payload []byte) {
	r.mu.Lock()
	snapshot := make([]*subscriber, 0, len(r.subs))
	for _, s := range r.subs {
		if s.subscribedTo(service) {
			snapshot = append(snapshot, s)
		}
	}
	r.mu.Unlock()

	for _, s := range snapshot {
		if !s.enqueue(payload) {
			r.remove(s.id)
		}
	}
}

// activeLogServices returns the set of service names with at least one
// subscriber currently subscribed to their log stream.
func (r *registry) activeLogServices() []string {
	r.mu.Lock()
	snapshot := make([]*subscriber, 0, len(r.subs))
	for _, s := range r.subs {
		snapshot = append(snapshot, s)
	}
	r.mu.Unlock()

	seen := make(map[string]bool)
	var out []string
	for _, s := range snapshot {
		s.mu.Lock()
		for name := range s.logSubs {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
		s.mu.Unlock()
	}
	return out
}

func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}
