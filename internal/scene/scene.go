// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package scene owns the Scene type and the process-wide SceneState cell:
// the single piece of state shared across the decider, switcher, and
// fan-out server goroutines (spec.md §5).
package scene

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/loopcast/loopcast/internal/log"
)

// Scene is the selected program source. It has exactly two inhabitants.
type Scene string

const (
	Live     Scene = "LIVE"
	Fallback Scene = "FALLBACK"
)

func (s Scene) String() string { return string(s) }

// Valid reports whether s is one of the two defined scenes.
func (s Scene) Valid() bool {
	return s == Live || s == Fallback
}

// Snapshot is an immutable view of SceneState at one instant.
type Snapshot struct {
	CurrentScene    Scene
	SceneChangedAt  time.Time
	PrivacyEnabled  bool
}

// Observer is notified after SceneState has been mutated and the mutex
// released. Per spec.md §9, observers must be side-effect-free on their own
// state; the fan-out server's registered observer posts a broadcast task to
// its event-loop goroutine rather than broadcasting inline.
type Observer func(prev, cur Snapshot)

// privacyFile is the on-disk JSON shape for spec.md §6's privacy mode file.
type privacyFile struct {
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updated_at"`
}

// State is the process-wide mutable scene/privacy cell. All mutation goes
// through its methods, which serialise access, persist privacy changes, and
// invoke registered observers after releasing the lock.
type State struct {
	mu   sync.Mutex
	cur  Snapshot
	path string

	obsMu     sync.Mutex
	observers []Observer
}

// New constructs a State with its initial scene FALLBACK (spec.md §4.2's
// initial condition) and privacy read once from privacyModeFile if present.
// A missing file means privacy is disabled.
func New(privacyModeFile string) *State {
	s := &State{
		cur: Snapshot{
			CurrentScene:   Fallback,
			SceneChangedAt: time.Now(),
		},
		path: privacyModeFile,
	}
	if pf, err := readPrivacyFile(privacyModeFile); err == nil {
		s.cur.PrivacyEnabled = pf.Enabled
	}
	return s
}

func readPrivacyFile(path string) (privacyFile, error) {
	if path == "" {
		return privacyFile{}, fmt.Errorf("no privacy file configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return privacyFile{}, err
	}
	var pf privacyFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return privacyFile{}, err
	}
	return pf, nil
}

// Observe registers an observer invoked on every non-idempotent mutation.
func (s *State) Observe(o Observer) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, o)
}

// Snapshot returns the current state by value.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// SetScene records an external scene transition (spec.md §4.5's
// POST /scene/{live,fallback}, or the switcher's peer notification).
// It is idempotent: setting the same scene again produces no notification.
func (s *State) SetScene(next Scene) (Snapshot, bool) {
	s.mu.Lock()
	prev := s.cur
	if prev.CurrentScene == next {
		s.mu.Unlock()
		return prev, false
	}
	s.cur.CurrentScene = next
	s.cur.SceneChangedAt = time.Now()
	cur := s.cur
	s.mu.Unlock()

	s.notify(prev, cur)
	return cur, true
}

// SetPrivacy toggles the privacy flag and persists it to disk before
// releasing the lock, per spec.md §5's "mutate, persist, release, notify"
// ordering. Setting the value it already has is a no-op: nothing is
// persisted and no observer is notified. Every call that changes the bit
// persists it and notifies exactly once, so enable→disable→enable yields
// three notifications.
func (s *State) SetPrivacy(enabled bool) (Snapshot, error) {
	s.mu.Lock()
	prev := s.cur
	if prev.PrivacyEnabled == enabled {
		s.mu.Unlock()
		return prev, nil
	}
	if err := s.persistPrivacy(enabled); err != nil {
		s.mu.Unlock()
		return prev, fmt.Errorf("persist privacy mode: %w", err)
	}
	s.cur.PrivacyEnabled = enabled
	cur := s.cur
	s.mu.Unlock()

	s.notify(prev, cur)
	return cur, nil
}

// persistPrivacy must be called while s.mu is held.
func (s *State) persistPrivacy(enabled bool) error {
	if s.path == "" {
		return nil
	}
	pf := privacyFile{Enabled: enabled, UpdatedAt: time.Now().UTC()}
	data, err := json.Marshal(pf)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.path, data)
}

func (s *State) notify(prev, cur Snapshot) {
	s.obsMu.Lock()
	observers := append([]Observer(nil), s.observers...)
	s.obsMu.Unlock()

	for _, o := range observers {
		o(prev, cur)
	}
}

func writeFileAtomic(path string, data []byte) error {
	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending privacy file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			log.WithComponent("scene").Debug().Err(err).Msg("cleanup pending privacy file")
		}
	}()

	if _, err := pendingFile.Write(data); err != nil {
		return fmt.Errorf("write privacy file: %w", err)
	}
	return pendingFile.CloseAtomicallyReplace()
}
