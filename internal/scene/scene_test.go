// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package scene

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitialStateIsFallback(t *testing.T) {
	s := New("")
	snap := s.Snapshot()
	require.Equal(t, Fallback, snap.CurrentScene)
	require.False(t, snap.PrivacyEnabled)
}

func TestSetSceneIdempotentNoNotify(t *testing.T) {
	s := New("")
	var notified int
	s.Observe(func(prev, cur Snapshot) { notified++ })

	_, changed := s.SetScene(Fallback)
	require.False(t, changed)
	require.Equal(t, 0, notified)

	_, changed = s.SetScene(Live)
	require.True(t, changed)
	require.Equal(t, 1, notified)
}

func TestSetPrivacyPersistsAndNotifies(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "privacy.json")
	s := New(path)

	var events []bool
	s.Observe(func(prev, cur Snapshot) { events = append(events, cur.PrivacyEnabled) })

	_, err := s.SetPrivacy(true)
	require.NoError(t, err)

	snap := s.Snapshot()
	require.True(t, snap.PrivacyEnabled)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var pf privacyFile
	require.NoError(t, json.Unmarshal(data, &pf))
	require.True(t, pf.Enabled)

	_, err = s.SetPrivacy(false)
	require.NoError(t, err)
	_, err = s.SetPrivacy(true)
	require.NoError(t, err)

	require.Equal(t, []bool{true, false, true}, events)
}

func TestMissingPrivacyFileDefaultsDisabled(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing.json"))
	require.False(t, s.Snapshot().PrivacyEnabled)
}
