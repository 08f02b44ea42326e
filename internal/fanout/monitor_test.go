// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package fanout

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeltaSinceAnchorNoAnchorReturnsAll(t *testing.T) {
	lines := []string{"a", "b", "c"}
	require.Equal(t, lines, deltaSinceAnchor(lines, ""))
}

func TestDeltaSinceAnchorReturnsOnlyNewer(t *testing.T) {
	lines := []string{"a", "b", "c", "d"}
	require.Equal(t, []string{"c", "d"}, deltaSinceAnchor(lines, "b"))
}

func TestDeltaSinceAnchorNotFoundTreatsAllAsDelta(t *testing.T) {
	lines := []string{"x", "y"}
	require.Equal(t, lines, deltaSinceAnchor(lines, "stale-anchor"))
}

func TestDeltaSinceAnchorNoNewLines(t *testing.T) {
	lines := []string{"a", "b"}
	require.Empty(t, deltaSinceAnchor(lines, "b"))
}

func TestAnchorStoreSetIfEmptyOnlySeedsOnce(t *testing.T) {
	a := newAnchorStore()
	a.setIfEmpty("relay", "line1")
	a.setIfEmpty("relay", "line2")
	require.Equal(t, "line1", a.get("relay"))
}
