// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package manifest parses the declarative service manifest spec.md §1
// requires: for each declared service, a short name, a runtime-unique name,
// and a "manual" flag.
package manifest

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/loopcast/loopcast/internal/log"
	"gopkg.in/yaml.v3"
)

// ServiceDescriptor is one declared service, spec.md §3.
type ServiceDescriptor struct {
	ShortName   string   `yaml:"short_name"`
	RuntimeName string   `yaml:"runtime_name"`
	IsManual    bool     `yaml:"is_manual"`
	DependsOn   []string `yaml:"depends_on,omitempty"`
}

type document struct {
	Services []ServiceDescriptor `yaml:"services"`
}

// Parse decodes a manifest document from data.
func Parse(data []byte) ([]ServiceDescriptor, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	seen := make(map[string]bool, len(doc.Services))
	for _, s := range doc.Services {
		if s.ShortName == "" || s.RuntimeName == "" {
			return nil, fmt.Errorf("manifest entry missing short_name or runtime_name")
		}
		if seen[s.ShortName] {
			return nil, fmt.Errorf("duplicate short_name %q", s.ShortName)
		}
		seen[s.ShortName] = true
	}
	return doc.Services, nil
}

// Load reads and parses the manifest file at path.
func Load(path string) ([]ServiceDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %q: %w", path, err)
	}
	return Parse(data)
}

// Watcher hot-reloads the manifest on file change, so the declared service
// set can change without restarting the daemon — the original
// container_controller.py re-reads its compose file on every reconciliation
// pass; loopcast achieves the equivalent effect event-driven instead of by
// polling.
type Watcher struct {
	path string

	mu       sync.RWMutex
	services []ServiceDescriptor

	onReload func([]ServiceDescriptor)
}

// NewWatcher loads path once and begins watching it for changes. onReload,
// if non-nil, is invoked with the freshly reloaded service set after every
// successful reload.
func NewWatcher(ctx context.Context, path string, onReload func([]ServiceDescriptor)) (*Watcher, error) {
	services, err := Load(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{path: path, services: services, onReload: onReload}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create manifest file watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch manifest %q: %w", path, err)
	}

	go w.run(ctx, fw)
	return w, nil
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	logger := log.WithComponent("manifest")
	defer fw.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			services, err := Load(w.path)
			if err != nil {
				logger.Warn().Err(err).Msg("manifest reload failed, keeping previous service set")
				continue
			}
			w.mu.Lock()
			w.services = services
			w.mu.Unlock()
			logger.Info().Int("services", len(services)).Msg("manifest.reloaded")
			if w.onReload != nil {
				w.onReload(services)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logger.Warn().Err(err).Msg("manifest watcher error")
		}
	}
}

// Services returns the currently loaded service set.
func (w *Watcher) Services() []ServiceDescriptor {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]ServiceDescriptor, len(w.services))
	copy(out, w.services)
	return out
}
