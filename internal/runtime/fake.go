// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package runtime

import (
	"context"
	"sync"
	"time"
)

// Fake is an in-memory Client used to test the Service Controller without a
// real container engine (spec.md §9's testability requirement; teacher
// tests prefer fakes of external collaborators over reflection-based mocks).
type Fake struct {
	mu         sync.Mutex
	containers map[string]Container
	logs       map[string][]string
	StartErr   map[string]error // per-name injected Start failure, consumed once
}

// NewFake constructs an empty Fake runtime client.
func NewFake() *Fake {
	return &Fake{
		containers: make(map[string]Container),
		logs:       make(map[string][]string),
		StartErr:   make(map[string]error),
	}
}

// Seed inserts or replaces a container record.
func (f *Fake) Seed(c Container) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.containers[c.Name] = c
}

// SeedLogs sets the log lines returned for a container.
func (f *Fake) SeedLogs(name string, lines []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs[name] = lines
}

func (f *Fake) List(_ context.Context, all bool) ([]Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Container, 0, len(f.containers))
	for _, c := range f.containers {
		if !all && c.State != "running" {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *Fake) Get(_ context.Context, name string) (Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[name]
	if !ok {
		return Container{}, ErrNotFound
	}
	return c, nil
}

func (f *Fake) Logs(_ context.Context, name string, tail int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines, ok := f.logs[name]
	if !ok {
		return nil, ErrNotFound
	}
	if tail > 0 && tail < len(lines) {
		lines = lines[len(lines)-tail:]
	}
	out := ""
	for _, l := range lines {
		out += l + "\n"
	}
	return []byte(out), nil
}

func (f *Fake) Start(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.StartErr[name]; ok {
		delete(f.StartErr, name)
		return err
	}
	c, ok := f.containers[name]
	if !ok {
		return ErrNotFound
	}
	c.State = "running"
	c.StartedAt = time.Now()
	f.containers[name] = c
	return nil
}

func (f *Fake) Stop(_ context.Context, name string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[name]
	if !ok {
		return ErrNotFound
	}
	c.State = "exited"
	c.FinishedAt = time.Now()
	f.containers[name] = c
	return nil
}

func (f *Fake) Restart(ctx context.Context, name string, timeout time.Duration) error {
	if err := f.Stop(ctx, name, timeout); err != nil {
		return err
	}
	return f.Start(ctx, name)
}

func (f *Fake) Remove(_ context.Context, name string, _, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.containers[name]; !ok {
		return ErrNotFound
	}
	delete(f.containers, name)
	return nil
}

func (f *Fake) Up(_ context.Context, name string, _ UpOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[name]
	if !ok {
		c = Container{Name: name}
	}
	c.State = "running"
	c.StartedAt = time.Now()
	f.containers[name] = c
	return nil
}

var _ Client = (*Fake)(nil)
