// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package switcher

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/loopcast/loopcast/internal/log"
	"github.com/loopcast/loopcast/internal/metrics"
	"github.com/loopcast/loopcast/internal/procgroup"
	"github.com/loopcast/loopcast/internal/scene"
)

// CommandBuilder constructs the child process command for a given target
// scene. The returned *exec.Cmd must not yet have been started.
type CommandBuilder func(ctx context.Context, s scene.Scene) (*exec.Cmd, error)

// RestartSwitcher implements shape 2: a managed restart of an encoder child
// process, per spec.md §4.3. SetScene terminates the current child
// (SIGTERM, then SIGKILL after killGrace), waits quiesceDelay for the
// downstream endpoint to settle, then spawns a new child configured for the
// target scene. The child runs in its own process group so termination
// reaches any transcoder sub-children. If the child exits unexpectedly, the
// switcher respawns it in the current scene with unbounded retries.
type RestartSwitcher struct {
	build        CommandBuilder
	killGrace    time.Duration
	quiesceDelay time.Duration

	mu      sync.Mutex
	current scene.Scene
	cmd     *exec.Cmd
	waitCh  chan error
	gen     uint64 // incremented on every SetScene/respawn to fence stale supervisors
}

// NewRestartSwitcher constructs a RestartSwitcher. killGrace and
// quiesceDelay default to spec.md §4.3's 3s and 500ms when zero.
func NewRestartSwitcher(build CommandBuilder, killGrace, quiesceDelay time.Duration) *RestartSwitcher {
	if killGrace <= 0 {
		killGrace = 3 * time.Second
	}
	if quiesceDelay <= 0 {
		quiesceDelay = 500 * time.Millisecond
	}
	return &RestartSwitcher{
		build:        build,
		killGrace:    killGrace,
		quiesceDelay: quiesceDelay,
		current:      scene.Fallback,
	}
}

// SetScene stops the current child (if any), waits for quiescence, and
// spawns a replacement configured for target.
func (r *RestartSwitcher) SetScene(ctx context.Context, target scene.Scene) error {
	if !target.Valid() {
		return fmt.Errorf("invalid scene %q", target)
	}

	r.mu.Lock()
	if r.current == target && r.cmd != nil {
		r.mu.Unlock()
		return nil
	}
	r.gen++
	myGen := r.gen
	oldCmd, oldWait := r.cmd, r.waitCh
	r.mu.Unlock()

	if oldCmd != nil {
		if err := procgroup.Terminate(oldCmd, oldWait, r.killGrace); err != nil {
			log.WithComponent("switcher").Warn().Err(err).Msg("error terminating previous child")
		}
		time.Sleep(r.quiesceDelay)
	}

	return r.spawn(ctx, target, myGen)
}

func (r *RestartSwitcher) spawn(ctx context.Context, target scene.Scene, gen uint64) error {
	cmd, err := r.build(ctx, target)
	if err != nil {
		return fmt.Errorf("build child command for scene %q: %w", target, err)
	}
	procgroup.Set(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start child for scene %q: %w", target, err)
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	r.mu.Lock()
	r.current = target
	r.cmd = cmd
	r.waitCh = waitCh
	r.mu.Unlock()

	log.WithComponent("switcher").Info().Str("scene", string(target)).Msg("restart-shape child started")

	go r.supervise(ctx, gen, cmd, waitCh, target)
	return nil
}

// supervise waits for the child's exit and respawns it in the current
// scene, unless a newer generation (a subsequent SetScene call) has already
// superseded this child.
func (r *RestartSwitcher) supervise(ctx context.Context, gen uint64, cmd *exec.Cmd, waitCh chan error, target scene.Scene) {
	err := <-waitCh

	r.mu.Lock()
	stale := gen != r.gen
	current := r.current
	r.mu.Unlock()

	if stale {
		return
	}
	if ctx.Err() != nil {
		return
	}

	metrics.IncSwitcherChildExit(exitReason(err))
	log.WithComponent("switcher").Warn().Err(err).Str("scene", string(current)).
		Msg("restart-shape child exited unexpectedly, respawning")

	time.Sleep(r.quiesceDelay)
	if spawnErr := r.spawn(ctx, current, gen); spawnErr != nil {
		log.WithComponent("switcher").Error().Err(spawnErr).Msg("failed to respawn child after unexpected exit")
	}
}

func exitReason(err error) string {
	if err == nil {
		return "clean_exit"
	}
	return "nonzero_exit"
}

// Shutdown terminates the current child, if any, bumping the generation
// fence first so its supervisor goroutine does not respawn it. Used by the
// daemon's teardown sequence (spec.md §5: "closing the switcher child
// process group via procgroup before exit").
func (r *RestartSwitcher) Shutdown() {
	r.mu.Lock()
	r.gen++
	cmd, waitCh := r.cmd, r.waitCh
	r.mu.Unlock()

	if cmd == nil {
		return
	}
	if err := procgroup.Terminate(cmd, waitCh, r.killGrace); err != nil {
		log.WithComponent("switcher").Warn().Err(err).Msg("error terminating child during shutdown")
	}
}

// Alive reports whether the current child process is running.
func (r *RestartSwitcher) Alive(_ context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cmd != nil && r.cmd.Process != nil
}

var _ Switcher = (*RestartSwitcher)(nil)
