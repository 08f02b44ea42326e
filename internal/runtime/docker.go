// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package runtime

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/loopcast/loopcast/internal/log"
)

// DockerClient is the real Client implementation, backed by the Docker
// engine API (spec.md §4.4's runtime contract).
type DockerClient struct {
	cli         *client.Client
	projectName string
}

// NewDockerClient dials the Docker engine at socketAddr ("unix:///var/run/docker.sock"
// or a tcp:// endpoint). projectName is stored on the client; no method reads it.
func NewDockerClient(socketAddr, projectName string) (*DockerClient, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if socketAddr != "" {
		opts = append(opts, client.WithHost(socketAddr))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to container runtime: %w", err)
	}
	return &DockerClient{cli: cli, projectName: projectName}, nil
}

// List enumerates containers, all=true including stopped/created ones.
func (d *DockerClient) List(ctx context.Context, all bool) ([]Container, error) {
	summaries, err := d.cli.ContainerList(ctx, container.ListOptions{All: all})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	out := make([]Container, 0, len(summaries))
	for _, s := range summaries {
		name := strings.TrimPrefix(firstOrEmpty(s.Names), "/")
		c, err := d.Get(ctx, name)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func firstOrEmpty(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// Get inspects a single container by name.
func (d *DockerClient) Get(ctx context.Context, name string) (Container, error) {
	inspect, err := d.cli.ContainerInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return Container{}, ErrNotFound
		}
		return Container{}, fmt.Errorf("inspect container %q: %w", name, err)
	}
	return containerFromInspect(inspect), nil
}

func containerFromInspect(inspect container.InspectResponse) Container {
	c := Container{
		Name: strings.TrimPrefix(inspect.Name, "/"),
	}
	if inspect.ID != "" {
		c.ShortID = inspect.ID[:min(12, len(inspect.ID))]
	}

	mounts := make([]string, 0, len(inspect.Mounts))
	for _, m := range inspect.Mounts {
		mounts = append(mounts, fmt.Sprintf("%s:%s", m.Source, m.Destination))
	}
	c.Mounts = mounts

	st := inspect.State
	if st == nil {
		return c
	}
	c.State = st.Status
	c.Status = st.Status
	c.ExitCode = st.ExitCode
	c.StartedAt = parseDockerTime(st.StartedAt)
	c.FinishedAt = parseDockerTime(st.FinishedAt)
	if st.Health != nil {
		c.Health = Health(strings.ToLower(st.Health.Status))
	}
	return c
}

func parseDockerTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Logs fetches the tail of the container's combined stdout/stderr, with
// timestamps, not streamed (spec.md §4.4).
func (d *DockerClient) Logs(ctx context.Context, name string, tail int) ([]byte, error) {
	opts := container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Timestamps: true,
		Tail:       fmt.Sprintf("%d", tail),
	}
	rc, err := d.cli.ContainerLogs(ctx, name, opts)
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch logs for %q: %w", name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read logs for %q: %w", name, err)
	}
	return data, nil
}

// Start starts an existing container.
func (d *DockerClient) Start(ctx context.Context, name string) error {
	if err := d.cli.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
		if client.IsErrNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("start container %q: %w", name, err)
	}
	return nil
}

// Stop stops a running container, giving it timeout to exit before SIGKILL.
func (d *DockerClient) Stop(ctx context.Context, name string, timeout time.Duration) error {
	secs := int(timeout.Seconds())
	if err := d.cli.ContainerStop(ctx, name, container.StopOptions{Timeout: &secs}); err != nil {
		if client.IsErrNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("stop container %q: %w", name, err)
	}
	return nil
}

// Restart stops then starts a container.
func (d *DockerClient) Restart(ctx context.Context, name string, timeout time.Duration) error {
	secs := int(timeout.Seconds())
	if err := d.cli.ContainerRestart(ctx, name, container.StopOptions{Timeout: &secs}); err != nil {
		if client.IsErrNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("restart container %q: %w", name, err)
	}
	return nil
}

// Remove deletes a container, optionally forcing and stopping it first.
func (d *DockerClient) Remove(ctx context.Context, name string, force, stopFirst bool) error {
	if stopFirst {
		_ = d.Stop(ctx, name, 10*time.Second)
	}
	err := d.cli.ContainerRemove(ctx, name, container.RemoveOptions{Force: force})
	if err != nil {
		if client.IsErrNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("remove container %q: %w", name, err)
	}
	return nil
}

// Up lists containers filtered by name, then starts the named container. It
// does not create a missing container from the manifest-declared
// image/config (spec.md §1's "out of scope" bullet list: the container
// runtime's own config format is an external collaborator); when no such
// container exists it logs a warning and returns ErrNotFound.
func (d *DockerClient) Up(ctx context.Context, name string, opts UpOptions) error {
	_, err := d.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return fmt.Errorf("up: list existing container %q: %w", name, err)
	}

	if err := d.Start(ctx, name); err != nil {
		if !errorsIsNotFound(err) {
			return err
		}
		log.WithComponent("runtime").Warn().Str("container", name).
			Msg("container does not exist; creation from manifest image is driven by the deployment's compose definition")
		return ErrNotFound
	}
	return nil
}

func errorsIsNotFound(err error) bool {
	return err == ErrNotFound
}

var _ Client = (*DockerClient)(nil)
