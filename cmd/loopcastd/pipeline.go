// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/loopcast/loopcast/internal/scene"
)

// shellSelector drives a live pipeline's source selection via shell command
// templates. It satisfies switcher.InputSelector. The pipeline itself is an
// external collaborator (spec.md §1); this is the thinnest possible glue
// between a configured command and the switcher's "set active source"
// operation.
type shellSelector struct {
	videoCmdTemplate string
	audioCmdTemplate string
	alive            bool
}

func newShellSelector(videoCmdTemplate, audioCmdTemplate string) *shellSelector {
	return &shellSelector{
		videoCmdTemplate: videoCmdTemplate,
		audioCmdTemplate: audioCmdTemplate,
		alive:            true,
	}
}

func (p *shellSelector) SelectVideo(source string) error {
	return runTemplate(p.videoCmdTemplate, source)
}

func (p *shellSelector) SelectAudio(source string) error {
	return runTemplate(p.audioCmdTemplate, source)
}

func (p *shellSelector) Alive() bool { return p.alive }

func runTemplate(template, source string) error {
	if template == "" {
		return nil
	}
	cmd := exec.Command("sh", "-c", fmt.Sprintf(template, source))
	return cmd.Run()
}

// restartCommandBuilder adapts a shell command template to
// switcher.CommandBuilder, for the restart-shape switcher.
func restartCommandBuilder(template string) func(ctx context.Context, s scene.Scene) (*exec.Cmd, error) {
	return func(ctx context.Context, s scene.Scene) (*exec.Cmd, error) {
		if template == "" {
			return nil, fmt.Errorf("RESTART_CMD is not configured")
		}
		source := "fallback"
		if s == scene.Live {
			source = "live"
		}
		return exec.Command("sh", "-c", fmt.Sprintf(template, source)), nil
	}
}
