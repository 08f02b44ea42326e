// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package main is the loopcastd entrypoint: the RTMP relay control plane's
// supervisory daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:   "loopcastd",
		Short: "RTMP relay control plane daemon",
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newHealthcheckCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print version and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
			return nil
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
